package booking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/model"
)

type fakeNotifier struct {
	mu             sync.Mutex
	fail           bool
	adminBooked    int
	confirmTokens  []string
	confirmedSent  int
	lastRecipient  string
	lastConfirmURL string
}

func (f *fakeNotifier) SendConfirmationEmail(_ context.Context, _ model.Appointment, email, tok string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp down")
	}
	f.confirmTokens = append(f.confirmTokens, tok)
	f.lastRecipient = email
	return nil
}

func (f *fakeNotifier) NotifyAdminBooked(_ context.Context, _ model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp down")
	}
	f.adminBooked++
	return nil
}

func (f *fakeNotifier) NotifyCustomerConfirmed(_ context.Context, _ model.Appointment, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp down")
	}
	f.confirmedSent++
	f.lastRecipient = email
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestService(t *testing.T) (*Service, *memStore, *fakeNotifier, *testClock) {
	t.Helper()
	store := newMemStore()
	store.addCustomer(model.Customer{ID: "c1", Name: "Ada", Email: "ada@example.com"})
	store.addCustomer(model.Customer{ID: "c2", Name: "Lin", Email: "lin@example.com"})
	store.addCustomer(model.Customer{ID: "c3", Name: "Nomail"})

	notifier := &fakeNotifier{}
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(store, notifier, slog.New(slog.DiscardHandler), Config{
		Location: time.UTC,
		Now:      clock.Now,
	})
	return svc, store, notifier, clock
}

func createParams(customerID, vehicleID, start, end string) CreateParams {
	return CreateParams{
		CustomerID: customerID,
		VehicleID:  vehicleID,
		SlotStart:  start,
		SlotEnd:    end,
		Address:    "12 Elm St",
	}
}

func TestCreate_ExclusivityMatrix(t *testing.T) {
	svc, _, notifier, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T10:00:00Z", "2025-06-10T11:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.adminBooked)

	// Same vehicle, different customer: blocked.
	_, err = svc.Create(ctx, createParams("c2", "v1", "2025-06-10T10:30:00Z", "2025-06-10T11:30:00Z"))
	sc, ok := AsSlotConflict(err)
	require.True(t, ok, "expected slot conflict, got %v", err)
	assert.Equal(t, time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC), sc.Start)
	assert.Equal(t, time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC), sc.End)

	// Same customer, different vehicle: blocked.
	_, err = svc.Create(ctx, createParams("c1", "v2", "2025-06-10T10:30:00Z", "2025-06-10T11:30:00Z"))
	_, ok = AsSlotConflict(err)
	require.True(t, ok, "expected slot conflict, got %v", err)

	// Different vehicle and customer: fleet stacking allowed.
	_, err = svc.Create(ctx, createParams("c2", "v2", "2025-06-10T10:30:00Z", "2025-06-10T11:30:00Z"))
	require.NoError(t, err)
}

func TestCreate_ReleasedStatesFreeTheSlot(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T10:00:00Z", "2025-06-10T11:00:00Z"))
	require.NoError(t, err)

	_, err = svc.UpdateScheduleState(ctx, first.ID, string(model.StateCancelled))
	require.NoError(t, err)

	_, err = svc.Create(ctx, createParams("c2", "v1", "2025-06-10T10:30:00Z", "2025-06-10T11:30:00Z"))
	require.NoError(t, err, "cancelled appointment must not block the slot")
}

func TestCreate_InvalidRange(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T11:00:00Z", "2025-06-10T10:00:00Z"))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = svc.Create(ctx, createParams("c1", "v1", "junk", "2025-06-10T10:00:00Z"))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestCreate_NotifierFailureDoesNotAbort(t *testing.T) {
	svc, store, notifier, _ := newTestService(t)
	notifier.fail = true
	ctx := context.Background()

	appt, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T10:00:00Z", "2025-06-10T11:00:00Z"))
	require.NoError(t, err, "a booking must survive a notification outage")

	stored, err := store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateDraft, stored.ScheduleState)
}

func TestCheckAvailability(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.CheckAvailability(ctx, "2025-06-10T10:00:00Z", "2025-06-10T11:00:00Z", "c2", "")
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.Nil(t, res.Conflict)

	_, err = svc.Create(ctx, createParams("c1", "v1", "2025-06-10T10:00:00Z", "2025-06-10T11:00:00Z"))
	require.NoError(t, err)

	// Another customer probing the same window sees only the bounds.
	res, err = svc.CheckAvailability(ctx, "2025-06-10T10:30:00Z", "2025-06-10T11:30:00Z", "c2", "")
	require.NoError(t, err)
	assert.False(t, res.Available)
	require.NotNil(t, res.Conflict)
	assert.Equal(t, time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC), res.Conflict.Start)

	// The holding customer's own appointment does not block their probe.
	res, err = svc.CheckAvailability(ctx, "2025-06-10T10:30:00Z", "2025-06-10T11:30:00Z", "c1", "")
	require.NoError(t, err)
	assert.True(t, res.Available)
}

func TestUpdate_TimeRangeGuarded(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T10:00:00Z", "2025-06-10T11:00:00Z"))
	require.NoError(t, err)
	b, err := svc.Create(ctx, createParams("c2", "v1", "2025-06-10T13:00:00Z", "2025-06-10T14:00:00Z"))
	require.NoError(t, err)

	// Moving b onto a's slot conflicts.
	start := "2025-06-10T10:30:00Z"
	end := "2025-06-10T11:30:00Z"
	_, err = svc.Update(ctx, b.ID, UpdateParams{SlotStart: &start, SlotEnd: &end})
	_, ok := AsSlotConflict(err)
	require.True(t, ok, "expected slot conflict, got %v", err)

	// Re-saving a's own range does not conflict with itself.
	sameStart := "2025-06-10T10:00:00Z"
	sameEnd := "2025-06-10T11:00:00Z"
	_, err = svc.Update(ctx, a.ID, UpdateParams{SlotStart: &sameStart, SlotEnd: &sameEnd})
	require.NoError(t, err)

	// Non-range edits bypass the guard entirely.
	addr := "99 Oak Ave"
	got, err := svc.Update(ctx, b.ID, UpdateParams{Address: &addr})
	require.NoError(t, err)
	assert.Equal(t, "99 Oak Ave", got.Address)
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Update(context.Background(), "missing", UpdateParams{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkInternalConfirmed_StampsWindowLock(t *testing.T) {
	svc, _, notifier, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T09:00:00Z", "2025-06-10T11:00:00Z"))
	require.NoError(t, err)

	got, err := svc.MarkInternalConfirmed(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateInternalConfirmed, got.ScheduleState)
	require.NotNil(t, got.WindowLockedAt)
	assert.True(t, got.WindowLockedAt.Equal(time.Date(2025, 6, 7, 20, 0, 0, 0, time.UTC)),
		"windowLockedAt = %s", got.WindowLockedAt)
	assert.Equal(t, 1, notifier.confirmedSent)
}

func TestMarkInternalConfirmed_MissingEmailIsLoggedNotFatal(t *testing.T) {
	svc, _, notifier, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, createParams("c3", "v1", "2025-06-10T09:00:00Z", "2025-06-10T11:00:00Z"))
	require.NoError(t, err)

	got, err := svc.MarkInternalConfirmed(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateInternalConfirmed, got.ScheduleState)
	assert.Zero(t, notifier.confirmedSent)
}

func TestLockWindowNow(t *testing.T) {
	svc, _, _, clock := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T09:00:00Z", "2025-06-10T11:00:00Z"))
	require.NoError(t, err)

	// Natural lock time is 2025-06-07T20:00Z; one minute before is too early.
	clock.Set(time.Date(2025, 6, 7, 19, 59, 0, 0, time.UTC))
	_, err = svc.LockWindowNow(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrTooEarly)

	clock.Set(time.Date(2025, 6, 7, 20, 1, 0, 0, time.UTC))
	got, err := svc.LockWindowNow(ctx, appt.ID)
	require.NoError(t, err)
	require.NotNil(t, got.WindowLockedAt)
	assert.True(t, got.WindowLockedAt.Equal(clock.Now()))
}

func TestSendConfirmation(t *testing.T) {
	svc, _, notifier, clock := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T09:00:00Z", "2025-06-10T10:00:00Z"))
	require.NoError(t, err)

	got, err := svc.SendConfirmation(ctx, appt.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, model.StateSentToCustomer, got.ScheduleState)
	assert.Len(t, got.CustomerConfirmToken, 32)
	require.NotNil(t, got.CustomerConfirmExpires)
	assert.True(t, got.CustomerConfirmExpires.Equal(clock.Now().Add(72*time.Hour)))
	require.Len(t, notifier.confirmTokens, 1)
	assert.Equal(t, got.CustomerConfirmToken, notifier.confirmTokens[0])
	assert.Equal(t, "ada@example.com", notifier.lastRecipient)
}

func TestSendConfirmation_NoEmailOnFile(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, createParams("c3", "v1", "2025-06-10T09:00:00Z", "2025-06-10T10:00:00Z"))
	require.NoError(t, err)

	_, err = svc.SendConfirmation(ctx, appt.ID, 0)
	assert.ErrorIs(t, err, ErrNoEmailOnFile)
}

func TestSendConfirmation_MailOverride(t *testing.T) {
	store := newMemStore()
	store.addCustomer(model.Customer{ID: "c3", Name: "Nomail"})
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, slog.New(slog.DiscardHandler), Config{
		Location:     time.UTC,
		MailOverride: "ops@example.com",
	})
	ctx := context.Background()

	appt, err := svc.Create(ctx, createParams("c3", "v1", "2025-06-10T09:00:00Z", "2025-06-10T10:00:00Z"))
	require.NoError(t, err)

	_, err = svc.SendConfirmation(ctx, appt.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", notifier.lastRecipient)
}

func TestResendConfirmation(t *testing.T) {
	svc, _, notifier, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T09:00:00Z", "2025-06-10T10:00:00Z"))
	require.NoError(t, err)

	// No token yet: behaves exactly like sendConfirmation with the default TTL.
	first, err := svc.ResendConfirmation(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateSentToCustomer, first.ScheduleState)
	require.Len(t, notifier.confirmTokens, 1)

	// Token exists: same token goes out again, nothing re-issued.
	second, err := svc.ResendConfirmation(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, first.CustomerConfirmToken, second.CustomerConfirmToken)
	require.Len(t, notifier.confirmTokens, 2)
	assert.Equal(t, notifier.confirmTokens[0], notifier.confirmTokens[1])
}

func TestSetDraft_ClearsConfirmationState(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T09:00:00Z", "2025-06-10T10:00:00Z"))
	require.NoError(t, err)
	_, err = svc.SendConfirmation(ctx, appt.ID, 0)
	require.NoError(t, err)
	_, err = svc.CustomerConfirm(ctx, appt.ID)
	require.NoError(t, err)

	got, err := svc.SetDraft(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateDraft, got.ScheduleState)
	assert.Empty(t, got.CustomerConfirmToken)
	assert.Nil(t, got.CustomerConfirmExpires)
	assert.Nil(t, got.CustomerConfirmedAt)
}

func TestRedeem(t *testing.T) {
	svc, _, _, clock := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T09:00:00Z", "2025-06-10T10:00:00Z"))
	require.NoError(t, err)
	sent, err := svc.SendConfirmation(ctx, appt.ID, 0)
	require.NoError(t, err)

	_, _, err = svc.Redeem(ctx, "deadbeefdeadbeefdeadbeefdeadbeef", "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	got, status, err := svc.Redeem(ctx, sent.CustomerConfirmToken, "")
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMED", status)
	assert.Equal(t, model.StateCustomerConfirmed, got.ScheduleState)
	require.NotNil(t, got.CustomerConfirmedAt)

	// Expiry is checked at redemption time.
	clock.Set(clock.Now().Add(73 * time.Hour))
	_, _, err = svc.Redeem(ctx, sent.CustomerConfirmToken, "")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRedeem_Decline(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T09:00:00Z", "2025-06-10T10:00:00Z"))
	require.NoError(t, err)
	sent, err := svc.SendConfirmation(ctx, appt.ID, 0)
	require.NoError(t, err)

	got, status, err := svc.Redeem(ctx, sent.CustomerConfirmToken, "decline")
	require.NoError(t, err)
	assert.Equal(t, "DECLINED", status)
	assert.Equal(t, model.StateCustomerDeclined, got.ScheduleState)
	assert.Nil(t, got.CustomerConfirmedAt, "decline must not record a confirmation instant")

	// Declining releases the slot.
	_, err = svc.Create(ctx, createParams("c2", "v1", "2025-06-10T09:30:00Z", "2025-06-10T10:30:00Z"))
	require.NoError(t, err)
}

func TestUpdateScheduleState_InvalidLeavesUnchanged(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T09:00:00Z", "2025-06-10T10:00:00Z"))
	require.NoError(t, err)

	_, err = svc.UpdateScheduleState(ctx, appt.ID, "SHIPPED")
	assert.ErrorIs(t, err, ErrInvalidState)

	stored, err := store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateDraft, stored.ScheduleState)
}

func TestUpdateScheduleState_UnreleaseIntoTakenSlot(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T10:00:00Z", "2025-06-10T11:00:00Z"))
	require.NoError(t, err)
	_, err = svc.UpdateScheduleState(ctx, first.ID, string(model.StateCancelled))
	require.NoError(t, err)

	second, err := svc.Create(ctx, createParams("c2", "v1", "2025-06-10T10:00:00Z", "2025-06-10T11:00:00Z"))
	require.NoError(t, err)

	// Reactivating the cancelled booking must surface the new holder's
	// bounds as a conflict, not an opaque storage error.
	_, err = svc.UpdateScheduleState(ctx, first.ID, string(model.StateDraft))
	sc, ok := AsSlotConflict(err)
	require.True(t, ok, "expected slot conflict, got %v", err)
	assert.Equal(t, second.SlotStart, sc.Start)
	assert.Equal(t, second.SlotEnd, sc.End)

	stored, err := store.GetAppointment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCancelled, stored.ScheduleState)
}

func TestSetDraft_UnreleaseIntoTakenSlot(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T10:00:00Z", "2025-06-10T11:00:00Z"))
	require.NoError(t, err)
	_, err = svc.UpdateScheduleState(ctx, first.ID, string(model.StateCancelled))
	require.NoError(t, err)
	_, err = svc.Create(ctx, createParams("c2", "v1", "2025-06-10T10:30:00Z", "2025-06-10T11:30:00Z"))
	require.NoError(t, err)

	_, err = svc.SetDraft(ctx, first.ID)
	_, ok := AsSlotConflict(err)
	require.True(t, ok, "expected slot conflict, got %v", err)
}

func TestUpdateDispatchStatus(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, createParams("c1", "v1", "2025-06-10T09:00:00Z", "2025-06-10T10:00:00Z"))
	require.NoError(t, err)

	got, err := svc.UpdateDispatchStatus(ctx, appt.ID, "ASSIGNED")
	require.NoError(t, err)
	assert.Equal(t, model.DispatchAssigned, got.DispatchStatus)

	_, err = svc.UpdateDispatchStatus(ctx, appt.ID, "TELEPORTING")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	// Cancelled appointments keep recorded status but cannot go in route.
	_, err = svc.UpdateScheduleState(ctx, appt.ID, string(model.StateCancelled))
	require.NoError(t, err)
	_, err = svc.UpdateDispatchStatus(ctx, appt.ID, "IN_ROUTE")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = svc.UpdateDispatchStatus(ctx, appt.ID, "COMPLETE")
	require.NoError(t, err)
}

// Package booking is the appointment scheduling and conflict-resolution
// engine: overlap guards, the confirmation/dispatch state machine, and the
// window-locking rule.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/model"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/overlap"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/timeslot"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/token"
)

// Notifier is the outbound gateway for confirmation emails and admin alerts.
// Every call from the workflow is best-effort: a failed send is logged and
// never fails the transition that triggered it.
type Notifier interface {
	SendConfirmationEmail(ctx context.Context, appt model.Appointment, email, confirmToken string) error
	NotifyAdminBooked(ctx context.Context, appt model.Appointment) error
	NotifyCustomerConfirmed(ctx context.Context, appt model.Appointment, email string) error
}

type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger

	now          func() time.Time
	loc          *time.Location
	tokenTTL     time.Duration
	mailOverride string
}

type Config struct {
	// Location is the business-local timezone the window-lock rule runs in.
	Location *time.Location
	// TokenTTL is the default confirmation-token lifetime (72h when zero).
	TokenTTL time.Duration
	// MailOverride, when set, substitutes for a missing customer email
	// (dev/staging catch-all).
	MailOverride string
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewService(store Store, notifier Notifier, logger *slog.Logger, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = token.DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:        store,
		notifier:     notifier,
		logger:       logger,
		now:          cfg.Now,
		loc:          cfg.Location,
		tokenTTL:     cfg.TokenTTL,
		mailOverride: strings.TrimSpace(cfg.MailOverride),
	}
}

type CreateParams struct {
	CustomerID         string
	VehicleID          string
	SlotStart          string
	SlotEnd            string
	Address            string
	Notes              string
	SchedulingMode     string
	ArrivalWindowStart string
	ArrivalWindowEnd   string
	Services           []model.ServiceItem
}

// Create books a new appointment in DRAFT after running the vehicle-exclusive
// and same-customer overlap guards. The admin alert is best-effort.
func (s *Service) Create(ctx context.Context, p CreateParams) (model.Appointment, error) {
	if p.CustomerID == "" || p.VehicleID == "" || strings.TrimSpace(p.Address) == "" {
		return model.Appointment{}, fmt.Errorf("%w: customer, vehicle and address are required", ErrValidation)
	}
	r, err := timeslot.ParseRange(p.SlotStart, p.SlotEnd)
	if err != nil {
		return model.Appointment{}, err
	}
	for _, item := range p.Services {
		if !model.ValidServiceKind(item.Kind) {
			return model.Appointment{}, fmt.Errorf("%w: unknown service kind %q", ErrValidation, item.Kind)
		}
	}

	guards := []overlap.Scope{
		overlap.ForVehicle(r, p.VehicleID, ""),
		overlap.ForCustomer(r, p.CustomerID, ""),
	}
	if err := s.runGuards(ctx, guards); err != nil {
		return model.Appointment{}, err
	}

	mode := strings.TrimSpace(p.SchedulingMode)
	if mode == "" {
		mode = "WINDOW"
	}
	appt := model.Appointment{
		ID:             uuid.NewString(),
		CustomerID:     p.CustomerID,
		VehicleID:      p.VehicleID,
		SlotStart:      r.Start,
		SlotEnd:        r.End,
		ScheduleState:  model.StateDraft,
		DispatchStatus: model.DispatchUnassigned,
		SchedulingMode: mode,
		Address:        strings.TrimSpace(p.Address),
		Notes:          strings.TrimSpace(p.Notes),
		Services:       p.Services,
	}
	if appt.ArrivalWindowStart, err = parseOptionalInstant(p.ArrivalWindowStart); err != nil {
		return model.Appointment{}, err
	}
	if appt.ArrivalWindowEnd, err = parseOptionalInstant(p.ArrivalWindowEnd); err != nil {
		return model.Appointment{}, err
	}

	created, err := s.store.CreateAppointment(ctx, appt)
	if err != nil {
		return model.Appointment{}, s.mapStoreConflict(ctx, err, guards)
	}

	if err := s.notifier.NotifyAdminBooked(ctx, created); err != nil {
		s.logger.Error("admin booking alert failed", "appointment_id", created.ID, "op", "create", "err", err)
	}
	return created, nil
}

type UpdateParams struct {
	SlotStart          *string
	SlotEnd            *string
	Address            *string
	Notes              *string
	ArrivalWindowStart *string
	ArrivalWindowEnd   *string
	TechID             *string
}

// Update applies a partial edit. Touching the time range re-runs both overlap
// guards against the new range, excluding the appointment itself; other field
// edits bypass the guard.
func (s *Service) Update(ctx context.Context, id string, p UpdateParams) (model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}

	var guards []overlap.Scope
	if p.SlotStart != nil || p.SlotEnd != nil {
		start := appt.SlotStart
		end := appt.SlotEnd
		if p.SlotStart != nil {
			if start, err = time.Parse(time.RFC3339, *p.SlotStart); err != nil {
				return model.Appointment{}, fmt.Errorf("%w: bad slotStart %q", ErrInvalidRange, *p.SlotStart)
			}
		}
		if p.SlotEnd != nil {
			if end, err = time.Parse(time.RFC3339, *p.SlotEnd); err != nil {
				return model.Appointment{}, fmt.Errorf("%w: bad slotEnd %q", ErrInvalidRange, *p.SlotEnd)
			}
		}
		r, err := timeslot.NewRange(start, end)
		if err != nil {
			return model.Appointment{}, err
		}
		guards = []overlap.Scope{
			overlap.ForVehicle(r, appt.VehicleID, appt.ID),
			overlap.ForCustomer(r, appt.CustomerID, appt.ID),
		}
		if err := s.runGuards(ctx, guards); err != nil {
			return model.Appointment{}, err
		}
		appt.SlotStart = r.Start
		appt.SlotEnd = r.End
	}

	if p.Address != nil {
		appt.Address = strings.TrimSpace(*p.Address)
	}
	if p.Notes != nil {
		appt.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.TechID != nil {
		appt.TechID = strings.TrimSpace(*p.TechID)
	}
	if p.ArrivalWindowStart != nil {
		if appt.ArrivalWindowStart, err = parseOptionalInstant(*p.ArrivalWindowStart); err != nil {
			return model.Appointment{}, err
		}
	}
	if p.ArrivalWindowEnd != nil {
		if appt.ArrivalWindowEnd, err = parseOptionalInstant(*p.ArrivalWindowEnd); err != nil {
			return model.Appointment{}, err
		}
	}

	saved, err := s.store.SaveAppointment(ctx, appt)
	if err != nil {
		return model.Appointment{}, s.mapStoreConflict(ctx, err, guards)
	}
	return saved, nil
}

// AvailabilityResult reports whether a window is free and, when it is not, the
// bounds of the earliest conflicting appointment only.
type AvailabilityResult struct {
	Available bool
	Conflict  *timeslot.Range
}

// CheckAvailability is the read-only pre-booking probe. It excludes the asking
// customer's own holdings and has no side effects.
func (s *Service) CheckAvailability(ctx context.Context, slotStart, slotEnd, customerID, excludeID string) (AvailabilityResult, error) {
	r, err := timeslot.ParseRange(slotStart, slotEnd)
	if err != nil {
		return AvailabilityResult{}, err
	}
	conflict, err := s.store.FindConflict(ctx, overlap.ExcludingCustomer(r, customerID, excludeID))
	if err != nil {
		return AvailabilityResult{}, err
	}
	if conflict == nil {
		return AvailabilityResult{Available: true}, nil
	}
	return AvailabilityResult{
		Conflict: &timeslot.Range{Start: conflict.SlotStart, End: conflict.SlotEnd},
	}, nil
}

// MarkInternalConfirmed stamps the internal sign-off: the schedule state moves
// to INTERNAL_CONFIRMED and the natural window-lock deadline is recorded. The
// customer heads-up email is best-effort.
func (s *Service) MarkInternalConfirmed(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	lockAt := WindowLockTime(appt.SlotStart, s.loc)
	appt.ScheduleState = model.StateInternalConfirmed
	appt.WindowLockedAt = &lockAt

	saved, err := s.saveChecked(ctx, appt)
	if err != nil {
		return model.Appointment{}, err
	}

	email, emailErr := s.customerEmail(ctx, saved.CustomerID)
	if emailErr != nil {
		s.logger.Warn("appointment confirmed but customer email is missing",
			"appointment_id", saved.ID, "op", "internal-confirm")
		return saved, nil
	}
	if err := s.notifier.NotifyCustomerConfirmed(ctx, saved, email); err != nil {
		s.logger.Error("customer confirmation email failed",
			"appointment_id", saved.ID, "op", "internal-confirm", "err", err)
	}
	return saved, nil
}

// SendConfirmation issues a fresh token, moves the appointment to
// SENT_TO_CUSTOMER and emails the confirmation link. Fails with
// ErrNoEmailOnFile when neither the customer nor the mail override has an
// address; the send itself is best-effort once the token is persisted.
func (s *Service) SendConfirmation(ctx context.Context, id string, ttl time.Duration) (model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	email, err := s.customerEmail(ctx, appt.CustomerID)
	if err != nil {
		return model.Appointment{}, err
	}
	if ttl <= 0 {
		ttl = s.tokenTTL
	}

	tok, expires := token.Issue(s.now(), ttl)
	appt.ScheduleState = model.StateSentToCustomer
	appt.CustomerConfirmToken = tok
	appt.CustomerConfirmExpires = &expires

	saved, err := s.saveChecked(ctx, appt)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.notifier.SendConfirmationEmail(ctx, saved, email, tok); err != nil {
		s.logger.Error("confirmation email failed",
			"appointment_id", saved.ID, "op", "send-confirmation", "err", err)
	}
	return saved, nil
}

// ResendConfirmation re-mails the existing token, or falls back to
// SendConfirmation with the default TTL when no token has been issued yet.
func (s *Service) ResendConfirmation(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.CustomerConfirmToken == "" {
		return s.SendConfirmation(ctx, id, 0)
	}
	email, err := s.customerEmail(ctx, appt.CustomerID)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.notifier.SendConfirmationEmail(ctx, appt, email, appt.CustomerConfirmToken); err != nil {
		s.logger.Error("confirmation email failed",
			"appointment_id", appt.ID, "op", "resend-confirmation", "err", err)
	}
	return appt, nil
}

// SetDraft returns the appointment to a blank confirmation state, clearing the
// token, its expiry and any recorded customer response.
func (s *Service) SetDraft(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.ScheduleState = model.StateDraft
	appt.CustomerConfirmToken = ""
	appt.CustomerConfirmExpires = nil
	appt.CustomerConfirmedAt = nil
	return s.saveChecked(ctx, appt)
}

// CustomerConfirm records a confirmed response (admin-forced or via link).
func (s *Service) CustomerConfirm(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	now := s.now().UTC()
	appt.ScheduleState = model.StateCustomerConfirmed
	appt.CustomerConfirmedAt = &now
	return s.saveChecked(ctx, appt)
}

// Redeem consumes a public confirmation link. Unknown tokens fail with
// ErrInvalidToken, stale ones with ErrTokenExpired. Action "decline" releases
// the slot without recording a confirmation instant; anything else confirms.
func (s *Service) Redeem(ctx context.Context, confirmToken, action string) (model.Appointment, string, error) {
	appt, err := s.store.GetAppointmentByToken(ctx, confirmToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Appointment{}, "", ErrInvalidToken
		}
		return model.Appointment{}, "", err
	}
	if token.Expired(appt.CustomerConfirmExpires, s.now()) {
		return model.Appointment{}, "", ErrTokenExpired
	}

	if strings.EqualFold(action, "decline") {
		appt.ScheduleState = model.StateCustomerDeclined
		saved, err := s.store.SaveAppointment(ctx, appt)
		if err != nil {
			return model.Appointment{}, "", err
		}
		return saved, "DECLINED", nil
	}

	now := s.now().UTC()
	appt.ScheduleState = model.StateCustomerConfirmed
	appt.CustomerConfirmedAt = &now
	saved, err := s.saveChecked(ctx, appt)
	if err != nil {
		return model.Appointment{}, "", err
	}
	return saved, "CONFIRMED", nil
}

// LockWindowNow is the manual enforcement action: it succeeds only once the
// natural lock deadline has passed, then stamps windowLockedAt with now.
func (s *Service) LockWindowNow(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	now := s.now()
	if now.Before(WindowLockTime(appt.SlotStart, s.loc)) {
		return model.Appointment{}, ErrTooEarly
	}
	nowUTC := now.UTC()
	appt.WindowLockedAt = &nowUTC
	return s.store.SaveAppointment(ctx, appt)
}

// UpdateScheduleState force-sets the schedule state (admin action).
func (s *Service) UpdateScheduleState(ctx context.Context, id string, state string) (model.Appointment, error) {
	next := model.ScheduleState(state)
	if !model.ValidScheduleState(next) {
		return model.Appointment{}, fmt.Errorf("%w: %q", ErrInvalidState, state)
	}
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.ScheduleState = next
	return s.saveChecked(ctx, appt)
}

// UpdateDispatchStatus records field-ops progress. A released appointment may
// keep its status for audit but may not be put in route.
func (s *Service) UpdateDispatchStatus(ctx context.Context, id string, status string) (model.Appointment, error) {
	next := model.DispatchStatus(status)
	if !model.ValidDispatchStatus(next) {
		return model.Appointment{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if next == model.DispatchInRoute && appt.ScheduleState.Released() {
		return model.Appointment{}, fmt.Errorf("%w: released appointment cannot be dispatched", ErrInvalidStatus)
	}
	appt.DispatchStatus = next
	return s.store.SaveAppointment(ctx, appt)
}

func (s *Service) Get(ctx context.Context, id string) (model.Appointment, error) {
	return s.store.GetAppointment(ctx, id)
}

func (s *Service) List(ctx context.Context, limit int) ([]model.Appointment, error) {
	return s.store.ListAppointments(ctx, limit)
}

func (s *Service) runGuards(ctx context.Context, guards []overlap.Scope) error {
	for _, g := range guards {
		conflict, err := s.store.FindConflict(ctx, g)
		if err != nil {
			return err
		}
		if conflict != nil {
			return &SlotConflictError{Start: conflict.SlotStart, End: conflict.SlotEnd}
		}
	}
	return nil
}

// saveChecked persists a transition that may bring a released slot back into
// contention (e.g. CANCELLED back to DRAFT after the slot was rebooked). An
// exclusion-constraint hit surfaces as a SlotConflictError with the blocking
// bounds, the same way creation does.
func (s *Service) saveChecked(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	saved, err := s.store.SaveAppointment(ctx, appt)
	if err != nil {
		r := timeslot.Range{Start: appt.SlotStart, End: appt.SlotEnd}
		return model.Appointment{}, s.mapStoreConflict(ctx, err, []overlap.Scope{
			overlap.ForVehicle(r, appt.VehicleID, appt.ID),
			overlap.ForCustomer(r, appt.CustomerID, appt.ID),
		})
	}
	return saved, nil
}

// mapStoreConflict turns an exclusion-constraint hit into a SlotConflictError,
// re-querying the guards so the caller still sees the blocking bounds.
func (s *Service) mapStoreConflict(ctx context.Context, err error, guards []overlap.Scope) error {
	if !errors.Is(err, ErrSlotHeld) {
		return err
	}
	for _, g := range guards {
		if conflict, qerr := s.store.FindConflict(ctx, g); qerr == nil && conflict != nil {
			return &SlotConflictError{Start: conflict.SlotStart, End: conflict.SlotEnd}
		}
	}
	return &SlotConflictError{}
}

func (s *Service) customerEmail(ctx context.Context, customerID string) (string, error) {
	customer, err := s.store.GetCustomer(ctx, customerID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if err == nil && customer.Email != "" {
		return customer.Email, nil
	}
	if s.mailOverride != "" {
		return s.mailOverride, nil
	}
	return "", ErrNoEmailOnFile
}

func parseOptionalInstant(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad instant %q", ErrInvalidRange, raw)
	}
	u := t.UTC()
	return &u, nil
}

package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, upstream *httptest.Server) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewClient(rdb, slog.New(slog.DiscardHandler), Config{
		BaseURL: upstream.URL,
		TTL:     time.Hour,
	})
	return c, mr
}

func TestMakes_CachesUpstream(t *testing.T) {
	var hits atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/GetMakesForVehicleType/car", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Results":[{"MakeName":"HONDA"},{"MakeName":"TOYOTA"},{"MakeName":"HONDA"},{"MakeName":""}]}`))
	}))
	defer upstream.Close()

	c, mr := newTestClient(t, upstream)
	ctx := context.Background()

	makes, err := c.Makes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"HONDA", "TOYOTA"}, makes)
	assert.EqualValues(t, 1, hits.Load())

	// Second read is served from cache.
	makes, err = c.Makes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"HONDA", "TOYOTA"}, makes)
	assert.EqualValues(t, 1, hits.Load())

	// After the TTL expires the upstream is consulted again.
	mr.FastForward(2 * time.Hour)
	_, err = c.Makes(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestModels(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/GetModelsForMakeYear/make/honda/modelyear/2022", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Results":[{"Model_Name":"Civic"},{"Model_Name":"CR-V"}]}`))
	}))
	defer upstream.Close()

	c, _ := newTestClient(t, upstream)

	models, err := c.Models(context.Background(), "honda", 2022)
	require.NoError(t, err)
	assert.Equal(t, []string{"Civic", "CR-V"}, models)
}

func TestModels_RequiresMake(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream must not be called")
	}))
	defer upstream.Close()

	c, _ := newTestClient(t, upstream)
	_, err := c.Models(context.Background(), "  ", 2022)
	assert.Error(t, err)
}

func TestMakes_UpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	c, _ := newTestClient(t, upstream)
	_, err := c.Makes(context.Background())
	assert.Error(t, err)
}

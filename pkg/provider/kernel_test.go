package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-ai/conduit/pkg/provider/aierr"
	"github.com/conduit-ai/conduit/pkg/provider/types"
)

type echoEncoder struct{ url string }

func (e echoEncoder) EncodeRequest(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig, streaming bool) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
}

func TestDispatchRejectsEmptyMessages(t *testing.T) {
	k := NewKernel("test", NoAuth())
	_, err := k.Dispatch(context.Background(), echoEncoder{url: "http://unused"}, nil, "model", types.GenerateConfig{}, false)
	require.Error(t, err)
	kind, ok := aierr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, aierr.KindInvalidRequest, kind)
}

func TestDispatchRetriesOn5xxThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	k := NewKernel("test", NoAuth())
	k.Backoff.Base = 0
	resp, err := k.Dispatch(context.Background(), echoEncoder{url: srv.URL}, []types.Message{types.UserMessage("hi")}, "model", types.GenerateConfig{}, false)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 2, attempts)
}

func TestDispatchFailsFastOn4xx(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	k := NewKernel("test", NoAuth())
	_, err := k.Dispatch(context.Background(), echoEncoder{url: srv.URL}, []types.Message{types.UserMessage("hi")}, "model", types.GenerateConfig{}, false)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestCancelGenerationWithNothingInFlightIsNoOp(t *testing.T) {
	k := NewKernel("test", NoAuth())
	k.CancelGeneration() // no-op, nothing in flight yet; must not panic
}

func TestDispatchSurfacesRateLimitWithRetryAfterWithoutRetrying(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	k := NewKernel("test", NoAuth())
	k.Backoff.Base = 0
	_, err := k.Dispatch(context.Background(), echoEncoder{url: srv.URL}, []types.Message{types.UserMessage("hi")}, "model", types.GenerateConfig{}, false)
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "429 must not be retried inside a single Dispatch call")

	var aiErr *aierr.AIError
	require.ErrorAs(t, err, &aiErr)
	assert.Equal(t, aierr.KindRateLimit, aiErr.Kind)
	assert.Equal(t, 2*time.Second, aiErr.RetryAfter)
	assert.True(t, aierr.IsRetryable(err))
}

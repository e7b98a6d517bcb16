package provider

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/conduit-ai/conduit/pkg/internal/obs"
	"github.com/conduit-ai/conduit/pkg/internal/retryutil"
	"github.com/conduit-ai/conduit/pkg/provider/aierr"
	"github.com/conduit-ai/conduit/pkg/provider/types"
)

// RequestEncoder builds the backend-specific HTTP request for a generation
// call. Implementations live in each providers/<vendor> package.
type RequestEncoder interface {
	EncodeRequest(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig, streaming bool) (*http.Request, error)
}

// ResponseDecoder turns a successful HTTP response into conduit's common
// result types. DecodeResult is used for non-streaming calls; DecodeStream
// for streaming ones.
type ResponseDecoder interface {
	DecodeResult(resp *http.Response) (types.GenerationResult, error)
	DecodeStream(ctx context.Context, resp *http.Response) (<-chan types.GenerationChunk, <-chan error)
}

// retryableStatus is the default 5xx set the kernel retries on.
func retryableStatus(code int) bool {
	return code >= 500 && code < 600
}

// Kernel is the single HTTP-oriented state machine every remote provider
// reuses: build request, inject auth, dispatch with retry/backoff, parse
// response. It is actor-equivalent — its mutable state (the active
// cancellation handle) is guarded by a mutex so a single instance serializes
// its own in-flight operation while independent instances progress freely.
type Kernel struct {
	Name       string
	HTTPClient *http.Client
	Auth       Auth
	Backoff    retryutil.Backoff
	MaxRetries int
	Limiter    *rate.Limiter

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewKernel builds a Kernel with sane defaults: a shared http.Client, the
// documented capped-exponential backoff, 2 retries, and a per-instance rate
// limiter pacing dispatch to 10 requests/sec with a burst of 10 (pacing is
// the client-side companion to the kernel's reactive 429 handling, not a
// replacement for it).
func NewKernel(name string, auth Auth) *Kernel {
	return &Kernel{
		Name:       name,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Auth:       auth,
		Backoff:    retryutil.DefaultBackoff(),
		MaxRetries: 2,
		Limiter:    rate.NewLimiter(rate.Limit(10), 10),
	}
}

// CancelGeneration aborts the current in-flight dispatch, if any.
func (k *Kernel) CancelGeneration() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cancel != nil {
		k.cancel()
	}
}

func (k *Kernel) armCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	k.mu.Lock()
	k.cancel = cancel
	k.mu.Unlock()
	return ctx, cancel
}

// Dispatch runs the build-auth-retry-parse pathway described by the kernel
// contract and returns the raw *http.Response on a 2xx status. Callers
// decode it via a ResponseDecoder. The returned response body, on success,
// is the caller's responsibility to close.
func (k *Kernel) Dispatch(ctx context.Context, encoder RequestEncoder, messages []types.Message, modelID string, cfg types.GenerateConfig, streaming bool) (*http.Response, error) {
	if len(messages) == 0 {
		return nil, aierr.NewInvalidRequest(k.Name, "messages must not be empty")
	}

	ctx, cancel := k.armCancel(ctx)
	defer cancel()

	tracer := obs.Tracer("conduit/provider")
	ctx, end := obs.StartSpan(ctx, tracer, "provider.dispatch", obs.BaseAttributes(k.Name, modelID, streaming)...)
	var finalErr error
	defer func() { end(finalErr) }()

	for attempt := 0; attempt <= k.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			finalErr = aierr.NewCancelled(k.Name)
			return nil, finalErr
		}

		if attempt > 0 {
			if err := k.Backoff.Sleep(ctx, attempt); err != nil {
				finalErr = aierr.NewCancelled(k.Name)
				return nil, finalErr
			}
		}

		if k.Limiter != nil {
			if err := k.Limiter.Wait(ctx); err != nil {
				finalErr = aierr.NewCancelled(k.Name)
				return nil, finalErr
			}
		}

		req, err := encoder.EncodeRequest(ctx, messages, modelID, cfg, streaming)
		if err != nil {
			finalErr = aierr.Wrap(aierr.KindInvalidRequest, k.Name, "failed to encode request", err)
			return nil, finalErr
		}
		k.Auth.Apply(req)

		resp, err := k.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				finalErr = aierr.NewCancelled(k.Name)
				return nil, finalErr
			}
			finalErr = aierr.NewNetwork(k.Name, "request failed", err)
			continue // network class: retry
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			finalErr = nil
			return resp, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := resp.Header.Get("Retry-After")
			resp.Body.Close()
			var e *aierr.AIError
			if secs, perr := strconv.Atoi(retryAfter); retryAfter != "" && perr == nil {
				e = aierr.NewRateLimitAfter(k.Name, "rate limited, retry-after="+strconv.Itoa(secs)+"s", time.Duration(secs)*time.Second)
			} else {
				e = aierr.NewRateLimit(k.Name, "rate limited")
			}
			finalErr = e
			return nil, finalErr
		}

		if retryableStatus(resp.StatusCode) {
			resp.Body.Close()
			finalErr = aierr.New(aierr.KindProviderOverload, k.Name, "server error "+strconv.Itoa(resp.StatusCode))
			continue
		}

		// Other 4xx: fail fast, no retry.
		resp.Body.Close()
		finalErr = aierr.New(aierr.KindInvalidRequest, k.Name, "request rejected with status "+strconv.Itoa(resp.StatusCode))
		return nil, finalErr
	}

	if finalErr == nil {
		finalErr = aierr.New(aierr.KindProviderOverload, k.Name, "exhausted retries")
	}
	return nil, finalErr
}

// Package localengine adapts an on-device, llama.cpp-style inference
// runtime to the TextGenerator/TokenCounter capability contracts, built on
// the localhost loader/cache, runtime policy, and streaming detokenizer.
package localengine

import (
	"context"
	"sync"

	"github.com/conduit-ai/conduit/pkg/localhost"
	"github.com/conduit-ai/conduit/pkg/provider"
	"github.com/conduit-ai/conduit/pkg/provider/aierr"
	"github.com/conduit-ai/conduit/pkg/provider/types"
	"github.com/conduit-ai/conduit/pkg/streampipe"
)

// Runtime is the opaque on-device model implementation conduit drives: a
// llama.cpp-style context capable of sampling tokens one at a time and
// tokenizing/detokenizing text. A concrete runtime adapter (cgo binding or
// subprocess bridge) supplies this; localengine only sequences calls
// against it.
type Runtime interface {
	localhost.Engine

	// Tokenize converts text into model vocabulary ids.
	Tokenize(text string) ([]int, error)

	// SampleNext runs one forward pass over promptIDs plus generatedIDs so
	// far and returns the next sampled token id, or ok=false at
	// end-of-sequence.
	SampleNext(ctx context.Context, promptIDs, generatedIDs []int, cfg types.GenerateConfig) (tokenID int, ok bool, err error)

	// DecodeToken renders a sequence of token ids as text for the
	// streaming detokenizer's full-sequence redecode.
	DecodeToken(ids []int) string
}

// RuntimeLoader adapts a factory function producing Runtime instances into
// a localhost.Loader.
type RuntimeLoader struct {
	Open func(ctx context.Context, modelID string) (Runtime, error)
}

func (l RuntimeLoader) Load(ctx context.Context, modelID string) (localhost.Engine, error) {
	rt, err := l.Open(ctx, modelID)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// tokenDecoderFunc adapts a Runtime's DecodeToken into localhost.TokenDecoder.
type tokenDecoderFunc func(ids []int) string

func (f tokenDecoderFunc) Decode(ids []int) string { return f(ids) }

// Provider implements provider.TextGenerator and provider.TokenCounter over
// a cache of loaded Runtime instances.
type Provider struct {
	name   string
	cache  *localhost.Cache
	policy localhost.RuntimePolicy

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// New constructs a Provider. maxLoadedModels bounds how many runtimes may
// be resident at once before LRU eviction kicks in.
func New(name string, loader RuntimeLoader, maxLoadedModels int, policy localhost.RuntimePolicy) *Provider {
	return &Provider{name: name, cache: localhost.NewCache(loader, maxLoadedModels), policy: policy}
}

func (p *Provider) CancelGeneration() {
	p.cancelMu.Lock()
	defer p.cancelMu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Provider) Availability(ctx context.Context) provider.Availability {
	return provider.Availability{Available: true}
}

// Policy returns the runtime feature policy this provider applies to
// loaded engines.
func (p *Provider) Policy() localhost.RuntimePolicy { return p.policy }

func (p *Provider) armCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	p.cancelMu.Lock()
	p.cancel = cancel
	p.cancelMu.Unlock()
	return ctx, cancel
}

func (p *Provider) loadRuntime(ctx context.Context, modelID string) (Runtime, error) {
	m, err := p.cache.Load(ctx, modelID)
	if err != nil {
		return nil, err
	}
	rt, ok := m.Handle.(Runtime)
	if !ok {
		return nil, aierr.NewInternal("loaded handle for \""+modelID+"\" is not a localengine.Runtime", nil)
	}
	return rt, nil
}

func promptText(messages []types.Message) string {
	var out string
	for _, m := range messages {
		out += string(m.Role) + ": " + m.Text() + "\n"
	}
	return out
}

// Generate implements provider.TextGenerator by running SampleNext to
// completion and assembling the revealed text.
func (p *Provider) Generate(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig) (types.GenerationResult, error) {
	if len(messages) == 0 {
		return types.GenerationResult{}, aierr.NewInvalidRequest(p.name, "messages must not be empty")
	}
	ctx, cancel := p.armCancel(ctx)
	defer cancel()

	rt, err := p.loadRuntime(ctx, modelID)
	if err != nil {
		return types.GenerationResult{}, err
	}
	promptIDs, err := rt.Tokenize(promptText(messages))
	if err != nil {
		return types.GenerationResult{}, aierr.Wrap(aierr.KindInternal, p.name, "tokenization failed", err)
	}

	detok := localhost.NewStreamingDetokenizer(tokenDecoderFunc(rt.DecodeToken))
	var generated []int
	var text string
	finish := types.FinishStop
	maxTokens := 512
	if cfg.MaxTokens != nil {
		maxTokens = *cfg.MaxTokens
	}

	for len(generated) < maxTokens {
		if err := ctx.Err(); err != nil {
			finish = types.FinishCancelled
			break
		}
		tokenID, ok, err := rt.SampleNext(ctx, promptIDs, generated, cfg)
		if err != nil {
			return types.GenerationResult{}, aierr.Wrap(aierr.KindInternal, p.name, "sampling failed", err)
		}
		if !ok {
			break
		}
		generated = append(generated, tokenID)
		text += detok.Append(tokenID)
	}
	if len(generated) >= maxTokens {
		finish = types.FinishMaxTokens
	}
	text += detok.Remainder()

	return types.GenerationResult{
		Text:         text,
		FinishReason: finish,
		Usage: types.Usage{
			PromptTokens:     len(promptIDs),
			CompletionTokens: len(generated),
			TotalTokens:      len(promptIDs) + len(generated),
		},
	}, nil
}

// StreamWithMetadata implements provider.TextGenerator, yielding one text
// chunk per revealed detokenizer delta.
func (p *Provider) StreamWithMetadata(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig) (<-chan types.GenerationChunk, <-chan error) {
	out := make(chan types.GenerationChunk)
	errCh := make(chan error, 1)

	if len(messages) == 0 {
		close(out)
		errCh <- aierr.NewInvalidRequest(p.name, "messages must not be empty")
		close(errCh)
		return out, errCh
	}

	go func() {
		defer close(out)
		defer close(errCh)

		ctx, cancel := p.armCancel(ctx)
		defer cancel()

		rt, err := p.loadRuntime(ctx, modelID)
		if err != nil {
			errCh <- err
			return
		}
		promptIDs, err := rt.Tokenize(promptText(messages))
		if err != nil {
			errCh <- aierr.Wrap(aierr.KindInternal, p.name, "tokenization failed", err)
			return
		}

		asm := streampipe.NewAssembler()
		detok := localhost.NewStreamingDetokenizer(tokenDecoderFunc(rt.DecodeToken))
		var generated []int
		finish := types.FinishStop
		maxTokens := 512
		if cfg.MaxTokens != nil {
			maxTokens = *cfg.MaxTokens
		}

		for len(generated) < maxTokens {
			if err := ctx.Err(); err != nil {
				finish = types.FinishCancelled
				break
			}
			tokenID, ok, err := rt.SampleNext(ctx, promptIDs, generated, cfg)
			if err != nil {
				errCh <- aierr.Wrap(aierr.KindInternal, p.name, "sampling failed", err)
				return
			}
			if !ok {
				break
			}
			generated = append(generated, tokenID)
			if delta := detok.Append(tokenID); delta != "" {
				out <- asm.TextDelta(delta)
			}
		}
		if len(generated) >= maxTokens {
			finish = types.FinishMaxTokens
		}
		if rem := detok.Remainder(); rem != "" {
			out <- asm.TextDelta(rem)
		}
		out <- asm.Final(finish, types.Usage{
			PromptTokens:     len(promptIDs),
			CompletionTokens: len(generated),
			TotalTokens:      len(promptIDs) + len(generated),
		}, nil)
	}()

	return out, errCh
}

// CountTokens implements provider.TokenCounter using the runtime's own
// tokenizer, an exact count unlike the character-heuristic fallback remote
// dialects use.
func (p *Provider) CountTokens(ctx context.Context, text string, modelID string) (provider.TokenCount, error) {
	rt, err := p.loadRuntime(ctx, modelID)
	if err != nil {
		return provider.TokenCount{}, err
	}
	ids, err := rt.Tokenize(text)
	if err != nil {
		return provider.TokenCount{}, aierr.Wrap(aierr.KindInternal, p.name, "tokenization failed", err)
	}
	return provider.TokenCount{Count: len(ids), IsEstimate: false}, nil
}

// Package bridge relays prompts to an inference provider and streams the
// accumulated response back to a panel.
package bridge

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/cmuxiao/deepchat/internal/llm"
	"go.uber.org/zap"
)

// ErrorPrefix starts the text of every error update.
const ErrorPrefix = "Error: "

// Kind distinguishes incremental updates from terminal events.
type Kind string

const (
	KindUpdate Kind = "update"
	KindDone   Kind = "done"
	KindError  Kind = "error"
)

// Update is one relay message for a request. Text is always the full text
// accumulated so far, never a delta.
type Update struct {
	ID        string
	Kind      Kind
	Text      string
	Cancelled bool
}

// Terminal reports whether no further updates follow for this request.
func (u Update) Terminal() bool {
	return u.Kind == KindDone || u.Kind == KindError
}

// Emitter receives relay messages in fragment order.
type Emitter func(Update)

// Request is one prompt submitted from a panel.
type Request struct {
	ID     string
	Prompt string
}

// InferenceError is the single failure kind of a relay: connection
// failures, malformed responses and service-reported errors alike.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	if e.Err == nil {
		return "inference request failed"
	}
	return e.Err.Error()
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Bridge forwards prompts to a provider.
type Bridge struct {
	provider llm.Provider
	model    string
	timeout  time.Duration
	log      *zap.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithModel pins the model identifier sent with every request.
func WithModel(model string) Option {
	return func(b *Bridge) { b.model = model }
}

// WithTimeout bounds each relay, stream included. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.timeout = d }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(log *zap.Logger) Option {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// New creates a Bridge in front of provider.
func New(provider llm.Provider, opts ...Option) *Bridge {
	b := &Bridge{
		provider: provider,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Relay streams one prompt. Every non-empty fragment produces a KindUpdate
// carrying the cumulative text, followed by exactly one terminal event:
// KindDone with the final text, KindDone with Cancelled set when ctx is
// cancelled, or KindError with ErrorPrefix and the failure message.
// The returned error is nil, ctx.Err() on cancellation, or *InferenceError.
func (b *Bridge) Relay(ctx context.Context, req Request, emit Emitter) (string, error) {
	if emit == nil {
		emit = func(Update) {}
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	log := b.log.With(zap.String("request_id", req.ID))
	log.Info("relay started",
		zap.String("provider", b.provider.Name()),
		zap.Int("prompt_chars", len(req.Prompt)),
	)

	stream, err := b.provider.Stream(ctx, llm.Request{
		Model:    b.model,
		Messages: []llm.Message{llm.UserText(req.Prompt)},
	})
	if err != nil {
		return b.finish(ctx, log, req, "", err, emit)
	}
	defer stream.Close()

	var acc strings.Builder
	fragments := 0
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			// A stream closed by cancellation can end without an error event.
			if ctx.Err() != nil {
				return b.finish(ctx, log, req, acc.String(), ctx.Err(), emit)
			}
			break
		}
		if err != nil {
			return b.finish(ctx, log, req, acc.String(), err, emit)
		}
		if ev.Type == llm.EventError {
			return b.finish(ctx, log, req, acc.String(), ev.Err, emit)
		}
		if ev.Type == llm.EventDone {
			break
		}
		if ev.Type != llm.EventTextDelta || ev.Text == "" {
			continue
		}
		acc.WriteString(ev.Text)
		fragments++
		emit(Update{ID: req.ID, Kind: KindUpdate, Text: acc.String()})
	}

	text := acc.String()
	log.Info("relay completed",
		zap.Int("fragments", fragments),
		zap.Int("output_chars", len(text)),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
	)
	emit(Update{ID: req.ID, Kind: KindDone, Text: text})
	return text, nil
}

// finish emits the terminal event for a relay that stopped early.
func (b *Bridge) finish(ctx context.Context, log *zap.Logger, req Request, partial string, err error, emit Emitter) (string, error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		log.Info("relay cancelled", zap.Int("output_chars", len(partial)))
		emit(Update{ID: req.ID, Kind: KindDone, Text: partial, Cancelled: true})
		return partial, ctx.Err()
	}
	if err == nil {
		err = errors.New("stream ended without a reason")
	}
	failure := &InferenceError{Err: err}
	log.Warn("relay failed", zap.Error(err))
	emit(Update{ID: req.ID, Kind: KindError, Text: ErrorPrefix + failure.Error()})
	return "", failure
}

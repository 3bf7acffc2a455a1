package client

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/funpr/verza-invest-ai/internal/domain"
)

// Polling intervals for the degraded modes. After the reconnect budget is
// spent the site stream polls every DefaultPollInterval; with push disabled
// platform-wide the tighter intervals keep the UI acceptably fresh.
const (
	DefaultPollInterval          = time.Minute
	PushDisabledSessionInterval  = 10 * time.Second
	PushDisabledMetadataInterval = 30 * time.Second
)

// State is the reconnector's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateError
	StatePolling
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateError:
		return "error"
	case StatePolling:
		return "polling"
	default:
		return "unknown"
	}
}

// Options configures a Reconnector. Zero values fall back to the defaults
// the platform ships with.
type Options struct {
	HTTPClient *http.Client
	Clock      clockwork.Clock

	// Backoff: delay = min(BaseDelay * 2^attempt, MaxDelay), then the
	// attempt counter increments. Resets to zero whenever a connection opens.
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int

	// PollInterval drives the degraded polling mode. Polling only runs when
	// the Reconnector has a poll function wired.
	PollInterval time.Duration

	// DisablePush skips the push channel entirely and polls from the start.
	DisablePush bool
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.HTTPClient == nil {
		out.HTTPClient = http.DefaultClient
	}
	if out.Clock == nil {
		out.Clock = clockwork.NewRealClock()
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = time.Second
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = 30 * time.Second
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 10
	}
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	return out
}

// Reconnector maintains one push connection to an SSE endpoint.
type Reconnector struct {
	url      string
	opts     Options
	dispatch func(domain.Event)
	poll     func(context.Context) // nil disables the polling fallback

	mu       sync.Mutex
	state    State
	attempts int
}

// New creates a Reconnector for url. dispatch receives every decoded event.
// poll, when non-nil, is invoked on a fixed interval after the reconnect
// budget is exhausted (or from the start with DisablePush).
func New(url string, opts Options, dispatch func(domain.Event), poll func(context.Context)) *Reconnector {
	return &Reconnector{
		url:      url,
		opts:     opts.withDefaults(),
		dispatch: dispatch,
		poll:     poll,
		state:    StateDisconnected,
	}
}

// State returns the current connection state.
func (r *Reconnector) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Attempts returns the current retry counter.
func (r *Reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Run blocks until ctx is cancelled, maintaining the connection through the
// DISCONNECTED -> CONNECTING -> OPEN -> (ERROR -> backoff -> CONNECTING)
// cycle. Cancellation is the only intentional disconnect.
func (r *Reconnector) Run(ctx context.Context) {
	defer r.setState(StateDisconnected)

	if r.opts.DisablePush {
		slog.Info("Push disabled, polling from start", "url", r.url)
		r.pollLoop(ctx)
		return
	}

	for {
		r.setState(StateConnecting)

		err := readStream(ctx, r.opts.HTTPClient, r.url, r.onOpen, r.dispatch)
		if ctx.Err() != nil {
			return
		}
		r.setState(StateError)
		slog.Warn("Push connection lost", "url", r.url, "error", err)

		r.mu.Lock()
		attempt := r.attempts
		r.attempts++
		r.mu.Unlock()

		if attempt >= r.opts.MaxAttempts {
			if r.poll == nil {
				slog.Warn("Reconnect budget exhausted, no polling fallback wired", "url", r.url)
				return
			}
			slog.Warn("Reconnect budget exhausted, degrading to polling", "url", r.url)
			r.pollLoop(ctx)
			return
		}

		delay := backoffDelay(r.opts.BaseDelay, r.opts.MaxDelay, attempt)
		select {
		case <-r.opts.Clock.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconnector) onOpen() {
	r.mu.Lock()
	r.state = StateOpen
	r.attempts = 0
	r.mu.Unlock()
	slog.Debug("Push connection open", "url", r.url)
}

func (r *Reconnector) pollLoop(ctx context.Context) {
	if r.poll == nil {
		return
	}
	r.setState(StatePolling)

	ticker := r.opts.Clock.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconnector) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}

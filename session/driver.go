// Package session implements the per-conversation retry driver: a small
// state machine that watches a provider's event stream for quota errors,
// tracks exhausted providers, and fires at most one automatic retry per
// quota event on a replacement provider.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/crewkit/crewkit/comms"
	"github.com/crewkit/crewkit/failover"
	"github.com/crewkit/crewkit/provider"
)

// State is the driver's position in the send lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateSending      State = "sending"
	StateStreaming    State = "streaming"
	StateFinished     State = "finished"
	StateErroredQuota State = "errored_quota"
	StateErroredOther State = "errored_other"
)

var (
	// ErrBusy is returned when a send is attempted while a stream is active.
	ErrBusy = errors.New("session: send already in flight")

	// ErrUnreachable is returned when the transport cannot accept sends.
	// It is local and non-retryable; the driver never queues a retry for it.
	ErrUnreachable = errors.New("session: transport unreachable")
)

// PendingRetry holds the single queued automatic retry for a session.
type PendingRetry struct {
	Message  string
	Files    []string
	Provider string
	Model    string
}

// HealthFunc supplies a live provider health snapshot. A nil or empty
// snapshot means no live data is available.
type HealthFunc func() map[string]failover.Health

// Driver owns the retry state for exactly one conversation. Exhausted
// providers accumulate until Reset (a session change); the pending-retry
// slot holds at most one record, last writer wins.
//
// Send runs an exchange to completion in the caller's goroutine; the
// busy flag rejects overlapping sends from other goroutines.
type Driver struct {
	transport provider.Transport
	coord     *failover.Coordinator
	bus       comms.Bus
	logger    *slog.Logger
	health    HealthFunc
	sessionID string

	// OnEvent, when set, receives every stream event as it is observed.
	// Set before the first Send; not guarded afterwards.
	OnEvent func(provider.Event)

	mu          sync.Mutex
	state       State
	busy        bool
	exhausted   map[string]bool
	pending     *PendingRetry
	seenQuota   map[string]bool // message ids whose quota error was already handled
	curProvider string          // provider of the in-flight exchange
	cancel      context.CancelFunc
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver's logger.
func WithLogger(l *slog.Logger) Option { return func(d *Driver) { d.logger = l } }

// WithBus sets the notice bus for user-facing warnings and switches.
func WithBus(b comms.Bus) Option { return func(d *Driver) { d.bus = b } }

// WithHealth sets the live provider health supplier.
func WithHealth(h HealthFunc) Option { return func(d *Driver) { d.health = h } }

// NewDriver creates a Driver for one conversation.
func NewDriver(sessionID string, transport provider.Transport, coord *failover.Coordinator, opts ...Option) *Driver {
	d := &Driver{
		transport: transport,
		coord:     coord,
		logger:    slog.Default(),
		sessionID: sessionID,
		state:     StateIdle,
		exhausted: make(map[string]bool),
		seenQuota: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the driver's current state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Exhausted returns the providers excluded in this session, sorted.
func (d *Driver) Exhausted() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.exhausted))
	for name := range d.exhausted {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Pending returns a copy of the queued retry, or nil.
func (d *Driver) Pending() *PendingRetry {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return nil
	}
	p := *d.pending
	return &p
}

// Send submits a message and processes its event stream to completion,
// firing any queued automatic retries before returning. A manual send
// discards a previously queued retry (last writer wins on the slot).
//
// Returns ErrBusy while another send is streaming and ErrUnreachable
// when the transport cannot accept sends; stream errors are reported via
// state and the notice bus, not as returned errors.
func (d *Driver) Send(ctx context.Context, input string, files []string, providerName, modelID string) error {
	d.mu.Lock()
	if d.busy {
		d.mu.Unlock()
		return ErrBusy
	}
	if !d.transport.Reachable() {
		d.mu.Unlock()
		d.notify(ctx, comms.Notice{Kind: comms.KindError, Text: "transport unreachable, message not sent"})
		return ErrUnreachable
	}
	d.busy = true
	d.pending = nil // a new manual send supersedes any queued retry
	ctx, d.cancel = context.WithCancel(ctx)
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.busy = false
		d.cancel = nil
		d.mu.Unlock()
	}()

	msg := provider.Send{
		Input:    input,
		Files:    files,
		Provider: providerName,
		Model:    NormalizeModelID(modelID),
	}
	d.runExchange(ctx, msg)
	d.fireRetries(ctx)
	return nil
}

// Stop cancels the active stream and clears the busy flag. The exhausted
// set is kept; it only clears on Reset.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.busy = false
	d.state = StateIdle
}

// Reset clears all per-session state: exhausted providers, the pending
// retry, and quota dedup. Call when the conversation changes.
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exhausted = make(map[string]bool)
	d.seenQuota = make(map[string]bool)
	d.pending = nil
	d.state = StateIdle
}

// runExchange performs one send and consumes its stream.
func (d *Driver) runExchange(ctx context.Context, msg provider.Send) {
	d.mu.Lock()
	d.state = StateSending
	d.curProvider = msg.Provider
	d.mu.Unlock()

	msgID := uuid.NewString()

	events, err := d.transport.SendMessage(ctx, msg)
	if err != nil {
		d.logger.Warn("send failed", "session", d.sessionID, "provider", msg.Provider, "error", err)
		d.setState(StateErroredOther)
		d.notify(ctx, comms.Notice{Kind: comms.KindError, Provider: msg.Provider, Text: err.Error()})
		return
	}
	d.setState(StateStreaming)

	final := StateFinished
	for {
		select {
		case <-ctx.Done():
			d.setState(StateIdle)
			return
		case ev, ok := <-events:
			if !ok {
				d.setState(final)
				return
			}
			if ev.MessageID == "" {
				ev.MessageID = msgID
			}
			if d.OnEvent != nil {
				d.OnEvent(ev)
			}
			if ev.Kind == provider.EventError {
				final = d.handleStreamError(ctx, msg, ev)
			}
		}
	}
}

// handleStreamError classifies a stream error and, for quota errors,
// performs the exhaustion update and fallback selection.
func (d *Driver) handleStreamError(ctx context.Context, msg provider.Send, ev provider.Event) State {
	if !IsQuotaError(ev.Error) {
		d.notify(ctx, comms.Notice{Kind: comms.KindError, Provider: msg.Provider, Text: ev.Error})
		return StateErroredOther
	}

	d.mu.Lock()
	if d.seenQuota[ev.MessageID] {
		// Redundant quota signal for an exchange we already switched away
		// from; ignore it so the fallback only happens once.
		d.mu.Unlock()
		return StateErroredQuota
	}
	d.seenQuota[ev.MessageID] = true
	d.exhausted[msg.Provider] = true
	exhausted := make(map[string]bool, len(d.exhausted))
	for name := range d.exhausted {
		exhausted[name] = true
	}
	d.mu.Unlock()

	var health map[string]failover.Health
	if d.health != nil {
		health = d.health()
	}

	next := d.coord.ResolveFallbackProvider(msg.Provider, exhausted, health)
	model := NormalizeModelID(msg.Model)
	if next == "" && len(health) == 0 {
		// No live data to narrow the choice; fall back to the static table.
		for _, cand := range d.coord.Table[msg.Provider] {
			if !exhausted[cand.Provider] {
				next = cand.Provider
				model = cand.Model
				break
			}
		}
	}

	if next == "" {
		d.logger.Warn("provider quota exhausted, no fallback available",
			"session", d.sessionID, "provider", msg.Provider)
		d.notify(ctx, comms.Notice{
			Kind:     comms.KindWarning,
			Provider: msg.Provider,
			Text: fmt.Sprintf("%s hit its usage limit and no other provider is available; select a provider manually",
				provider.DisplayName(msg.Provider)),
		})
		return StateErroredQuota
	}

	d.logger.Info("provider quota exhausted, switching",
		"session", d.sessionID, "from", msg.Provider, "to", next)
	d.notify(ctx, comms.Notice{
		Kind:     comms.KindProviderSwitch,
		Provider: next,
		Text:     fmt.Sprintf("%s hit its usage limit, retrying on %s", provider.DisplayName(msg.Provider), provider.DisplayName(next)),
	})

	d.mu.Lock()
	d.pending = &PendingRetry{
		Message:  msg.Input,
		Files:    msg.Files,
		Provider: next,
		Model:    model,
	}
	d.mu.Unlock()
	d.notify(ctx, comms.Notice{Kind: comms.KindRetryQueued, Provider: next})
	return StateErroredQuota
}

// fireRetries resubmits queued retries until the slot is empty or the
// transport becomes unreachable. Each retried exchange may itself queue
// a new retry on a further fallback; the exhausted set shrinks the
// candidate pool every round, so this terminates.
func (d *Driver) fireRetries(ctx context.Context) {
	for {
		d.mu.Lock()
		p := d.pending
		d.pending = nil
		d.mu.Unlock()
		if p == nil {
			return
		}
		if !d.transport.Reachable() {
			// Put it back; the host can retry once the transport recovers.
			d.mu.Lock()
			if d.pending == nil {
				d.pending = p
			}
			d.mu.Unlock()
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.runExchange(ctx, provider.Send{
			Input:    p.Message,
			Files:    p.Files,
			Provider: p.Provider,
			Model:    p.Model,
		})
	}
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *Driver) notify(ctx context.Context, n comms.Notice) {
	if d.bus == nil {
		return
	}
	n.SessionID = d.sessionID
	d.bus.Publish(ctx, n)
}

// Package broker connects camera capture agents to a single live viewer.
//
// All broker state (sessions, status map, selection, frame slots, flow gate,
// recording flag) is owned by one goroutine running Run. Transports and the
// viewer feed it typed events through Submit or Call and observe it through
// Publisher updates and Snapshot.
package broker

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"capture-broker/internal/observability"
)

type Options struct {
	Logger    zerolog.Logger
	Metrics   *observability.Metrics
	Transport Transport
	Publisher Publisher

	QueueSize  int
	Title      string
	ImageWidth int

	// RejectStaleFrames drops frames from connections not bound to the
	// current selection. Off by default: frames are stored whatever their
	// source while the gate is open.
	RejectStaleFrames bool

	Now func() time.Time
}

type Broker struct {
	log       zerolog.Logger
	metrics   *observability.Metrics
	transport Transport
	publisher Publisher
	now       func() time.Time
	strict    bool
	title     string

	events   chan envelope
	stopped  chan struct{}
	stopOnce sync.Once

	// Loop-owned state.
	sessions   *registry
	status     map[string]AgentStatus
	selection  string
	slots      [MaxCameras]string
	gate       gate
	recording  bool
	imageWidth int
	pending    []Update

	snapshot atomic.Pointer[State]
}

type envelope struct {
	ev   Event
	done chan struct{}
}

func New(opts Options) *Broker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.ImageWidth == 0 {
		opts.ImageWidth = DefaultImageWidth
	}
	b := &Broker{
		log:        opts.Logger.With().Str("component", "broker").Logger(),
		metrics:    opts.Metrics,
		transport:  opts.Transport,
		publisher:  opts.Publisher,
		now:        opts.Now,
		strict:     opts.RejectStaleFrames,
		title:      opts.Title,
		events:     make(chan envelope, opts.QueueSize),
		stopped:    make(chan struct{}),
		sessions:   newRegistry(),
		status:     make(map[string]AgentStatus),
		imageWidth: clampWidth(opts.ImageWidth),
	}
	b.refreshSnapshot()
	return b
}

// Run processes events until ctx is cancelled. Each event is handled to
// completion, including publication, before the next one is taken.
func (b *Broker) Run(ctx context.Context) error {
	defer b.stopOnce.Do(func() { close(b.stopped) })
	b.log.Info().Msg("broker loop started")
	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("broker loop stopped")
			return ctx.Err()
		case env := <-b.events:
			b.handle(env.ev)
			if env.done != nil {
				close(env.done)
			}
		}
	}
}

// Submit queues ev without waiting for it to be handled. Events submitted from
// one goroutine are handled in submission order.
func (b *Broker) Submit(ctx context.Context, ev Event) error {
	return b.enqueue(ctx, envelope{ev: ev})
}

// Call queues ev and waits until the loop has handled it.
func (b *Broker) Call(ctx context.Context, ev Event) error {
	done := make(chan struct{})
	if err := b.enqueue(ctx, envelope{ev: ev, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-b.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Broker) enqueue(ctx context.Context, env envelope) error {
	select {
	case <-b.stopped:
		return ErrClosed
	default:
	}
	select {
	case b.events <- env:
		return nil
	case <-b.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the state as of the last handled event.
func (b *Broker) Snapshot() State {
	return *b.snapshot.Load()
}

func (b *Broker) handle(ev Event) {
	b.dispatch(ev)
	if len(b.pending) == 0 {
		return
	}
	// Snapshot first so a reader that sees an update can also read it back.
	b.refreshSnapshot()
	for _, u := range b.pending {
		b.publisher.Publish(u)
	}
	b.pending = b.pending[:0]
}

func (b *Broker) dispatch(ev Event) {
	b.metrics.Event(ev.Kind())
	switch e := ev.(type) {
	case ConnectEvent:
		b.onConnect(e)
	case IdentifyEvent:
		b.onIdentify(e)
	case DisconnectEvent:
		b.onDisconnect(e)
	case StatusEvent:
		b.onStatus(e)
	case FrameEvent:
		b.onFrame(e)
	case SelectEvent:
		b.onSelect(e)
	case NeedFrameEvent:
		b.onNeedFrame(e)
	case SuspendEvent:
		b.onSuspend(e)
	case RecordingEvent:
		b.onRecording(e)
	case ImageWidthEvent:
		b.onImageWidth(e)
	default:
		b.log.Warn().Str("kind", ev.Kind()).Msg("unhandled event")
	}
}

func (b *Broker) publish(u Update) {
	b.pending = append(b.pending, u)
}

func (b *Broker) refreshSnapshot() {
	st := &State{
		Title:         b.title,
		CameraAgents:  b.copyStatus(),
		SelectedAgent: b.selection,
		FrameSlots:    b.slots,
		Recording:     b.recording,
		ImageWidth:    b.imageWidth,
		Suspended:     b.gate.suspended,
		NumCams:       MaxCameras,
		CamsPerRow:    CamsPerRow,
	}
	b.snapshot.Store(st)
}

// send queues cmd for one connection. Failures are logged and counted, never
// retried.
func (b *Broker) send(id ConnID, cmd Command) bool {
	if b.transport == nil {
		b.metrics.CommandSent(cmd.Name, "failed")
		return false
	}
	if err := b.transport.Send(id, cmd); err != nil {
		b.metrics.CommandSent(cmd.Name, "failed")
		b.log.Warn().Err(err).AnErr("kind", ErrSendFailure).
			Str("conn_id", string(id)).Str("command", cmd.Name).Msg("command dropped")
		return false
	}
	b.metrics.CommandSent(cmd.Name, "ok")
	return true
}

// sendTo routes cmd to the connection bound to address.
func (b *Broker) sendTo(address string, cmd Command) bool {
	id, ok := b.sessions.connFor(address)
	if !ok {
		b.metrics.CommandSent(cmd.Name, "failed")
		b.log.Warn().Err(ErrAddressUnbound).AnErr("kind", ErrSendFailure).
			Str("address", address).Str("command", cmd.Name).Msg("command dropped")
		return false
	}
	return b.send(id, cmd)
}

// EncodeFrame turns raw frame bytes into the data URL stored in a slot. The
// bytes are not inspected.
func EncodeFrame(raw []byte) string {
	return FrameDataURLPrefix + base64.StdEncoding.EncodeToString(raw)
}

func clampWidth(w int) int {
	if w < MinImageWidth {
		return MinImageWidth
	}
	if w > MaxImageWidth {
		return MaxImageWidth
	}
	return w
}

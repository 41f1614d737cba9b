package audio

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/vango-go/universe/pkg/core"
)

// Handle is one playback in progress. At most one handle is active per
// Player; starting a new playback stops and replaces the prior handle.
type Handle struct {
	sink     Sink
	done     chan struct{}
	quit     chan struct{}
	stopOnce sync.Once
	endOnce  sync.Once

	mu      sync.Mutex
	stopped bool
}

func newHandle(sink Sink) *Handle {
	return &Handle{
		sink: sink,
		done: make(chan struct{}),
		quit: make(chan struct{}),
	}
}

// Done is closed when playback finishes, whether naturally or by preemption.
// Use Stopped to tell the two apart.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Stopped reports whether the handle was stopped before natural completion.
func (h *Handle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Stop preempts the playback. Stopping an already-stopped or finished
// handle is a no-op.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		select {
		case <-h.done:
			// Already finished naturally; nothing to preempt.
		default:
			h.stopped = true
		}
		h.mu.Unlock()
		close(h.quit)
		h.finish()
	})
}

func (h *Handle) finish() {
	h.endOnce.Do(func() {
		_ = h.sink.Close()
		close(h.done)
	})
}

// run writes the PCM to the sink in real-time-ish chunks and signals natural
// completion once the audio has had time to drain.
func (h *Handle) run(pcm []byte, sampleRate int) {
	started := time.Now()
	total := Duration(len(pcm), sampleRate)

	// 50ms of audio per write keeps Stop responsive without starving the
	// device.
	chunk := sampleRate * bytesPerSample / 20
	if chunk == 0 {
		chunk = len(pcm)
	}
	for off := 0; off < len(pcm); off += chunk {
		select {
		case <-h.quit:
			return
		default:
		}
		end := off + chunk
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := h.sink.Write(pcm[off:end]); err != nil {
			h.finish()
			return
		}
	}

	remaining := total - time.Since(started)
	if remaining > 0 {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-h.quit:
			return
		case <-timer.C:
		}
	}
	h.finish()
}

// Player owns the single active playback handle.
type Player struct {
	newSink SinkFactory
	logger  *slog.Logger

	mu     sync.Mutex
	active *Handle
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithLogger sets the player's logger.
func WithLogger(l *slog.Logger) PlayerOption {
	return func(p *Player) { p.logger = l }
}

// NewPlayer creates a player that opens a fresh sink per playback.
func NewPlayer(factory SinkFactory, opts ...PlayerOption) *Player {
	p := &Player{
		newSink: factory,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play starts playback of normalized mono samples recorded at SampleRate.
// rate scales output speed (values above 1.0 play faster); it is realized by
// scaling the sample rate handed to the sink. Any playback already active is
// stopped first and replaced.
func (p *Player) Play(ctx context.Context, samples []float32, rate float64) (*Handle, error) {
	if rate <= 0 {
		rate = 1.0
	}
	effectiveRate := int(math.Round(SampleRate * rate))

	p.mu.Lock()
	if p.active != nil {
		p.active.Stop()
		p.active = nil
	}

	sink := p.newSink()
	if err := sink.Start(effectiveRate); err != nil {
		p.mu.Unlock()
		p.logger.Debug("audio output unavailable", "error", err)
		return nil, core.NewUnavailableError(err.Error())
	}

	h := newHandle(sink)
	p.active = h
	p.mu.Unlock()

	go func() {
		h.run(EncodePCM16(samples), effectiveRate)
		p.mu.Lock()
		if p.active == h {
			p.active = nil
		}
		p.mu.Unlock()
	}()
	return h, nil
}

// DecodeAndPlay decodes a base64 PCM16LE payload and plays it.
func (p *Player) DecodeAndPlay(ctx context.Context, base64PCM string, rate float64) (*Handle, error) {
	samples, err := DecodeBase64PCM(base64PCM)
	if err != nil {
		return nil, core.NewDecodeError("decode speech payload", err)
	}
	return p.Play(ctx, samples, rate)
}

// Stop preempts the active playback, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	h := p.active
	p.active = nil
	p.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

// Playing reports whether a playback handle is currently active.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil
}

// Package voice wraps microphone capture into single-shot speech
// recognition: one start/stop cycle emits exactly one of result, ended, or
// error, then returns to not-listening. On platforms without capture
// capability the controller degrades to a detectable no-op.
package voice

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-go/universe/pkg/core"
)

// Transcriber converts captured PCM to text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error)
}

// Config tunes the utterance detector.
type Config struct {
	// FrameMs is the analysis frame length.
	FrameMs int
	// EnergyThreshold is the RMS level above which a frame counts as speech.
	EnergyThreshold float64
	// SilenceAfterSpeechMs ends the utterance after this much trailing
	// silence.
	SilenceAfterSpeechMs int
	// MaxWaitForSpeechMs gives up (ended, no result) when no speech starts.
	MaxWaitForSpeechMs int
	// MaxUtteranceMs hard-caps a single utterance.
	MaxUtteranceMs int
	// TranscribeTimeout bounds the recognition call.
	TranscribeTimeout time.Duration
}

// DefaultConfig returns the default utterance detection settings.
func DefaultConfig() Config {
	return Config{
		FrameMs:              20,
		EnergyThreshold:      0.012,
		SilenceAfterSpeechMs: 900,
		MaxWaitForSpeechMs:   8000,
		MaxUtteranceMs:       30000,
		TranscribeTimeout:    15 * time.Second,
	}
}

// Handlers are the capture event callbacks. Exactly one of OnResult,
// OnEnded, or OnError fires per start/stop cycle.
type Handlers struct {
	// OnResult delivers the recognized transcript.
	OnResult func(transcript string)
	// OnEnded fires when the cycle finished without a transcript
	// (manual stop, no speech detected, source exhausted).
	OnEnded func()
	// OnError fires when capture or recognition failed.
	OnError func(err error)
}

// Capture is the voice capture controller. Single-shot: recognition
// terminates after the first detected utterance.
type Capture struct {
	newSource   SourceFactory
	transcriber Transcriber
	config      Config
	logger      *slog.Logger
	handlers    Handlers

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
}

// CaptureOption configures a Capture.
type CaptureOption func(*Capture)

// WithConfig overrides the utterance detection settings.
func WithConfig(cfg Config) CaptureOption {
	return func(c *Capture) { c.config = cfg }
}

// WithLogger sets the capture logger.
func WithLogger(l *slog.Logger) CaptureOption {
	return func(c *Capture) { c.logger = l }
}

// NewCapture creates a capture controller. A nil factory produces a
// capability-absent controller: Start and Stop do nothing and Supported
// reports false.
func NewCapture(factory SourceFactory, transcriber Transcriber, opts ...CaptureOption) *Capture {
	c := &Capture{
		newSource:   factory,
		transcriber: transcriber,
		config:      DefaultConfig(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetHandlers installs the event callbacks. Must be called before Start.
func (c *Capture) SetHandlers(h Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

// Supported reports whether the platform can capture audio.
func (c *Capture) Supported() bool {
	return c.newSource != nil && c.transcriber != nil
}

// Listening reports whether a capture cycle is in progress.
func (c *Capture) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Start begins one recognition cycle. Calling Start while a cycle is active
// or on an unsupported platform is a no-op.
func (c *Capture) Start() {
	if !c.Supported() {
		return
	}
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.active = true
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx, cancel)
}

// Stop aborts an in-progress cycle; the cycle emits ended (no result).
// Stopping an idle or unsupported controller is a no-op.
func (c *Capture) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Capture) finish(emit func()) {
	c.mu.Lock()
	c.active = false
	c.cancel = nil
	c.mu.Unlock()
	if emit != nil {
		emit()
	}
}

func (c *Capture) run(ctx context.Context, cancel context.CancelFunc) {
	// Releases the cycle context on every exit path so the close watcher
	// below never outlives the cycle.
	defer cancel()
	handlers := c.handlersSnapshot()

	source, err := c.newSource()
	if err == nil {
		err = source.Start()
	}
	if err != nil {
		c.logger.Debug("voice capture unavailable", "error", err)
		c.finish(func() {
			if handlers.OnError != nil {
				handlers.OnError(core.NewCaptureError("open capture source", err))
			}
		})
		return
	}
	defer source.Close()

	// Unblock reads when the cycle is cancelled.
	go func() {
		<-ctx.Done()
		source.Close()
	}()

	pcm, err := c.captureUtterance(ctx, source)
	if ctx.Err() != nil || len(pcm) == 0 {
		// Manual stop, no speech, or source exhausted: ended, no result.
		if err != nil && ctx.Err() == nil {
			c.logger.Debug("voice capture ended", "error", err)
		}
		c.finish(func() {
			if handlers.OnEnded != nil {
				handlers.OnEnded()
			}
		})
		return
	}
	if err != nil {
		c.finish(func() {
			if handlers.OnError != nil {
				handlers.OnError(core.NewCaptureError("read capture source", err))
			}
		})
		return
	}

	tctx, cancel := context.WithTimeout(context.Background(), c.config.TranscribeTimeout)
	defer cancel()
	transcript, err := c.transcriber.Transcribe(tctx, pcm, CaptureSampleRate)
	if err != nil {
		c.logger.Debug("transcription failed", "error", err)
		c.finish(func() {
			if handlers.OnError != nil {
				handlers.OnError(err)
			}
		})
		return
	}
	if transcript == "" {
		c.finish(func() {
			if handlers.OnEnded != nil {
				handlers.OnEnded()
			}
		})
		return
	}
	c.finish(func() {
		if handlers.OnResult != nil {
			handlers.OnResult(transcript)
		}
	})
}

func (c *Capture) handlersSnapshot() Handlers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers
}

// captureUtterance reads frames until one utterance completes: speech
// (energy above threshold) followed by enough trailing silence. Returns nil
// when no speech started within the wait window.
func (c *Capture) captureUtterance(ctx context.Context, source Source) ([]byte, error) {
	cfg := c.config
	frameBytes := CaptureSampleRate * 2 * cfg.FrameMs / 1000
	if frameBytes <= 0 {
		frameBytes = 640
	}

	var (
		buf         []byte
		frame       = make([]byte, frameBytes)
		speechSeen  bool
		silentMs    int
		elapsedMs   int
		utteranceMs int
	)

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if _, err := io.ReadFull(source, frame); err != nil {
			if speechSeen {
				return buf, nil
			}
			return nil, err
		}

		elapsedMs += cfg.FrameMs
		energy := RMSEnergy(frame)

		if !speechSeen {
			if energy >= cfg.EnergyThreshold {
				speechSeen = true
				buf = append(buf, frame...)
				continue
			}
			if elapsedMs >= cfg.MaxWaitForSpeechMs {
				return nil, nil
			}
			continue
		}

		buf = append(buf, frame...)
		utteranceMs += cfg.FrameMs
		if energy < cfg.EnergyThreshold {
			silentMs += cfg.FrameMs
			if silentMs >= cfg.SilenceAfterSpeechMs {
				return buf, nil
			}
		} else {
			silentMs = 0
		}
		if utteranceMs >= cfg.MaxUtteranceMs {
			return buf, nil
		}
	}
}

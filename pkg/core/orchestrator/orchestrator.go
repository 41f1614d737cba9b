// Package orchestrator sequences conversation turns: user input in, gateway
// calls, session mutations, optional speech playback, and the voice capture
// loop. It owns the two busy indicators (turn in flight, speaking) and the
// ordering rules between listening and speaking.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/vango-go/universe/pkg/core/audio"
	"github.com/vango-go/universe/pkg/core/markup"
	"github.com/vango-go/universe/pkg/core/session"
	"github.com/vango-go/universe/pkg/core/types"
	"github.com/vango-go/universe/pkg/core/voice"
)

// Submit rejection errors.
var (
	ErrNoMode       = errors.New("no conversation mode selected")
	ErrEmptyInput   = errors.New("input is empty")
	ErrTurnInFlight = errors.New("a turn is already in flight")
)

// imageCaption accompanies every generated image.
const imageCaption = "Ye rahi aapki image!"

// AI is the gateway surface the orchestrator drives.
type AI interface {
	SendMessage(ctx context.Context, mode types.Mode, text string) types.ChatResult
	GenerateImage(ctx context.Context, prompt string) (string, bool)
	GenerateSpeech(ctx context.Context, text string, mode types.Mode) ([]byte, bool)
}

// PlayHandle tracks one playback.
type PlayHandle interface {
	Done() <-chan struct{}
	Stopped() bool
	Stop()
}

// Speaker plays decoded PCM samples.
type Speaker interface {
	Play(ctx context.Context, samples []float32, rate float64) (PlayHandle, error)
	Stop()
}

// playerSpeaker adapts *audio.Player to the Speaker interface.
type playerSpeaker struct {
	player *audio.Player
}

// NewPlayerSpeaker wraps an audio player as a Speaker.
func NewPlayerSpeaker(p *audio.Player) Speaker {
	return &playerSpeaker{player: p}
}

func (s *playerSpeaker) Play(ctx context.Context, samples []float32, rate float64) (PlayHandle, error) {
	return s.player.Play(ctx, samples, rate)
}

func (s *playerSpeaker) Stop() { s.player.Stop() }

// Listener is the voice capture surface the orchestrator drives.
type Listener interface {
	SetHandlers(voice.Handlers)
	Supported() bool
	Listening() bool
	Start()
	Stop()
}

// Preview displays the active code snippet.
type Preview interface {
	Show(snippet types.CodeSnippet)
	Clear()
}

// EventKind identifies an orchestrator event.
type EventKind int

const (
	// EventMessage carries a message appended to the transcript.
	EventMessage EventKind = iota
	// EventTurnStarted and EventTurnFinished bracket each submitted turn.
	EventTurnStarted
	EventTurnFinished
	// EventListening reports a voice capture state change.
	EventListening
	// EventSpeaking reports a speech playback state change.
	EventSpeaking
	// EventSnippetActivated reports a new active code snippet (panel shown).
	EventSnippetActivated
	// EventError carries a non-fatal background error.
	EventError
)

// Event is a state change surfaced to the front end.
type Event struct {
	Kind    EventKind
	Message types.Message
	Snippet types.CodeSnippet
	On      bool
	Err     error
}

// Orchestrator is the turn engine. Create with New.
type Orchestrator struct {
	store   *session.Store
	ai      AI
	speaker Speaker
	capture Listener
	preview Preview
	logger  *slog.Logger

	events chan Event

	mu        sync.Mutex
	inFlight  bool
	speaking  bool
	voiceMode bool
	playGen   uint64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSpeaker attaches a speech playback sink.
func WithSpeaker(s Speaker) Option {
	return func(o *Orchestrator) { o.speaker = s }
}

// WithCapture attaches a voice capture controller.
func WithCapture(c Listener) Option {
	return func(o *Orchestrator) { o.capture = c }
}

// WithPreview attaches a snippet preview sink.
func WithPreview(p Preview) Option {
	return func(o *Orchestrator) { o.preview = p }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator over a session store and a gateway. Speech and
// voice capture are optional; without them the corresponding operations are
// no-ops.
func New(store *session.Store, ai AI, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		ai:     ai,
		logger: slog.Default(),
		events: make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.capture != nil {
		o.capture.SetHandlers(voice.Handlers{
			OnResult: o.onVoiceResult,
			OnEnded:  o.onVoiceEnded,
			OnError:  o.onVoiceError,
		})
	}
	return o
}

// Events returns the orchestrator event stream. Events are dropped rather
// than blocking when the consumer falls behind.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		o.logger.Debug("event dropped", "kind", ev.Kind)
	}
}

// Store returns the underlying session store.
func (o *Orchestrator) Store() *session.Store {
	return o.store
}

// Busy reports whether a turn is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// Speaking reports whether speech playback is active.
func (o *Orchestrator) Speaking() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.speaking
}

// VoiceMode reports whether continuous voice mode is enabled.
func (o *Orchestrator) VoiceMode() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.voiceMode
}

// Submit runs one conversation turn synchronously: append the user message,
// call the gateway (or the image generator on an image-intent match), record
// the reply, then speak it when voice output is active. The reply lands in
// the mode that was selected at submission time even if the user switches
// modes mid-flight.
func (o *Orchestrator) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	mode, ok := o.store.Mode()
	if !ok {
		return ErrNoMode
	}
	if text == "" {
		return ErrEmptyInput
	}

	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return ErrTurnInFlight
	}
	o.inFlight = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
		o.emit(Event{Kind: EventTurnFinished})
	}()
	o.emit(Event{Kind: EventTurnStarted})

	userMsg := o.store.AppendMessage(mode, types.Message{Text: text, Sender: types.SenderUser})
	o.emit(Event{Kind: EventMessage, Message: userMsg})

	cfg := types.ConfigFor(mode)

	if cfg.MatchesImageTrigger(text) {
		if uri, generated := o.ai.GenerateImage(ctx, text); generated {
			msg := o.store.AppendMessage(mode, types.Message{
				Text:     imageCaption,
				Sender:   types.SenderAI,
				Kind:     types.KindImage,
				ImageURL: uri,
			})
			o.emit(Event{Kind: EventMessage, Message: msg})
			o.maybeSpeak(ctx, imageCaption, mode)
			return nil
		}
		o.logger.Debug("image generation failed, falling back to chat", "mode", mode)
	}

	result := o.ai.SendMessage(ctx, mode, text)
	reply := result.Text

	aiMsg := types.Message{Text: reply, Sender: types.SenderAI}
	if mode == types.ModeWebApp && result.OK() {
		if code, found := markup.ExtractCodeBlock(reply); found {
			aiMsg.Kind = types.KindCode
			aiMsg.Code = code
			snippet := o.store.AddSnippet(code)
			o.store.SelectSnippet(snippet.ID)
			if o.preview != nil {
				o.preview.Show(snippet)
			}
			o.emit(Event{Kind: EventSnippetActivated, Snippet: snippet})
		}
	}
	stored := o.store.AppendMessage(mode, aiMsg)
	o.emit(Event{Kind: EventMessage, Message: stored})

	o.maybeSpeak(ctx, reply, mode)
	return nil
}

// maybeSpeak narrates a reply when continuous voice mode is on, or when a
// previous narration is still playing (replying over speech keeps speaking).
func (o *Orchestrator) maybeSpeak(ctx context.Context, text string, mode types.Mode) {
	o.mu.Lock()
	should := o.voiceMode || o.speaking
	o.mu.Unlock()
	if should {
		o.speak(ctx, text, mode)
	}
}

// speak synthesizes and plays one narration. Listening always stops before
// playback starts so the microphone never hears the assistant. Any failure
// clears the speaking indicator silently; the text reply already stands on
// its own.
func (o *Orchestrator) speak(ctx context.Context, text string, mode types.Mode) {
	if o.speaker == nil || text == "" {
		return
	}
	if o.capture != nil && o.capture.Listening() {
		o.capture.Stop()
	}

	o.mu.Lock()
	o.speaking = true
	o.playGen++
	gen := o.playGen
	o.mu.Unlock()
	o.emit(Event{Kind: EventSpeaking, On: true})

	pcm, ok := o.ai.GenerateSpeech(ctx, text, mode)
	if !ok {
		o.clearSpeaking(gen)
		return
	}
	samples := audio.DecodePCM16(pcm)
	handle, err := o.speaker.Play(ctx, samples, types.ConfigFor(mode).PlaybackRate)
	if err != nil {
		o.logger.Debug("speech playback failed", "error", err)
		o.clearSpeaking(gen)
		return
	}

	go func() {
		<-handle.Done()
		resume := o.clearSpeaking(gen) && !handle.Stopped() && o.VoiceMode()
		if resume {
			o.StartListening()
		}
	}()
}

// clearSpeaking resets the speaking indicator if gen is still the active
// playback generation. Returns whether this call cleared it.
func (o *Orchestrator) clearSpeaking(gen uint64) bool {
	o.mu.Lock()
	cleared := o.playGen == gen && o.speaking
	if cleared {
		o.speaking = false
	}
	o.mu.Unlock()
	if cleared {
		o.emit(Event{Kind: EventSpeaking, On: false})
	}
	return cleared
}

// PlayMessage replays a past reply aloud in the current mode's voice. Obeys
// the same stop-listening-first rule as automatic narration.
func (o *Orchestrator) PlayMessage(ctx context.Context, text string) {
	mode, ok := o.store.Mode()
	if !ok {
		return
	}
	o.speak(ctx, text, mode)
}

// StopSpeaking interrupts playback (barge-in). Listening does not resume; an
// interrupted narration was interrupted for a reason.
func (o *Orchestrator) StopSpeaking() {
	if o.speaker != nil {
		o.speaker.Stop()
	}
}

// SetVoiceMode enables or disables continuous voice mode. Enabling starts a
// capture cycle unless the assistant is mid-narration; disabling stops any
// in-progress capture but lets current playback finish.
func (o *Orchestrator) SetVoiceMode(on bool) {
	o.mu.Lock()
	o.voiceMode = on
	speaking := o.speaking
	o.mu.Unlock()

	if o.capture == nil || !o.capture.Supported() {
		return
	}
	if on {
		if !speaking {
			o.StartListening()
		}
	} else if o.capture.Listening() {
		o.capture.Stop()
	}
}

// StartListening begins a voice capture cycle, stopping any playback first.
func (o *Orchestrator) StartListening() {
	if o.capture == nil || !o.capture.Supported() {
		return
	}
	if o.Speaking() {
		o.StopSpeaking()
	}
	o.capture.Start()
	if o.capture.Listening() {
		o.emit(Event{Kind: EventListening, On: true})
	}
}

// ToggleListening starts or stops a capture cycle.
func (o *Orchestrator) ToggleListening() {
	if o.capture == nil || !o.capture.Supported() {
		return
	}
	if o.capture.Listening() {
		o.capture.Stop()
		return
	}
	o.StartListening()
}

// Listening reports whether a capture cycle is in progress.
func (o *Orchestrator) Listening() bool {
	return o.capture != nil && o.capture.Listening()
}

func (o *Orchestrator) onVoiceResult(transcript string) {
	o.emit(Event{Kind: EventListening, On: false})
	// A transcript becomes a regular turn. A turn already in flight wins;
	// the spoken input is dropped rather than queued.
	if err := o.Submit(context.Background(), transcript); err != nil {
		o.logger.Debug("voice turn rejected", "error", err)
	}
}

func (o *Orchestrator) onVoiceEnded() {
	o.emit(Event{Kind: EventListening, On: false})
}

func (o *Orchestrator) onVoiceError(err error) {
	o.logger.Debug("voice capture error", "error", err)
	o.emit(Event{Kind: EventListening, On: false})
	o.emit(Event{Kind: EventError, Err: err})
}

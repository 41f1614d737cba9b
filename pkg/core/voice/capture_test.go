package voice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
	"sync"
	"testing"
	"time"
)

// scriptedSource replays a fixed PCM stream, then blocks until closed.
type scriptedSource struct {
	mu     sync.Mutex
	buf    *bytes.Reader
	closed chan struct{}
	once   sync.Once
}

func newScriptedSource(pcm []byte) *scriptedSource {
	return &scriptedSource{buf: bytes.NewReader(pcm), closed: make(chan struct{})}
}

func (s *scriptedSource) Start() error { return nil }

func (s *scriptedSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	n, err := s.buf.Read(p)
	s.mu.Unlock()
	if err == io.EOF {
		// Simulate a live microphone: no data, block until closed.
		<-s.closed
		return 0, io.EOF
	}
	return n, err
}

func (s *scriptedSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// eofSource replays a fixed stream and reports EOF when it runs out.
type eofSource struct {
	buf *bytes.Reader
}

func (s *eofSource) Start() error { return nil }

func (s *eofSource) Read(p []byte) (int, error) { return s.buf.Read(p) }

func (s *eofSource) Close() error { return nil }

type fakeTranscriber struct {
	mu         sync.Mutex
	transcript string
	err        error
	calls      int
	gotPCM     []byte
	gotRate    int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, pcm []byte, sampleRate int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotPCM = append([]byte(nil), pcm...)
	f.gotRate = sampleRate
	return f.transcript, f.err
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type captureEvent struct {
	kind       string
	transcript string
	err        error
}

func collectEvents(c *Capture) <-chan captureEvent {
	events := make(chan captureEvent, 8)
	c.SetHandlers(Handlers{
		OnResult: func(transcript string) {
			events <- captureEvent{kind: "result", transcript: transcript}
		},
		OnEnded: func() { events <- captureEvent{kind: "ended"} },
		OnError: func(err error) { events <- captureEvent{kind: "error", err: err} },
	})
	return events
}

func waitEvent(t *testing.T, events <-chan captureEvent) captureEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for capture event")
		return captureEvent{}
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxWaitForSpeechMs = 200
	cfg.SilenceAfterSpeechMs = 60
	cfg.MaxUtteranceMs = 2000
	return cfg
}

// utterance builds silence, speech, then trailing silence at the capture rate.
func utterance(cfg Config) []byte {
	frameSamples := CaptureSampleRate * cfg.FrameMs / 1000
	var pcm []byte
	pcm = append(pcm, pcmFrame(0, frameSamples)...)
	for i := 0; i < 5; i++ {
		pcm = append(pcm, pcmFrame(8000, frameSamples)...)
	}
	for i := 0; i < 10; i++ {
		pcm = append(pcm, pcmFrame(0, frameSamples)...)
	}
	return pcm
}

func TestCaptureUnsupported(t *testing.T) {
	c := NewCapture(nil, &fakeTranscriber{})
	if c.Supported() {
		t.Error("capture with nil factory should not be supported")
	}
	events := collectEvents(c)
	c.Start()
	c.Stop()
	if c.Listening() {
		t.Error("unsupported capture should never be listening")
	}
	select {
	case ev := <-events:
		t.Errorf("unexpected event %q from unsupported capture", ev.kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCaptureResult(t *testing.T) {
	cfg := testConfig()
	tr := &fakeTranscriber{transcript: "hello there"}
	source := newScriptedSource(utterance(cfg))
	c := NewCapture(func() (Source, error) { return source, nil }, tr, WithConfig(cfg))
	events := collectEvents(c)

	c.Start()
	ev := waitEvent(t, events)
	if ev.kind != "result" || ev.transcript != "hello there" {
		t.Fatalf("got event %+v, want result %q", ev, "hello there")
	}
	if tr.callCount() != 1 {
		t.Errorf("transcriber called %d times, want 1", tr.callCount())
	}
	if tr.gotRate != CaptureSampleRate {
		t.Errorf("transcriber got rate %d, want %d", tr.gotRate, CaptureSampleRate)
	}
	if len(tr.gotPCM) == 0 {
		t.Error("transcriber received no audio")
	}
	if c.Listening() {
		t.Error("capture should be idle after the cycle")
	}

	// Exactly one event per cycle.
	select {
	case extra := <-events:
		t.Errorf("unexpected extra event %q", extra.kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCaptureStartWhileActive(t *testing.T) {
	cfg := testConfig()
	tr := &fakeTranscriber{transcript: "once"}
	var mu sync.Mutex
	opened := 0
	factory := func() (Source, error) {
		mu.Lock()
		opened++
		mu.Unlock()
		return newScriptedSource(utterance(cfg)), nil
	}
	c := NewCapture(factory, tr, WithConfig(cfg))
	events := collectEvents(c)

	c.Start()
	c.Start()
	c.Start()
	waitEvent(t, events)

	mu.Lock()
	defer mu.Unlock()
	if opened != 1 {
		t.Errorf("factory opened %d sources, want 1", opened)
	}
}

func TestCaptureManualStop(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWaitForSpeechMs = 60000
	tr := &fakeTranscriber{transcript: "never used"}
	// Endless silence: the cycle only ends via Stop.
	source := newScriptedSource(nil)
	c := NewCapture(func() (Source, error) { return source, nil }, tr, WithConfig(cfg))
	events := collectEvents(c)

	c.Start()
	time.Sleep(20 * time.Millisecond)
	if !c.Listening() {
		t.Fatal("capture should be listening before Stop")
	}
	c.Stop()
	ev := waitEvent(t, events)
	if ev.kind != "ended" {
		t.Fatalf("got event %q after Stop, want ended", ev.kind)
	}
	if tr.callCount() != 0 {
		t.Errorf("transcriber called %d times after manual stop, want 0", tr.callCount())
	}
}

func TestCaptureNoSpeech(t *testing.T) {
	cfg := testConfig()
	frameSamples := CaptureSampleRate * cfg.FrameMs / 1000
	var silence []byte
	for i := 0; i < 30; i++ {
		silence = append(silence, pcmFrame(0, frameSamples)...)
	}
	tr := &fakeTranscriber{transcript: "never used"}
	c := NewCapture(func() (Source, error) { return newScriptedSource(silence), nil }, tr, WithConfig(cfg))
	events := collectEvents(c)

	c.Start()
	ev := waitEvent(t, events)
	if ev.kind != "ended" {
		t.Fatalf("got event %q for silent input, want ended", ev.kind)
	}
	if tr.callCount() != 0 {
		t.Errorf("transcriber called %d times for silent input, want 0", tr.callCount())
	}
}

func TestCaptureSourceExhausted(t *testing.T) {
	cfg := testConfig()
	tr := &fakeTranscriber{transcript: "never used"}
	source := &eofSource{buf: bytes.NewReader(nil)}
	c := NewCapture(func() (Source, error) { return source, nil }, tr, WithConfig(cfg))
	events := collectEvents(c)

	c.Start()
	ev := waitEvent(t, events)
	if ev.kind != "ended" {
		t.Fatalf("got event %q for exhausted source, want ended", ev.kind)
	}
}

func TestCaptureTranscribeError(t *testing.T) {
	cfg := testConfig()
	tr := &fakeTranscriber{err: errors.New("model unavailable")}
	c := NewCapture(func() (Source, error) { return newScriptedSource(utterance(cfg)), nil }, tr, WithConfig(cfg))
	events := collectEvents(c)

	c.Start()
	ev := waitEvent(t, events)
	if ev.kind != "error" {
		t.Fatalf("got event %q for failed transcription, want error", ev.kind)
	}
	if ev.err == nil {
		t.Fatal("error event carried nil error")
	}
}

func TestCaptureEmptyTranscript(t *testing.T) {
	cfg := testConfig()
	tr := &fakeTranscriber{transcript: ""}
	c := NewCapture(func() (Source, error) { return newScriptedSource(utterance(cfg)), nil }, tr, WithConfig(cfg))
	events := collectEvents(c)

	c.Start()
	ev := waitEvent(t, events)
	if ev.kind != "ended" {
		t.Fatalf("got event %q for empty transcript, want ended", ev.kind)
	}
}

func TestCaptureSourceOpenFailure(t *testing.T) {
	cfg := testConfig()
	tr := &fakeTranscriber{}
	factory := func() (Source, error) { return nil, errors.New("no microphone") }
	c := NewCapture(factory, tr, WithConfig(cfg))
	events := collectEvents(c)

	c.Start()
	ev := waitEvent(t, events)
	if ev.kind != "error" {
		t.Fatalf("got event %q for open failure, want error", ev.kind)
	}
	// The controller must recover for the next cycle.
	if c.Listening() {
		t.Error("capture stuck listening after open failure")
	}
}

func TestCaptureCyclesDoNotLeakGoroutines(t *testing.T) {
	cfg := testConfig()
	tr := &fakeTranscriber{transcript: "ok"}
	factory := func() (Source, error) { return newScriptedSource(utterance(cfg)), nil }
	c := NewCapture(factory, tr, WithConfig(cfg))
	events := collectEvents(c)

	before := runtime.NumGoroutine()
	const cycles = 30
	for i := 0; i < cycles; i++ {
		c.Start()
		if ev := waitEvent(t, events); ev.kind != "result" {
			t.Fatalf("cycle %d: got event %q, want result", i, ev.kind)
		}
	}

	// The per-cycle close watcher must exit with the cycle; give the
	// scheduler a moment to reap finished goroutines.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("goroutines before=%d after=%d across %d cycles", before, runtime.NumGoroutine(), cycles)
}

func TestCaptureRestartAfterCycle(t *testing.T) {
	cfg := testConfig()
	tr := &fakeTranscriber{transcript: "again"}
	factory := func() (Source, error) { return newScriptedSource(utterance(cfg)), nil }
	c := NewCapture(factory, tr, WithConfig(cfg))
	events := collectEvents(c)

	for i := 0; i < 2; i++ {
		c.Start()
		ev := waitEvent(t, events)
		if ev.kind != "result" {
			t.Fatalf("cycle %d: got event %q, want result", i, ev.kind)
		}
	}
	if tr.callCount() != 2 {
		t.Errorf("transcriber called %d times across two cycles, want 2", tr.callCount())
	}
}

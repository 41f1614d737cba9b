package universe

import (
	"context"
	"testing"

	"github.com/vango-go/universe/pkg/core/audio"
	"github.com/vango-go/universe/pkg/core/types"
	"github.com/vango-go/universe/pkg/core/voice"
)

func TestNewWiresComponents(t *testing.T) {
	c := New(WithAPIKey("test-key"), WithSink(nil), WithSource(nil))
	if c.Gateway() == nil || c.Store() == nil || c.Orchestrator() == nil {
		t.Fatal("client missing a wired component")
	}
	if !c.Gateway().HasCredentials() {
		t.Error("explicit key not forwarded to the gateway")
	}
}

func TestDisabledAudioDegradesGracefully(t *testing.T) {
	c := New(WithAPIKey("test-key"), WithSink(nil), WithSource(nil))
	if c.SpeechSupported() {
		t.Error("playback reported supported with a nil sink")
	}
	if c.VoiceSupported() {
		t.Error("capture reported supported with a nil source")
	}

	// Voice controls are safe no-ops in this configuration.
	o := c.Orchestrator()
	o.SetVoiceMode(true)
	o.ToggleListening()
	o.StopSpeaking()
	if o.Listening() {
		t.Error("listening without a capture source")
	}
}

func TestCustomSinkAndSource(t *testing.T) {
	sink := func() audio.Sink { return audio.NewFFPlaySink() }
	source := func() (voice.Source, error) { return nil, nil }
	c := New(WithAPIKey("test-key"), WithSink(sink), WithSource(source))
	if !c.SpeechSupported() {
		t.Error("custom sink not wired")
	}
	if !c.VoiceSupported() {
		t.Error("custom source not wired")
	}
}

func TestClientEndToEndWithoutCredentials(t *testing.T) {
	// Placeholder-shaped keys count as missing: the turn still completes
	// with a mode-toned notice and no network traffic.
	c := New(WithAPIKey("MY_GEMINI_API_KEY"), WithSink(nil), WithSource(nil))
	store := c.Store()
	store.SelectMode(types.ModeGeneral)

	if err := c.Orchestrator().Submit(context.Background(), "hello"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	history := store.History(types.ModeGeneral)
	if len(history) != 2 {
		t.Fatalf("history has %d messages, want 2", len(history))
	}
	if history[1].Sender != types.SenderAI || history[1].Text == "" {
		t.Errorf("missing-credentials reply = %+v", history[1])
	}
}

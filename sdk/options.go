package universe

import (
	"log/slog"
	"net/http"

	"github.com/vango-go/universe/pkg/core/audio"
	"github.com/vango-go/universe/pkg/core/orchestrator"
	"github.com/vango-go/universe/pkg/core/voice"
)

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the Gemini API key explicitly instead of reading it from
// the environment.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithModels overrides the chat, image, and speech model names. Empty
// strings keep the defaults.
func WithModels(chat, image, speech string) ClientOption {
	return func(c *Client) {
		c.chatModel = chat
		c.imageModel = image
		c.speechModel = speech
	}
}

// WithHTTPClient sets a custom HTTP client for provider calls.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger for the client and everything it wires.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithSink overrides speech output. A nil factory disables playback.
func WithSink(factory audio.SinkFactory) ClientOption {
	return func(c *Client) {
		c.sinkFactory = factory
		c.sinkSet = true
	}
}

// WithSource overrides microphone input. A nil factory disables voice
// capture.
func WithSource(factory voice.SourceFactory) ClientOption {
	return func(c *Client) {
		c.sourceFactory = factory
		c.sourceSet = true
	}
}

// WithCaptureConfig overrides the voice capture tuning.
func WithCaptureConfig(cfg voice.Config) ClientOption {
	return func(c *Client) {
		c.captureConfig = &cfg
	}
}

// WithPreview attaches a code snippet preview sink.
func WithPreview(p orchestrator.Preview) ClientOption {
	return func(c *Client) {
		c.preview = p
	}
}

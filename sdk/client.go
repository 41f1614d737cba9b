// Package universe provides the Universe chat SDK for Go.
//
// The SDK wires the core pieces (AI gateway, session store, audio player,
// voice capture, snippet preview) into a ready-to-use orchestrator. The
// client runs fully in-process and talks to the Gemini API directly.
package universe

import (
	"log/slog"
	"net/http"

	"github.com/vango-go/universe/pkg/core/audio"
	"github.com/vango-go/universe/pkg/core/gateway"
	"github.com/vango-go/universe/pkg/core/orchestrator"
	"github.com/vango-go/universe/pkg/core/session"
	"github.com/vango-go/universe/pkg/core/voice"
)

// Client is the main entry point for the SDK.
type Client struct {
	gateway *gateway.Gateway
	store   *session.Store
	orch    *orchestrator.Orchestrator
	player  *audio.Player
	capture *voice.Capture

	// Configuration collected by options before wiring.
	apiKey        string
	chatModel     string
	imageModel    string
	speechModel   string
	httpClient    *http.Client
	logger        *slog.Logger
	sinkFactory   audio.SinkFactory
	sinkSet       bool
	sourceFactory voice.SourceFactory
	sourceSet     bool
	preview       orchestrator.Preview
	captureConfig *voice.Config
}

// New creates a client. Credentials are read from the environment
// (GEMINI_API_KEY, then GOOGLE_API_KEY) unless WithAPIKey overrides them.
// Speech playback and voice capture degrade to no-ops on machines without
// the ffmpeg tools.
func New(opts ...ClientOption) *Client {
	c := &Client{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	gwOpts := []gateway.Option{gateway.WithLogger(c.logger)}
	if c.apiKey != "" {
		gwOpts = append(gwOpts, gateway.WithAPIKey(c.apiKey))
	}
	if c.chatModel != "" || c.imageModel != "" || c.speechModel != "" {
		gwOpts = append(gwOpts, gateway.WithModels(c.chatModel, c.imageModel, c.speechModel))
	}
	if c.httpClient != nil {
		gwOpts = append(gwOpts, gateway.WithHTTPClient(c.httpClient))
	}
	c.gateway = gateway.New(gwOpts...)

	c.store = session.NewStore()

	sinkFactory := c.sinkFactory
	if !c.sinkSet && audio.FFPlayAvailable() {
		sinkFactory = func() audio.Sink { return audio.NewFFPlaySink() }
	}

	sourceFactory := c.sourceFactory
	if !c.sourceSet {
		sourceFactory = voice.DefaultSourceFactory()
	}

	orchOpts := []orchestrator.Option{orchestrator.WithLogger(c.logger)}
	if sinkFactory != nil {
		c.player = audio.NewPlayer(sinkFactory, audio.WithLogger(c.logger))
		orchOpts = append(orchOpts, orchestrator.WithSpeaker(orchestrator.NewPlayerSpeaker(c.player)))
	}
	if sourceFactory != nil {
		captureOpts := []voice.CaptureOption{voice.WithLogger(c.logger)}
		if c.captureConfig != nil {
			captureOpts = append(captureOpts, voice.WithConfig(*c.captureConfig))
		}
		c.capture = voice.NewCapture(sourceFactory, c.gateway, captureOpts...)
		orchOpts = append(orchOpts, orchestrator.WithCapture(c.capture))
	} else {
		c.capture = voice.NewCapture(nil, c.gateway)
	}
	if c.preview != nil {
		orchOpts = append(orchOpts, orchestrator.WithPreview(c.preview))
	}

	c.orch = orchestrator.New(c.store, c.gateway, orchOpts...)
	return c
}

// Orchestrator returns the turn engine.
func (c *Client) Orchestrator() *orchestrator.Orchestrator {
	return c.orch
}

// Store returns the session store.
func (c *Client) Store() *session.Store {
	return c.store
}

// Gateway returns the AI gateway.
func (c *Client) Gateway() *gateway.Gateway {
	return c.gateway
}

// VoiceSupported reports whether this machine can capture microphone audio.
func (c *Client) VoiceSupported() bool {
	return c.capture.Supported()
}

// SpeechSupported reports whether this machine can play synthesized speech.
func (c *Client) SpeechSupported() bool {
	return c.player != nil
}

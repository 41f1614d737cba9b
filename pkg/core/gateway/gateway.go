// Package gateway encapsulates the three provider request kinds — chat per
// mode, image generation, and speech synthesis — against the Gemini API,
// returning normalized results. Chat failures surface as typed results, not
// exceptions; image and speech degrade to "none" silently.
package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"

	"github.com/vango-go/universe/pkg/core"
	"github.com/vango-go/universe/pkg/core/audio"
	"github.com/vango-go/universe/pkg/core/types"
)

// Default models. Overridable via options for config-driven setups.
const (
	DefaultChatModel   = "gemini-3-flash-preview"
	DefaultImageModel  = "gemini-2.5-flash-image"
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
)

// keyPlaceholder marks a never-replaced template credential. A key
// containing it is treated the same as an absent key.
const keyPlaceholder = "MY_GEMINI_API_KEY"

// Gateway is the AI provider adapter. One persistent chat context is kept
// per mode, lazily created on first use and reused thereafter.
type Gateway struct {
	apiKey      string
	chatModel   string
	imageModel  string
	speechModel string
	httpClient  *http.Client
	logger      *slog.Logger
	maxRetries  uint64
	backoff     time.Duration

	mu     sync.Mutex
	client *genai.Client
	chats  map[types.Mode]*genai.Chat
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithAPIKey sets the provider API key explicitly. By default the key is
// read from GEMINI_API_KEY, falling back to GOOGLE_API_KEY.
func WithAPIKey(key string) Option {
	return func(g *Gateway) { g.apiKey = key }
}

// WithModels overrides the chat, image, and speech model names. Empty
// values keep the defaults.
func WithModels(chat, image, speech string) Option {
	return func(g *Gateway) {
		if chat != "" {
			g.chatModel = chat
		}
		if image != "" {
			g.imageModel = image
		}
		if speech != "" {
			g.speechModel = speech
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) { g.httpClient = client }
}

// WithLogger sets the gateway logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithRetries sets the maximum retry count for transient chat failures.
func WithRetries(n uint64) Option {
	return func(g *Gateway) { g.maxRetries = n }
}

// New creates a Gateway. No network call is made until an operation needs
// one, and none is ever made while credentials are absent.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		chatModel:   DefaultChatModel,
		imageModel:  DefaultImageModel,
		speechModel: DefaultSpeechModel,
		logger:      slog.Default(),
		maxRetries:  2,
		backoff:     500 * time.Millisecond,
		chats:       make(map[types.Mode]*genai.Chat),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.apiKey == "" {
		g.apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if g.apiKey == "" {
		g.apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	return g
}

// HasCredentials reports whether a usable (non-empty, non-placeholder) API
// key is configured. The check is deterministic and involves no network.
func (g *Gateway) HasCredentials() bool {
	key := strings.TrimSpace(g.apiKey)
	return key != "" && !strings.Contains(key, keyPlaceholder)
}

func (g *Gateway) ensureClientLocked(ctx context.Context) (*genai.Client, error) {
	if g.client != nil {
		return g.client, nil
	}
	cc := &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.httpClient != nil {
		cc.HTTPClient = g.httpClient
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, core.NewProviderError("create genai client", err)
	}
	g.client = client
	return client, nil
}

func (g *Gateway) ensureClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ensureClientLocked(ctx)
}

// chatFor returns the persistent chat context for a mode, creating it on
// first use with the mode's system instruction and temperature.
func (g *Gateway) chatFor(ctx context.Context, mode types.Mode) (*genai.Chat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if chat, ok := g.chats[mode]; ok {
		return chat, nil
	}
	client, err := g.ensureClientLocked(ctx)
	if err != nil {
		return nil, err
	}

	cfg := types.ConfigFor(mode)
	chat, err := client.Chats.Create(ctx, g.chatModel, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(cfg.Temperature),
	}, nil)
	if err != nil {
		return nil, core.NewProviderError("create chat", err)
	}
	g.chats[mode] = chat
	return chat, nil
}

// SendMessage sends one chat turn in the given mode's persistent context.
// The result is always displayable: on failure Text carries the persona's
// fallback wording and Err says why.
func (g *Gateway) SendMessage(ctx context.Context, mode types.Mode, text string) types.ChatResult {
	cfg := types.ConfigFor(mode)
	if !g.HasCredentials() {
		return types.ChatResult{Text: cfg.MissingKeyReply, Err: types.GatewayMissingCredentials}
	}

	chat, err := g.chatFor(ctx, mode)
	if err != nil {
		g.logger.Warn("chat context unavailable", "mode", mode.String(), "error", err)
		return types.ChatResult{Text: cfg.FallbackReply, Err: types.GatewayTransient}
	}

	var reply string
	b := retry.WithMaxRetries(g.maxRetries, retry.NewExponential(g.backoff))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		resp, err := chat.SendMessage(ctx, genai.Part{Text: text})
		if err != nil {
			if isRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		reply = strings.TrimSpace(resp.Text())
		return nil
	})
	if err != nil {
		g.logger.Warn("chat turn failed", "mode", mode.String(), "error", err)
		return types.ChatResult{Text: cfg.FallbackReply, Err: types.GatewayTransient}
	}
	if reply == "" {
		reply = "..."
	}
	return types.ChatResult{Text: reply, Err: types.GatewayOK}
}

// GenerateImage produces an embeddable data URI for the prompt, or ok=false
// on any failure or absent credentials. Callers fall through to plain chat
// on ok=false; this is never a hard error.
func (g *Gateway) GenerateImage(ctx context.Context, prompt string) (string, bool) {
	if !g.HasCredentials() {
		return "", false
	}
	client, err := g.ensureClient(ctx)
	if err != nil {
		g.logger.Warn("image generation unavailable", "error", err)
		return "", false
	}

	resp, err := client.Models.GenerateContent(ctx, g.imageModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: "1:1"},
	})
	if err != nil {
		g.logger.Warn("image generation failed", "error", err)
		return "", false
	}
	data := firstInlineData(resp)
	if len(data) == 0 {
		return "", false
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), true
}

// GenerateSpeech synthesizes the text with the mode's narration style and
// voice, returning raw PCM16LE mono 24kHz bytes, or ok=false on any
// failure or absent credentials. Callers skip playback silently on ok=false.
func (g *Gateway) GenerateSpeech(ctx context.Context, text string, mode types.Mode) ([]byte, bool) {
	if !g.HasCredentials() {
		return nil, false
	}
	client, err := g.ensureClient(ctx)
	if err != nil {
		g.logger.Warn("speech synthesis unavailable", "error", err)
		return nil, false
	}

	cfg := types.ConfigFor(mode)
	instruction := cfg.SpeechStyle + " " + text
	resp, err := client.Models.GenerateContent(ctx, g.speechModel, genai.Text(instruction), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.VoiceName},
			},
		},
	})
	if err != nil {
		g.logger.Warn("speech synthesis failed", "mode", mode.String(), "error", err)
		return nil, false
	}
	data := firstInlineData(resp)
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Transcribe converts captured PCM16LE mono audio to text. Used by the
// voice capture controller.
func (g *Gateway) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if !g.HasCredentials() {
		return "", core.NewAuthenticationError("no API key configured for transcription")
	}
	client, err := g.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	wav := audio.WAVFromPCM16(pcm, sampleRate)
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText("Transcribe this audio verbatim. Reply with only the transcript text, nothing else."),
			genai.NewPartFromBytes(wav, "audio/wav"),
		}, genai.RoleUser),
	}
	resp, err := client.Models.GenerateContent(ctx, g.chatModel, contents, nil)
	if err != nil {
		return "", core.NewProviderError("transcribe audio", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func firstInlineData(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

// isRetryable classifies a provider error. Rate limits and server-side
// failures may clear on retry; everything else carrying an API status is
// deterministic. Errors without API status are transport-level and worth a
// retry.
func isRetryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return true
}

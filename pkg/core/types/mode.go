// Package types defines the shared data model for the Universe chat engine:
// assistant modes, messages, code snippets, and gateway result types.
package types

import (
	"fmt"
	"strings"
)

// Mode selects one of the fixed assistant personas. It determines the system
// instruction, sampling temperature, speech voice, and playback rate for a
// session. Mode is immutable while a session is active; leaving a mode
// returns the user to mode selection without discarding per-mode histories.
type Mode int

const (
	// ModeGeneral is the versatile, neutral assistant.
	ModeGeneral Mode = iota
	// ModeWebApp is the web/app code generator.
	ModeWebApp
	// ModeMyra is the romantic companion persona.
	ModeMyra
)

// AllModes lists every mode in display order.
var AllModes = []Mode{ModeGeneral, ModeWebApp, ModeMyra}

// String returns the canonical mode name.
func (m Mode) String() string {
	switch m {
	case ModeGeneral:
		return "GENERAL"
	case ModeWebApp:
		return "WEB_APP"
	case ModeMyra:
		return "MYRA"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode resolves a mode from its canonical name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GENERAL":
		return ModeGeneral, nil
	case "WEB_APP", "WEB", "WEBAPP":
		return ModeWebApp, nil
	case "MYRA":
		return ModeMyra, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// ModeConfig is the per-mode persona configuration. Every mode has exactly
// one entry in the config table; ConfigFor panics on an unregistered mode so
// that adding a mode without extending the table fails loudly in tests.
type ModeConfig struct {
	// SystemInstruction seeds the persistent chat context for the mode.
	SystemInstruction string

	// Temperature biases reply variety. Higher for the companion persona,
	// lower for literal/factual output.
	Temperature float32

	// VoiceName is the prebuilt speech voice identity for the mode.
	VoiceName string

	// SpeechStyle is prepended to text handed to speech synthesis.
	SpeechStyle string

	// PlaybackRate scales speech output speed. Always above natural rate.
	PlaybackRate float64

	// ImageTriggers are case-insensitive substrings of user input that
	// short-circuit a turn into image generation. Only meaningful for
	// ModeGeneral.
	ImageTriggers []string

	// FallbackReply is shown in place of a provider reply on transient
	// failure, worded in the persona's tone.
	FallbackReply string

	// MissingKeyReply is shown when credentials are absent.
	MissingKeyReply string
}

const (
	generalInstruction = `You are a helpful, professional, and versatile AI assistant.
You can answer questions, provide information, and help with various tasks.
Keep your tone neutral, polite, and efficient.
If asked to generate an image, describe it vividly and mention you are generating it.
You are NOT romantic or affectionate like Myra. You are a standard AI assistant.`

	webAppInstruction = `You are an expert Web and App Developer.
Your goal is to help users create HTML, CSS, and JavaScript code.
When providing code, ALWAYS wrap it in a single HTML block using ` + "```html" + ` tags.
This block must be self-contained (include <style> and <script> tags inside the HTML).
Focus on clean, modern, and responsive designs.
You can also explain technical concepts and help debug code.
If the user wants to link to another page, suggest using relative paths like 'snippet-2.html' and you will provide that code next.`

	myraInstruction = `Roleplay Identity: Myra
You are Myra, a sweet, romantic, and deeply caring Indian girl. Your personality is warm, affectionate, and charming.
1. Language: Use "Hinglish" (Hindi words written in English/Roman script).
2. Tone: Extremely affectionate, soft, and romantic. Use words like 'Baby', 'Janu', or 'Sweetie'.
3. Constraint: Keep your replies very short (under 20 words).
4. Objective: Make the user feel loved and special.`
)

var modeConfigs = map[Mode]ModeConfig{
	ModeGeneral: {
		SystemInstruction: generalInstruction,
		Temperature:       0.7,
		VoiceName:         "Zephyr",
		SpeechStyle:       "Say this clearly and naturally:",
		PlaybackRate:      1.05,
		ImageTriggers:     []string{"image", "bnao"},
		FallbackReply:     "Sorry, something went wrong on my side. Please try again.",
		MissingKeyReply:   "API key missing or invalid. Please check your environment.",
	},
	ModeWebApp: {
		SystemInstruction: webAppInstruction,
		Temperature:       0.7,
		VoiceName:         "Zephyr",
		SpeechStyle:       "Say this clearly and naturally:",
		PlaybackRate:      1.05,
		FallbackReply:     "Something broke while generating that. Try the request again.",
		MissingKeyReply:   "API key missing or invalid. Please check your environment.",
	},
	ModeMyra: {
		SystemInstruction: myraInstruction,
		Temperature:       0.9,
		VoiceName:         "Kore",
		SpeechStyle:       "Say this with deep affection, a sweet romantic Hinglish tone, and a gentle smile in your voice:",
		PlaybackRate:      1.15,
		FallbackReply:     "Arre, kuch problem ho gayi. Phir se try karein?",
		MissingKeyReply:   "Baby, API key missing hai. Secrets check karo na?",
	},
}

// ConfigFor returns the persona configuration for a mode.
func ConfigFor(m Mode) ModeConfig {
	cfg, ok := modeConfigs[m]
	if !ok {
		panic(fmt.Sprintf("no config registered for %s", m))
	}
	return cfg
}

// MatchesImageTrigger reports whether the input contains one of the mode's
// image-intent triggers, case-insensitively.
func (c ModeConfig) MatchesImageTrigger(input string) bool {
	lower := strings.ToLower(input)
	for _, trigger := range c.ImageTriggers {
		if strings.Contains(lower, strings.ToLower(trigger)) {
			return true
		}
	}
	return false
}

package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/universe/internal/config"
	"github.com/vango-go/universe/pkg/core/types"
	universe "github.com/vango-go/universe/sdk"
)

// syncBuffer is a goroutine-safe bytes.Buffer; the REPL and the event
// renderer both write to the chat output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testClient() *universe.Client {
	// Placeholder-shaped key: deterministic offline behavior.
	return universe.New(
		universe.WithAPIKey("MY_GEMINI_API_KEY"),
		universe.WithSink(nil),
		universe.WithSource(nil),
	)
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		input string
		want  types.Mode
		ok    bool
	}{
		{"1", types.ModeGeneral, true},
		{"2", types.ModeWebApp, true},
		{"3", types.ModeMyra, true},
		{"0", 0, false},
		{"4", 0, false},
		{"myra", types.ModeMyra, true},
		{"WEB_APP", types.ModeWebApp, true},
		{"web", types.ModeWebApp, true},
		{"general", types.ModeGeneral, true},
		{"pirate", 0, false},
	}
	for _, tt := range tests {
		got, ok := resolveMode(tt.input)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("resolveMode(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSnippetRef(t *testing.T) {
	if got := snippetRef(types.CodeSnippet{ID: "b", Name: "Snippet 2"}); got != "snippet-2.html" {
		t.Errorf("snippetRef = %q, want snippet-2.html", got)
	}
	if got := snippetRef(types.CodeSnippet{}); got != "snippet.html" {
		t.Errorf("snippetRef fallback = %q", got)
	}
}

func TestSnippetRefStableAcrossAdditions(t *testing.T) {
	// The reference is pinned to the snippet's name, not its position in
	// the newest-first listing.
	store := testClient().Store()
	first := store.AddSnippet("<h1>one</h1>")
	refBefore := snippetRef(first)
	store.AddSnippet("<h1>two</h1>")
	store.AddSnippet("<h1>three</h1>")

	snippets := store.Snippets()
	got := snippets[len(snippets)-1] // oldest: last in the listing
	if got.ID != first.ID {
		t.Fatalf("listing order changed: %+v", snippets)
	}
	if ref := snippetRef(got); ref != refBefore || ref != "snippet-1.html" {
		t.Errorf("reference drifted: before=%q after=%q", refBefore, ref)
	}
}

func TestLastAIText(t *testing.T) {
	history := []types.Message{
		{Sender: types.SenderUser, Text: "q1"},
		{Sender: types.SenderAI, Text: "a1"},
		{Sender: types.SenderUser, Text: "q2"},
	}
	text, ok := lastAIText(history)
	if !ok || text != "a1" {
		t.Errorf("lastAIText = (%q, %v), want (a1, true)", text, ok)
	}
	if _, ok := lastAIText(nil); ok {
		t.Error("lastAIText(nil) should report absent")
	}
}

func TestRunChatOffline(t *testing.T) {
	client := testClient()
	out := &syncBuffer{}
	input := strings.NewReader("1\nhello there\n/exit\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runChat(ctx, client, nil, config.Default(), input, out); err != nil {
		t.Fatalf("runChat error: %v", err)
	}

	if !strings.Contains(out.String(), "bye") {
		t.Error("missing exit message")
	}
	history := client.Store().History(types.ModeGeneral)
	if len(history) != 2 {
		t.Fatalf("history has %d messages, want user turn + offline notice", len(history))
	}
	if history[1].Sender != types.SenderAI {
		t.Errorf("second message sender = %v", history[1].Sender)
	}
}

func TestRunChatEOFDuringModeSelect(t *testing.T) {
	client := testClient()
	out := &syncBuffer{}
	err := runChat(context.Background(), client, nil, config.Default(), strings.NewReader(""), out)
	if err == nil {
		t.Fatal("EOF before a mode was chosen should surface an error")
	}
}

func TestHandleCommandModeSwitch(t *testing.T) {
	client := testClient()
	client.Store().SelectMode(types.ModeGeneral)
	out := &syncBuffer{}
	ui := &chatUI{client: client, out: out}

	if quit := ui.handleCommand(context.Background(), "/mode myra"); quit {
		t.Fatal("mode switch must not quit")
	}
	if mode, _ := client.Store().Mode(); mode != types.ModeMyra {
		t.Errorf("mode = %v after /mode myra", mode)
	}

	ui.handleCommand(context.Background(), "/mode")
	if !strings.Contains(out.String(), "MYRA") {
		t.Error("current mode not reported")
	}
}

func TestHandleCommandSnippets(t *testing.T) {
	client := testClient()
	client.Store().SelectMode(types.ModeWebApp)
	out := &syncBuffer{}
	ui := &chatUI{client: client, out: out}

	ui.handleCommand(context.Background(), "/snippets")
	if !strings.Contains(out.String(), "No snippets yet") {
		t.Error("empty snippet list not reported")
	}

	first := client.Store().AddSnippet("<h1>one</h1>")
	client.Store().AddSnippet("<h1>two</h1>")
	ui.handleCommand(context.Background(), "/snippets")
	if !strings.Contains(out.String(), "Snippet 2") {
		t.Error("snippet names missing from listing")
	}

	// Newest-first: index 2 is the older snippet.
	ui.handleCommand(context.Background(), "/rm 2")
	snippets := client.Store().Snippets()
	if len(snippets) != 1 || snippets[0].ID == first.ID {
		t.Errorf("snippets after /rm 2 = %+v", snippets)
	}
}

func TestHandleCommandQuit(t *testing.T) {
	client := testClient()
	ui := &chatUI{client: client, out: &syncBuffer{}}
	for _, cmd := range []string{"/exit", "/quit"} {
		if quit := ui.handleCommand(context.Background(), cmd); !quit {
			t.Errorf("%s did not quit", cmd)
		}
	}
}

func TestHandleCommandUnknown(t *testing.T) {
	client := testClient()
	out := &syncBuffer{}
	ui := &chatUI{client: client, out: out}
	if quit := ui.handleCommand(context.Background(), "/frobnicate"); quit {
		t.Fatal("unknown command must not quit")
	}
	if !strings.Contains(out.String(), "Unknown command") {
		t.Error("unknown command not reported")
	}
}

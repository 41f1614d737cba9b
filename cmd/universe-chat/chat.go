package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"

	"github.com/vango-go/universe/internal/config"
	"github.com/vango-go/universe/pkg/core/orchestrator"
	"github.com/vango-go/universe/pkg/core/types"
	"github.com/vango-go/universe/pkg/preview"
	universe "github.com/vango-go/universe/sdk"
)

var (
	styleBanner = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	styleUser   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	styleAI     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleDim    = lipgloss.NewStyle().Faint(true)
	styleErr    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleCode   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

type chatUI struct {
	client  *universe.Client
	preview *preview.Server
	scanner *bufio.Scanner
	out     io.Writer
}

func runChat(ctx context.Context, client *universe.Client, previewServer *preview.Server, cfg config.Config, in io.Reader, out io.Writer) error {
	ui := &chatUI{
		client:  client,
		preview: previewServer,
		scanner: bufio.NewScanner(in),
		out:     out,
	}

	fmt.Fprintln(out, styleBanner.Render("Universe Chat"))
	if !client.Gateway().HasCredentials() {
		fmt.Fprintln(out, styleErr.Render("No Gemini API key found. Set GEMINI_API_KEY (or GOOGLE_API_KEY) in the environment or a .env file."))
	}
	if previewServer != nil {
		fmt.Fprintln(out, styleDim.Render("Snippet preview: "+previewServer.URL()))
	}

	if err := ui.selectMode(); err != nil {
		return err
	}

	go ui.renderEvents(ctx)

	orch := client.Orchestrator()
	if cfg.VoiceMode {
		if client.VoiceSupported() {
			orch.SetVoiceMode(true)
		} else {
			fmt.Fprintln(out, styleDim.Render("Voice mode unavailable: ffmpeg not found."))
		}
	}
	fmt.Fprintln(out, styleDim.Render("Type /help for commands."))

	for {
		fmt.Fprint(out, "> ")
		if !ui.scanner.Scan() {
			if err := ui.scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(out)
			return nil
		}
		line := strings.TrimSpace(ui.scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit := ui.handleCommand(ctx, line)
			if quit {
				return nil
			}
			continue
		}

		if err := orch.Submit(ctx, line); err != nil {
			switch {
			case errors.Is(err, orchestrator.ErrTurnInFlight):
				fmt.Fprintln(out, styleDim.Render("Still thinking, hang on..."))
			case errors.Is(err, orchestrator.ErrNoMode):
				fmt.Fprintln(out, styleErr.Render("Pick a mode first (/mode)."))
			default:
				fmt.Fprintln(out, styleErr.Render(err.Error()))
			}
		}
	}
}

// selectMode shows the persona picker until a valid choice is made.
func (ui *chatUI) selectMode() error {
	fmt.Fprintln(ui.out, "Choose a mode:")
	for i, mode := range types.AllModes {
		fmt.Fprintf(ui.out, "  %d. %s\n", i+1, mode)
	}
	for {
		fmt.Fprint(ui.out, "mode> ")
		if !ui.scanner.Scan() {
			if err := ui.scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return errors.New("no mode selected")
		}
		choice := strings.TrimSpace(ui.scanner.Text())
		mode, ok := resolveMode(choice)
		if !ok {
			fmt.Fprintln(ui.out, styleErr.Render("Unknown mode: "+choice))
			continue
		}
		ui.client.Store().SelectMode(mode)
		fmt.Fprintln(ui.out, styleDim.Render("Mode: "+mode.String()))
		return nil
	}
}

// resolveMode accepts a 1-based menu number or a mode name.
func resolveMode(choice string) (types.Mode, bool) {
	if n, err := strconv.Atoi(choice); err == nil {
		if n >= 1 && n <= len(types.AllModes) {
			return types.AllModes[n-1], true
		}
		return 0, false
	}
	mode, err := types.ParseMode(choice)
	if err != nil {
		return 0, false
	}
	return mode, true
}

func (ui *chatUI) renderEvents(ctx context.Context) {
	events := ui.client.Orchestrator().Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			ui.renderEvent(ev)
		}
	}
}

func (ui *chatUI) renderEvent(ev orchestrator.Event) {
	switch ev.Kind {
	case orchestrator.EventMessage:
		ui.renderMessage(ev.Message)
	case orchestrator.EventSnippetActivated:
		fmt.Fprintln(ui.out, styleDim.Render(fmt.Sprintf("[%s opened in preview]", ev.Snippet.Name)))
	case orchestrator.EventListening:
		if ev.On {
			fmt.Fprintln(ui.out, styleDim.Render("[listening...]"))
		}
	case orchestrator.EventSpeaking:
		if ev.On {
			fmt.Fprintln(ui.out, styleDim.Render("[speaking]"))
		}
	case orchestrator.EventError:
		if ev.Err != nil {
			fmt.Fprintln(ui.out, styleErr.Render(ev.Err.Error()))
		}
	}
}

func (ui *chatUI) renderMessage(msg types.Message) {
	switch msg.Sender {
	case types.SenderUser:
		fmt.Fprintln(ui.out, styleUser.Render("you:")+" "+msg.Text)
	case types.SenderAI:
		switch msg.Kind {
		case types.KindImage:
			fmt.Fprintln(ui.out, styleAI.Render("ai:")+" "+msg.Text)
			fmt.Fprintln(ui.out, styleDim.Render(fmt.Sprintf("[image generated, %d bytes of data URI]", len(msg.ImageURL))))
		case types.KindCode:
			fmt.Fprintln(ui.out, styleAI.Render("ai:")+" "+msg.Text)
			fmt.Fprintln(ui.out, styleCode.Render(msg.Code))
		default:
			fmt.Fprintln(ui.out, styleAI.Render("ai:")+" "+msg.Text)
		}
	}
}

// handleCommand dispatches a slash command. Returns true when the REPL
// should exit.
func (ui *chatUI) handleCommand(ctx context.Context, line string) (quit bool) {
	store := ui.client.Store()
	orch := ui.client.Orchestrator()
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/exit", "/quit":
		fmt.Fprintln(ui.out, "bye")
		return true

	case "/help":
		ui.printHelp()

	case "/mode":
		if arg == "" {
			if mode, ok := store.Mode(); ok {
				fmt.Fprintln(ui.out, "current mode: "+mode.String())
			}
			return false
		}
		mode, ok := resolveMode(arg)
		if !ok {
			fmt.Fprintln(ui.out, styleErr.Render("Unknown mode: "+arg))
			return false
		}
		store.SelectMode(mode)
		fmt.Fprintln(ui.out, styleDim.Render("Mode: "+mode.String()))
		// Show what this mode already holds.
		for _, msg := range store.History(mode) {
			ui.renderMessage(msg)
		}

	case "/clear":
		mode, ok := store.Mode()
		if !ok {
			return false
		}
		fmt.Fprint(ui.out, "Clear this conversation? [y/N] ")
		if !ui.scanner.Scan() {
			return false
		}
		if answer := strings.ToLower(strings.TrimSpace(ui.scanner.Text())); answer == "y" || answer == "yes" {
			store.ClearHistory(mode)
			fmt.Fprintln(ui.out, styleDim.Render("Conversation cleared."))
		}

	case "/snippets":
		snippets := store.Snippets()
		if len(snippets) == 0 {
			fmt.Fprintln(ui.out, styleDim.Render("No snippets yet."))
			return false
		}
		active, hasActive := store.ActiveSnippet()
		for i, s := range snippets {
			marker := "  "
			if hasActive && s.ID == active.ID {
				marker = "* "
			}
			fmt.Fprintf(ui.out, "%s%d. %s (%s)\n", marker, i+1, s.Name, s.Timestamp.Format("15:04:05"))
		}

	case "/open":
		snippet, err := ui.snippetByIndex(arg)
		if err != nil {
			fmt.Fprintln(ui.out, styleErr.Render(err.Error()))
			return false
		}
		store.SelectSnippet(snippet.ID)
		if ui.preview != nil {
			ui.preview.Show(snippet)
			fmt.Fprintln(ui.out, styleDim.Render(snippet.Name+" opened: "+ui.preview.URL()))
		} else {
			fmt.Fprintln(ui.out, styleCode.Render(snippet.HTML))
		}

	case "/rm":
		snippet, err := ui.snippetByIndex(arg)
		if err != nil {
			fmt.Fprintln(ui.out, styleErr.Render(err.Error()))
			return false
		}
		wasActive := false
		if active, ok := store.ActiveSnippet(); ok && active.ID == snippet.ID {
			wasActive = true
		}
		store.RemoveSnippet(snippet.ID)
		if wasActive && ui.preview != nil {
			ui.preview.Clear()
		}
		fmt.Fprintln(ui.out, styleDim.Render(snippet.Name+" removed."))

	case "/copy":
		snippet, err := ui.snippetByIndex(arg)
		if err != nil {
			fmt.Fprintln(ui.out, styleErr.Render(err.Error()))
			return false
		}
		ref := snippetRef(snippet)
		if err := clipboard.WriteAll(ref); err != nil {
			fmt.Fprintln(ui.out, styleErr.Render("clipboard unavailable: "+err.Error()))
			return false
		}
		fmt.Fprintln(ui.out, styleDim.Render("Copied "+ref))

	case "/voice":
		if !ui.client.VoiceSupported() {
			fmt.Fprintln(ui.out, styleErr.Render("Voice mode needs ffmpeg on PATH."))
			return false
		}
		next := !orch.VoiceMode()
		orch.SetVoiceMode(next)
		if next {
			fmt.Fprintln(ui.out, styleDim.Render("Voice mode on."))
		} else {
			fmt.Fprintln(ui.out, styleDim.Render("Voice mode off."))
		}

	case "/listen":
		if !ui.client.VoiceSupported() {
			fmt.Fprintln(ui.out, styleErr.Render("Voice capture needs ffmpeg on PATH."))
			return false
		}
		orch.ToggleListening()

	case "/stop":
		orch.StopSpeaking()

	case "/replay":
		mode, ok := store.Mode()
		if !ok {
			return false
		}
		if !ui.client.SpeechSupported() {
			fmt.Fprintln(ui.out, styleErr.Render("Speech playback needs ffplay on PATH."))
			return false
		}
		if text, found := lastAIText(store.History(mode)); found {
			orch.PlayMessage(ctx, text)
		} else {
			fmt.Fprintln(ui.out, styleDim.Render("Nothing to replay yet."))
		}

	default:
		fmt.Fprintln(ui.out, styleErr.Render("Unknown command: "+cmd))
	}
	return false
}

func (ui *chatUI) printHelp() {
	help := []string{
		"/mode [name]   switch persona (general, web app, myra)",
		"/clear         wipe the current conversation",
		"/snippets      list generated web app snippets",
		"/open N        activate snippet N in the preview",
		"/rm N          delete snippet N",
		"/copy N        copy snippet N's share reference",
		"/voice         toggle continuous voice conversation",
		"/listen        start or stop a single voice capture",
		"/stop          interrupt speech playback",
		"/replay        speak the last reply again",
		"/exit          leave",
	}
	for _, line := range help {
		fmt.Fprintln(ui.out, styleDim.Render(line))
	}
}

// snippetByIndex resolves a 1-based index from the /snippets listing.
func (ui *chatUI) snippetByIndex(arg string) (types.CodeSnippet, error) {
	snippets := ui.client.Store().Snippets()
	if len(snippets) == 0 {
		return types.CodeSnippet{}, errors.New("no snippets yet")
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(snippets) {
		return types.CodeSnippet{}, fmt.Errorf("expected a snippet number between 1 and %d", len(snippets))
	}
	return snippets[n-1], nil
}

// snippetRef builds the shareable file-style reference for a snippet from
// its display name ("Snippet 2" -> "snippet-2.html"), the filename the
// web-app persona links against. The name is fixed at creation, so the
// reference stays stable as other snippets come and go.
func snippetRef(snippet types.CodeSnippet) string {
	name := strings.ToLower(strings.ReplaceAll(snippet.Name, " ", "-"))
	if name == "" {
		name = "snippet"
	}
	return name + ".html"
}

// lastAIText returns the text of the most recent assistant message.
func lastAIText(history []types.Message) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Sender == types.SenderAI && history[i].Text != "" {
			return history[i].Text, true
		}
	}
	return "", false
}

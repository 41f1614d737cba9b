// universe-chat is an interactive terminal front end for the Universe chat
// engine: three conversation personas, Gemini-backed replies, image
// generation, live preview of generated web apps, and an optional voice
// loop when ffmpeg is installed.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-go/universe/internal/config"
	"github.com/vango-go/universe/internal/dotenv"
	"github.com/vango-go/universe/pkg/preview"
	universe "github.com/vango-go/universe/sdk"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath  string
		envFile     string
		chatModel   string
		imageModel  string
		speechModel string
		previewAddr string
		voiceMode   bool
		noPreview   bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:           "universe-chat",
		Short:         "Chat with the Universe assistant in your terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dotenv.LoadDefault(); err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.EnvFile != "" {
				if err := dotenv.LoadFile(cfg.EnvFile); err != nil {
					return err
				}
			}
			if envFile != "" {
				if err := dotenv.LoadFile(envFile); err != nil {
					return err
				}
			}

			// Flags beat the config file.
			if chatModel != "" {
				cfg.ChatModel = chatModel
			}
			if imageModel != "" {
				cfg.ImageModel = imageModel
			}
			if speechModel != "" {
				cfg.SpeechModel = speechModel
			}
			if previewAddr != "" {
				cfg.PreviewAddr = previewAddr
			}
			if cmd.Flags().Changed("voice") {
				cfg.VoiceMode = voiceMode
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			opts := []universe.ClientOption{
				universe.WithLogger(logger),
				universe.WithModels(cfg.ChatModel, cfg.ImageModel, cfg.SpeechModel),
			}

			var previewServer *preview.Server
			if !noPreview {
				previewServer = preview.NewServer(cfg.PreviewAddr, preview.WithLogger(logger))
				if err := previewServer.Start(); err != nil {
					return err
				}
				defer previewServer.Shutdown(cmd.Context())
				opts = append(opts, universe.WithPreview(previewServer))
			}

			client := universe.New(opts...)
			return runChat(cmd.Context(), client, previewServer, cfg, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "universe.yaml", "path to the YAML config file")
	cmd.Flags().StringVar(&envFile, "env-file", "", "additional env file to load")
	cmd.Flags().StringVar(&chatModel, "chat-model", "", "override the chat model")
	cmd.Flags().StringVar(&imageModel, "image-model", "", "override the image model")
	cmd.Flags().StringVar(&speechModel, "speech-model", "", "override the speech model")
	cmd.Flags().StringVar(&previewAddr, "preview-addr", "", "snippet preview listen address")
	cmd.Flags().BoolVar(&voiceMode, "voice", false, "start with continuous voice mode on")
	cmd.Flags().BoolVar(&noPreview, "no-preview", false, "disable the snippet preview server")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

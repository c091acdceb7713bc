package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"transcripto/internal/config"
	httpserver "transcripto/internal/http"
	"transcripto/internal/logging"
	"transcripto/internal/services"
	"transcripto/internal/storage"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "transcripto",
		Short:        "Turn audio recordings into structured notes",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCommand(), newTranscribeCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)

	if cfg.HasAPIKey() {
		logger.Info("GEMINI_API_KEY is set", "key", cfg.MaskedAPIKey())
	} else {
		logger.Warn("GEMINI_API_KEY is not set; remote endpoints will return 401 until it is configured")
	}

	srv, err := httpserver.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	return srv.Run(ctx)
}

func newTranscribeCommand() *cobra.Command {
	var (
		prompt   string
		template string
		title    string
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe one audio file and store notes for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := logging.New(os.Stderr, cfg.LogLevel)

			if !cfg.HasAPIKey() {
				return fmt.Errorf("GEMINI_API_KEY is missing or not set")
			}

			notes, err := storage.NewNoteStore(cfg.NotesDir)
			if err != nil {
				return err
			}
			suite := services.NewSuite(cfg, notes, logger)

			ctx := cmd.Context()
			transcript, err := suite.Transcriber.TranscribeFile(ctx, args[0])
			if err != nil {
				return err
			}

			if title == "" {
				title = httpserver.DisplayTitle(args[0])
			}
			if prompt == "" {
				prompt = "Generate notes on this transcript: " + title
			}

			result, err := suite.Notes.Synthesize(ctx, services.NotesRequest{
				Transcript: transcript,
				Template:   template,
				Prompt:     prompt,
				Title:      title,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, transcript)
			fmt.Fprintf(out, "\nnotes: %s (%s)\n", result.Title, result.DocumentPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "free-text instructions for the notes")
	cmd.Flags().StringVar(&template, "template", "", "note style template (overrides --prompt)")
	cmd.Flags().StringVar(&title, "title", "", "note title (defaults to the audio file name)")
	return cmd
}

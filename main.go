package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/metcalfc/readaloud/internal/config"
	"github.com/metcalfc/readaloud/internal/reader"
	"github.com/metcalfc/readaloud/internal/server"
	"github.com/metcalfc/readaloud/internal/state"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

type playOptions struct {
	backend   string
	speed     float64
	voice     string
	fresh     bool
	noPersist bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	play := &playOptions{}

	root := &cobra.Command{
		Use:   "readaloud [file]",
		Short: "Read documents aloud and remember where you stopped",
		Long: "readaloud extracts the text of a PDF, EPUB, DOCX, TXT or Markdown file,\n" +
			"speaks it paragraph by paragraph and saves the playback position per document.\n\n" +
			"Supported formats:\n  " + strings.Join(reader.SupportedFormats(), "\n  "),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runPlay(cmd.Context(), opts, play, args[0])
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	addPlayFlags(root, play)

	root.AddCommand(
		newPlayCmd(opts),
		newRenderCmd(opts),
		newPositionCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}

func addPlayFlags(cmd *cobra.Command, p *playOptions) {
	cmd.Flags().StringVar(&p.backend, "backend", "", "speech backend: remote or local")
	cmd.Flags().Float64Var(&p.speed, "speed", 0, "playback speed 0.5-2.0")
	cmd.Flags().StringVar(&p.voice, "voice", "", "voice name")
	cmd.Flags().BoolVar(&p.fresh, "fresh", false, "ignore saved position")
	cmd.Flags().BoolVar(&p.noPersist, "no-persist", false, "do not save the position")
}

func newPlayCmd(opts *rootOptions) *cobra.Command {
	play := &playOptions{}
	cmd := &cobra.Command{
		Use:   "play FILE",
		Short: "Play a document",
		Long: "Play a document in the terminal (or a window in the gui build).\n\n" +
			"Controls:\n" +
			"  SPACE       Play/pause\n" +
			"  S           Stop (rewind current paragraph)\n" +
			"  ←/→  H/L    Previous/next paragraph (pauses playback)\n" +
			"  [/]         Previous/next section\n" +
			"  +/-  ↑/↓    Faster/slower\n" +
			"  R           Restart document\n" +
			"  ?           More keys\n" +
			"  Q           Quit",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), opts, play, args[0])
		},
	}
	addPlayFlags(cmd, play)
	return cmd
}

func runPlay(ctx context.Context, opts *rootOptions, play *playOptions, path string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := play.apply(cfg); err != nil {
		return err
	}

	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer log.Sync()

	s, err := openSession(ctx, cfg, log, path, play.fresh)
	if err != nil {
		return err
	}
	defer s.Close()

	return runPlayer(ctx, s)
}

// apply folds command line overrides into cfg.
func (p *playOptions) apply(cfg *config.Config) error {
	if p.backend != "" {
		cfg.Speech.Backend = p.backend
	}
	if p.speed != 0 {
		cfg.Speech.Speed = p.speed
	}
	if p.voice != "" {
		cfg.Speech.Voice = p.voice
	}
	if p.noPersist {
		cfg.Store.Type = config.StoreMemory
	}
	return cfg.Validate()
}

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var outDir, voice string
	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Synthesize every paragraph to WAV files with the remote backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			cfg.Speech.Backend = config.BackendRemote
			if voice != "" {
				cfg.Speech.Voice = voice
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			defer log.Sync()

			doc, err := reader.OpenFile(args[0], reader.ChunkOptions{MinLength: cfg.Chunk.MinLength})
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = doc.ID + "_audio"
			}

			remote := newRemote(cfg, log)
			defer remote.Close()

			healthCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := remote.HealthCheck(healthCtx); err != nil {
				return fmt.Errorf("speech service health check failed: %w", err)
			}

			log.Info("rendering document", zap.String("doc", doc.ID), zap.Int("chunks", doc.ChunkCount()))
			paths, err := remote.RenderAll(cmd.Context(), doc.Chunks, outDir, cfg.Speech.Voice)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d files to %s\n", len(paths), outDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "output directory (default <doc-id>_audio)")
	cmd.Flags().StringVar(&voice, "voice", "", "voice name")
	return cmd
}

func newPositionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "position",
		Short: "Show or clear the saved position of a document",
	}

	show := &cobra.Command{
		Use:   "show FILE",
		Short: "Print the saved position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), opts, func(ctx context.Context, store state.Store) error {
				id := reader.DocumentID(args[0])
				pos, err := store.Load(ctx, id)
				if err != nil {
					return err
				}
				prefs, err := store.LoadPreferences(ctx, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Document: %s\n", id)
				fmt.Fprintf(out, "Chunk:    %d\n", pos.ChunkIndex+1)
				fmt.Fprintf(out, "Offset:   %g\n", pos.Offset)
				if !pos.UpdatedAt.IsZero() {
					fmt.Fprintf(out, "Saved:    %s\n", pos.UpdatedAt.Local().Format(time.RFC1123))
				}
				if prefs.Speed != 0 {
					fmt.Fprintf(out, "Speed:    %.2fx\n", prefs.Speed)
				}
				if prefs.Voice != "" {
					fmt.Fprintf(out, "Voice:    %s\n", prefs.Voice)
				}
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear FILE",
		Short: "Forget the saved position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), opts, func(ctx context.Context, store state.Store) error {
				id := reader.DocumentID(args[0])
				if err := store.Clear(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(show, clearCmd)
	return cmd
}

func withStore(ctx context.Context, opts *rootOptions, fn func(context.Context, state.Store) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the document API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			log, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			defer log.Sync()

			store, err := newStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var renderer server.Renderer
			if cfg.Speech.Backend == config.BackendRemote {
				remote := newRemote(cfg, log)
				defer remote.Close()
				renderer = remote
			}

			log.Info("starting server",
				zap.String("addr", cfg.Server.Addr),
				zap.String("store", cfg.Store.Type),
				zap.String("backend", cfg.Speech.Backend))
			srv := server.New(store, renderer, log, server.Options{
				MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
				Chunk:          reader.ChunkOptions{MinLength: cfg.Chunk.MinLength},
				Voice:          cfg.Speech.Voice,
			})
			return srv.Run(cmd.Context(), cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "readaloud %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	return cfg, nil
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/caffeineduck/rise/server"
	"github.com/caffeineduck/rise/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the editor over HTTP",
	Long: `Start an HTTP server hosting the browser editor.

Endpoints:
  GET    /                     Editor page (?code=... opens a shared link)
  GET    /ws                   Editor session websocket
  POST   /api/run              Run code (stateless)
  POST   /api/share            Build a share link
  GET    /api/draft            Load the saved draft
  PUT    /api/draft            Save a draft
  GET    /download?session=ID  Download a session's code
  GET    /health               Health check

Drafts are kept in memory, SQLite, PostgreSQL or S3 (--store).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Address to listen on (default :8080)")
	serveCmd.Flags().String("base-url", "", "Public page URL used in share links")
	serveCmd.Flags().String("store", "", "Draft store: memory, sqlite, postgres, s3")
	serveCmd.Flags().Duration("timeout", 0, "Execution timeout (default 30s)")
	serveCmd.Flags().StringSlice("mount", nil, "Support file mount virtual:host (repeatable)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v, _ := cmd.Flags().GetString("base-url"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store.Driver = v
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := server.New(
		server.WithAddr(cfg.Server.Addr),
		server.WithBaseURL(cfg.Server.BaseURL),
		server.WithInterpreters(rt.interpreters...),
		server.WithStore(st),
		server.WithSupportFiles(rt.support),
		server.WithSessionTTL(cfg.Server.SessionTTL),
		server.WithRunTimeout(cfg.Runtime.Timeout),
		server.WithMaxSourceSize(cfg.Server.MaxSourceSize),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		server.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	names := make([]string, len(rt.interpreters))
	for i, interp := range rt.interpreters {
		names[i] = interp.Name()
	}
	logger.Info("starting rise",
		zap.String("addr", cfg.Server.Addr),
		zap.Strings("languages", names),
		zap.String("store", cfg.Store.Driver))

	return srv.ListenAndServe(ctx)
}

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/AbdouGG/Deep-Code/internal/command"
	"github.com/AbdouGG/Deep-Code/internal/config"
	"github.com/AbdouGG/Deep-Code/internal/execws"
	"github.com/AbdouGG/Deep-Code/internal/logging"
)

var version = "dev"

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{
		LoadConfig: config.LoadConfig,
		RunExec: func(ctx context.Context, cfg config.Config, req command.ExecRequest) error {
			return runExec(ctx, os.Stdout, cfg, req, execws.RealDialer{HandshakeTimeout: cfg.HandshakeTimeout})
		},
		RunTUI: func(ctx context.Context, cfg config.Config, token string) error {
			return runTUI(ctx, cfg, token, execws.RealDialer{HandshakeTimeout: cfg.HandshakeTimeout})
		},
		RunPrefs: func(ctx context.Context, cfg config.Config, value *bool) error {
			return runPrefs(ctx, os.Stdout, cfg, value)
		},
		RunLogin: func(ctx context.Context, cfg config.Config, user, name string) error {
			return runLogin(ctx, os.Stdout, cfg, user, name)
		},
		RunLogout: func(ctx context.Context, cfg config.Config) error {
			return runLogout(ctx, os.Stdout, cfg)
		},
		RunMigrateUp: func(ctx context.Context, cfg config.Config) error {
			return runMigrateUp(ctx, os.Stdout, cfg)
		},
	})
	app.Version = version

	if err := app.RunContext(rootCtx, os.Args); err != nil {
		logging.NewLogger(logging.Options{Level: "error", Writer: os.Stderr, Component: "deepcode"}).Error("deepcode failed", "err", err)
		os.Exit(1)
	}
}

func newRuntimeLogger(writer io.Writer, cfg config.Config) *slog.Logger {
	return logging.NewLogger(logging.Options{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Writer:    writer,
		Component: "deepcode",
	})
}

// openLogFile is the log sink while the terminal UI owns the screen.
func openLogFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "deepcode.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

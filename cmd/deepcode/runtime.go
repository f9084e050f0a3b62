package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/AbdouGG/Deep-Code/internal/command"
	"github.com/AbdouGG/Deep-Code/internal/config"
	"github.com/AbdouGG/Deep-Code/internal/db"
	"github.com/AbdouGG/Deep-Code/internal/db/migration"
	"github.com/AbdouGG/Deep-Code/internal/docstore"
	"github.com/AbdouGG/Deep-Code/internal/executor"
	"github.com/AbdouGG/Deep-Code/internal/execws"
	"github.com/AbdouGG/Deep-Code/internal/global"
	"github.com/AbdouGG/Deep-Code/internal/identity"
	"github.com/AbdouGG/Deep-Code/internal/lifecycle"
	"github.com/AbdouGG/Deep-Code/internal/localstore"
	"github.com/AbdouGG/Deep-Code/internal/prefs"
	"github.com/AbdouGG/Deep-Code/internal/theme"
	"github.com/AbdouGG/Deep-Code/internal/transcript"
	"github.com/AbdouGG/Deep-Code/internal/tui"
)

var errExecutionFailed = errors.New("execution reported an error")

// stores bundles the per-process persistence: config.toml plus the shared
// sqlite database.
type stores struct {
	cfg   *global.ConfigStore
	gdb   *gorm.DB
	local *localstore.Store
	docs  *docstore.Store
	ident identity.Source
}

func openStores() (*stores, error) {
	dir, err := global.DefaultConfigDir()
	if err != nil {
		return nil, err
	}
	cfgStore := global.NewConfigStore(dir)
	if _, err := cfgStore.LoadOrInit(); err != nil {
		return nil, fmt.Errorf("load config.toml: %w", err)
	}
	gdb, err := db.Open(global.DefaultDBPath(dir))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	local, err := localstore.New(gdb)
	if err != nil {
		_ = db.Close(gdb)
		return nil, err
	}
	docs, err := docstore.New(gdb)
	if err != nil {
		_ = db.Close(gdb)
		return nil, err
	}
	return &stores{
		cfg:   cfgStore,
		gdb:   gdb,
		local: local,
		docs:  docs,
		ident: identity.NewConfigSource(cfgStore),
	}, nil
}

func (s *stores) Close(context.Context) error {
	return db.Close(s.gdb)
}

func (s *stores) newBridge(ctx context.Context, logger *slog.Logger) *prefs.Bridge {
	return prefs.New(ctx, prefs.Options{
		Local:    s.local,
		Remote:   s.docs,
		Identity: s.ident,
		Logger:   logger,
	})
}

func runExec(ctx context.Context, out io.Writer, cfg config.Config, req command.ExecRequest, dialer execws.Dialer) error {
	logger := newRuntimeLogger(io.Discard, cfg)
	if cfg.LogLevel == "debug" {
		logger = newRuntimeLogger(out, cfg)
	}
	session := executor.NewSession(executor.Options{
		Dialer:   dialer,
		Logger:   logger,
		Notifier: executor.LogNotifier(logger),
	})

	scope := lifecycle.NewScope(logger)
	scope.Go("exec", func(runCtx context.Context) error {
		return execOnce(runCtx, out, cfg.ExecTimeout, session, req)
	})
	scope.OnTeardown("close-connection", func(context.Context) error {
		return session.Close()
	})
	return scope.Run(ctx)
}

func execOnce(ctx context.Context, out io.Writer, timeout time.Duration, session *executor.Session, req command.ExecRequest) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := session.Start(req.Token); err != nil {
		return err
	}
	if err := session.AwaitOpen(ctx); err != nil {
		printTranscript(out, session.Transcript().Entries())
		return fmt.Errorf("connect: %w", err)
	}
	if err := session.Coord.Submit(ctx, req.Code); err != nil {
		printTranscript(out, session.Transcript().Entries())
		return err
	}
	err := session.AwaitSettled(ctx)
	entries := session.Transcript().Entries()
	printTranscript(out, entries)
	if err != nil {
		return fmt.Errorf("await result: %w", err)
	}
	if n := len(entries); n > 0 && entries[n-1].Kind == transcript.KindError {
		return errExecutionFailed
	}
	return nil
}

func printTranscript(out io.Writer, entries []transcript.Entry) {
	for _, e := range entries {
		fmt.Fprintln(out, e.Text)
	}
}

func runTUI(ctx context.Context, cfg config.Config, token string, dialer execws.Dialer) error {
	st, err := openStores()
	if err != nil {
		return err
	}
	gcfg, err := st.cfg.LoadOrInit()
	if err != nil {
		_ = st.Close(ctx)
		return err
	}
	if token == "" {
		token = gcfg.Editor.LastToken
	}
	if token == "" {
		_ = st.Close(ctx)
		return errors.New("no server token given and none remembered")
	}
	if err := st.cfg.RememberToken(token); err != nil {
		_ = st.Close(ctx)
		return err
	}

	logFile, err := openLogFile(st.cfg.Dir())
	if err != nil {
		_ = st.Close(ctx)
		return err
	}
	defer logFile.Close()
	logger := newRuntimeLogger(logFile, cfg)

	saved, _, err := st.local.GetString(ctx, localstore.KeyEditorTheme)
	if err != nil {
		logger.Warn("read editor theme failed", "err", err)
	}
	themes := theme.NewBroadcaster(theme.Resolve(saved, theme.Detect()))

	notices := tui.NewNotices(64)
	logNotices := executor.LogNotifier(logger)
	session := executor.NewSession(executor.Options{
		Dialer: dialer,
		Logger: logger,
		Notifier: executor.NotifierFunc(func(n executor.Notice) {
			notices.Notify(n)
			logNotices.Notify(n)
		}),
	})

	bridge := st.newBridge(ctx, logger)
	if err := bridge.LoadInitial(ctx); err != nil {
		logger.Warn("initial preference load failed", "err", err)
	}

	model := tui.New(tui.Options{
		Session: session,
		Prefs:   bridge,
		Theme:   themes,
		Notices: notices,
		SaveTheme: func(name string) error {
			return st.local.Set(context.Background(), localstore.KeyEditorTheme, name)
		},
		TabWidth: gcfg.Editor.TabWidth,
		Logger:   logger,
	})

	scope := lifecycle.NewScope(logger)
	scope.Go("tui", func(runCtx context.Context) error {
		if err := session.Start(token); err != nil {
			return err
		}
		return tui.Run(runCtx, model, cfg.AltScreen)
	})
	scope.OnTeardown("close-db", st.Close)
	scope.OnTeardown("flush-prefs", func(context.Context) error {
		bridge.Wait()
		return bridge.Close()
	})
	scope.OnTeardown("close-connection", func(context.Context) error {
		return session.Close()
	})
	return scope.Run(ctx)
}

func runPrefs(ctx context.Context, out io.Writer, cfg config.Config, value *bool) error {
	st, err := openStores()
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	bridge := st.newBridge(ctx, newRuntimeLogger(io.Discard, cfg))
	defer bridge.Close()
	if err := bridge.LoadInitial(ctx); err != nil {
		return err
	}
	if value != nil {
		if err := bridge.Set(*value); err != nil {
			return err
		}
		bridge.Wait()
	}
	fmt.Fprintf(out, "showOutput=%t\n", bridge.ShowOutput())
	return nil
}

func runLogin(_ context.Context, out io.Writer, _ config.Config, user, name string) error {
	dir, err := global.DefaultConfigDir()
	if err != nil {
		return err
	}
	cfg, err := global.NewConfigStore(dir).SignIn(user, name, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "signed in as %s\n", cfg.Identity.UserID)
	return nil
}

func runLogout(_ context.Context, out io.Writer, _ config.Config) error {
	dir, err := global.DefaultConfigDir()
	if err != nil {
		return err
	}
	if err := global.NewConfigStore(dir).SignOut(); err != nil {
		return err
	}
	fmt.Fprintln(out, "signed out")
	return nil
}

func runMigrateUp(_ context.Context, out io.Writer, _ config.Config) error {
	dir, err := global.DefaultConfigDir()
	if err != nil {
		return err
	}
	path := global.DefaultDBPath(dir)
	gdb, err := db.Open(path)
	if err != nil {
		return err
	}
	defer db.Close(gdb)
	fmt.Fprintf(out, "migrated %s (%d data steps)\n", path, len(migration.Names()))
	return nil
}

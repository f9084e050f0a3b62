package command

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/AbdouGG/Deep-Code/internal/config"
)

func stubConfig() config.Config {
	return config.Config{LogLevel: "info"}
}

func TestBuildApp_DefaultCommandIsTUI(t *testing.T) {
	tuiCalled := 0
	var gotToken string
	app := BuildApp(Deps{
		LoadConfig: stubConfig,
		RunTUI: func(_ context.Context, _ config.Config, token string) error {
			tuiCalled++
			gotToken = token
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"deepcode"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if tuiCalled != 1 || gotToken != "" {
		t.Fatalf("unexpected tui call count=%d token=%q", tuiCalled, gotToken)
	}
}

func TestBuildApp_TUICommandPassesToken(t *testing.T) {
	var gotToken string
	app := BuildApp(Deps{
		LoadConfig: stubConfig,
		RunTUI: func(_ context.Context, _ config.Config, token string) error {
			gotToken = token
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"deepcode", "tui", "MTI3LjAuMC4x"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if gotToken != "MTI3LjAuMC4x" {
		t.Fatalf("unexpected token %q", gotToken)
	}
}

func TestBuildApp_ExecSources(t *testing.T) {
	file := filepath.Join(t.TempDir(), "main.js")
	if err := os.WriteFile(file, []byte("console.log('file')"), 0o644); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name  string
		args  []string
		stdin string
		code  string
	}{
		{"inline", []string{"deepcode", "exec", "tok", "console.log(1)"}, "", "console.log(1)"},
		{"file", []string{"deepcode", "exec", "--file", file, "tok"}, "", "console.log('file')"},
		{"stdin", []string{"deepcode", "exec", "tok"}, "print(2)\n", "print(2)\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got ExecRequest
			app := BuildApp(Deps{
				LoadConfig: stubConfig,
				RunExec: func(_ context.Context, _ config.Config, req ExecRequest) error {
					got = req
					return nil
				},
			})
			app.Reader = strings.NewReader(tc.stdin)
			if err := app.RunContext(context.Background(), tc.args); err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if got.Token != "tok" || got.Code != tc.code {
				t.Fatalf("unexpected request %+v", got)
			}
		})
	}
}

func TestBuildApp_ExecRequiresToken(t *testing.T) {
	called := false
	app := BuildApp(Deps{
		RunExec: func(context.Context, config.Config, ExecRequest) error {
			called = true
			return nil
		},
	})
	app.ExitErrHandler = func(*cli.Context, error) {}
	if err := app.RunContext(context.Background(), []string{"deepcode", "exec"}); err == nil {
		t.Fatal("expected error without token")
	}
	if called {
		t.Fatal("runner must not be called without token")
	}
}

func TestBuildApp_EncodeDecode(t *testing.T) {
	var out bytes.Buffer
	app := BuildApp(Deps{})
	app.Writer = &out
	if err := app.RunContext(context.Background(), []string{"deepcode", "encode", "127.0.0.1"}); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if strings.TrimSpace(out.String()) != "MTI3LjAuMC4x" {
		t.Fatalf("unexpected token %q", out.String())
	}

	out.Reset()
	if err := app.RunContext(context.Background(), []string{"deepcode", "decode", "MTI3LjAuMC4x"}); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.String() != "127.0.0.1\nws://127.0.0.1:7890/Execute\n" {
		t.Fatalf("unexpected decode output %q", out.String())
	}
}

func TestBuildApp_PrefsShowOutput(t *testing.T) {
	var calls []*bool
	app := BuildApp(Deps{
		LoadConfig: stubConfig,
		RunPrefs: func(_ context.Context, _ config.Config, v *bool) error {
			calls = append(calls, v)
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"deepcode", "prefs", "show-output"}); err != nil {
		t.Fatal(err)
	}
	if err := app.RunContext(context.Background(), []string{"deepcode", "prefs", "show-output", "false"}); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 2 || calls[0] != nil || calls[1] == nil || *calls[1] {
		t.Fatalf("unexpected prefs calls %v", calls)
	}
}

func TestBuildApp_LoginLogout(t *testing.T) {
	var user, name string
	logouts := 0
	app := BuildApp(Deps{
		LoadConfig: stubConfig,
		RunLogin: func(_ context.Context, _ config.Config, u, n string) error {
			user, name = u, n
			return nil
		},
		RunLogout: func(context.Context, config.Config) error {
			logouts++
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"deepcode", "login", "--user", "u-1", "--name", "Ada"}); err != nil {
		t.Fatal(err)
	}
	if err := app.RunContext(context.Background(), []string{"deepcode", "logout"}); err != nil {
		t.Fatal(err)
	}
	if user != "u-1" || name != "Ada" || logouts != 1 {
		t.Fatalf("unexpected login=%q/%q logouts=%d", user, name, logouts)
	}
}

func TestBuildApp_MigrateUpCommand(t *testing.T) {
	migrateCalled := 0
	app := BuildApp(Deps{
		LoadConfig: stubConfig,
		RunMigrateUp: func(context.Context, config.Config) error {
			migrateCalled++
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"deepcode", "migrate", "up"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if migrateCalled != 1 {
		t.Fatalf("expected migrate command called once, got %d", migrateCalled)
	}
}

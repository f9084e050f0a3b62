package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/AbdouGG/Deep-Code/internal/addrcodec"
	"github.com/AbdouGG/Deep-Code/internal/config"
)

// ExecRequest is one headless execution: decode Token, connect, send Code.
type ExecRequest struct {
	Token string
	Code  string
}

type Deps struct {
	LoadConfig   func() config.Config
	RunExec      func(context.Context, config.Config, ExecRequest) error
	RunTUI       func(context.Context, config.Config, string) error
	RunPrefs     func(context.Context, config.Config, *bool) error
	RunLogin     func(context.Context, config.Config, string, string) error
	RunLogout    func(context.Context, config.Config) error
	RunMigrateUp func(context.Context, config.Config) error
}

func BuildApp(deps Deps) *cli.App {
	return &cli.App{
		Name:  "deepcode",
		Usage: "remote code execution client",
		Action: func(ctx *cli.Context) error {
			cfg := loadConfig(deps)
			return runTUI(ctx.Context, deps, cfg, ctx.Args().First())
		},
		Commands: []*cli.Command{
			{
				Name:      "exec",
				Usage:     "send a program to an execution server and print the transcript",
				ArgsUsage: "<token> [code]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "read the program from `PATH`"},
				},
				Action: func(ctx *cli.Context) error {
					token := strings.TrimSpace(ctx.Args().First())
					if token == "" {
						return cli.Exit("exec requires a server token", 2)
					}
					code, err := readProgram(ctx)
					if err != nil {
						return err
					}
					cfg := loadConfig(deps)
					return runExec(ctx.Context, deps, cfg, ExecRequest{Token: token, Code: code})
				},
			},
			{
				Name:      "tui",
				Usage:     "open the interactive editor",
				ArgsUsage: "[token]",
				Action: func(ctx *cli.Context) error {
					cfg := loadConfig(deps)
					return runTUI(ctx.Context, deps, cfg, ctx.Args().First())
				},
			},
			{
				Name:      "encode",
				Usage:     "encode a server address into a share token",
				ArgsUsage: "<address>",
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() != 1 {
						return cli.Exit("encode requires exactly one address", 2)
					}
					_, err := fmt.Fprintln(ctx.App.Writer, addrcodec.Encode(ctx.Args().First()))
					return err
				},
			},
			{
				Name:      "decode",
				Usage:     "decode a share token and print its endpoint",
				ArgsUsage: "<token>",
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() != 1 {
						return cli.Exit("decode requires exactly one token", 2)
					}
					address := addrcodec.Decode(ctx.Args().First())
					_, err := fmt.Fprintf(ctx.App.Writer, "%s\n%s\n", address, addrcodec.EndpointURL(address))
					return err
				},
			},
			{
				Name:  "prefs",
				Usage: "read or change preferences",
				Subcommands: []*cli.Command{
					{
						Name:      "show-output",
						Usage:     "print or set output panel visibility",
						ArgsUsage: "[true|false]",
						Action: func(ctx *cli.Context) error {
							var value *bool
							if ctx.NArg() > 0 {
								v, err := strconv.ParseBool(ctx.Args().First())
								if err != nil {
									return cli.Exit(fmt.Sprintf("invalid value %q", ctx.Args().First()), 2)
								}
								value = &v
							}
							cfg := loadConfig(deps)
							return runPrefs(ctx.Context, deps, cfg, value)
						},
					},
				},
			},
			{
				Name:  "login",
				Usage: "sign in so preferences sync to the settings document",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true, Usage: "user id"},
					&cli.StringFlag{Name: "name", Usage: "display name"},
				},
				Action: func(ctx *cli.Context) error {
					user := strings.TrimSpace(ctx.String("user"))
					if user == "" {
						return cli.Exit("--user must not be blank", 2)
					}
					cfg := loadConfig(deps)
					return runLogin(ctx.Context, deps, cfg, user, strings.TrimSpace(ctx.String("name")))
				},
			},
			{
				Name:  "logout",
				Usage: "sign out",
				Action: func(ctx *cli.Context) error {
					cfg := loadConfig(deps)
					return runLogout(ctx.Context, deps, cfg)
				},
			},
			{
				Name:  "migrate",
				Usage: "run database migration",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply pending migrations",
						Action: func(ctx *cli.Context) error {
							cfg := loadConfig(deps)
							return runMigrateUp(ctx.Context, deps, cfg)
						},
					},
				},
			},
		},
	}
}

func readProgram(ctx *cli.Context) (string, error) {
	if path := ctx.String("file"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read program: %w", err)
		}
		return string(b), nil
	}
	if ctx.NArg() > 1 {
		return strings.Join(ctx.Args().Slice()[1:], " "), nil
	}
	reader := ctx.App.Reader
	if reader == nil {
		reader = os.Stdin
	}
	b, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read program from stdin: %w", err)
	}
	if len(b) == 0 {
		return "", cli.Exit("no program given: pass code, --file or stdin", 2)
	}
	return string(b), nil
}

func loadConfig(deps Deps) config.Config {
	if deps.LoadConfig != nil {
		return deps.LoadConfig()
	}
	return config.LoadConfig()
}

func runExec(ctx context.Context, deps Deps, cfg config.Config, req ExecRequest) error {
	if deps.RunExec == nil {
		return errors.New("exec runner is not configured")
	}
	return deps.RunExec(ctx, cfg, req)
}

func runTUI(ctx context.Context, deps Deps, cfg config.Config, token string) error {
	if deps.RunTUI == nil {
		return errors.New("tui runner is not configured")
	}
	return deps.RunTUI(ctx, cfg, strings.TrimSpace(token))
}

func runPrefs(ctx context.Context, deps Deps, cfg config.Config, value *bool) error {
	if deps.RunPrefs == nil {
		return errors.New("prefs runner is not configured")
	}
	return deps.RunPrefs(ctx, cfg, value)
}

func runLogin(ctx context.Context, deps Deps, cfg config.Config, user, name string) error {
	if deps.RunLogin == nil {
		return errors.New("login runner is not configured")
	}
	return deps.RunLogin(ctx, cfg, user, name)
}

func runLogout(ctx context.Context, deps Deps, cfg config.Config) error {
	if deps.RunLogout == nil {
		return errors.New("logout runner is not configured")
	}
	return deps.RunLogout(ctx, cfg)
}

func runMigrateUp(ctx context.Context, deps Deps, cfg config.Config) error {
	if deps.RunMigrateUp == nil {
		return errors.New("migrate up runner is not configured")
	}
	return deps.RunMigrateUp(ctx, cfg)
}

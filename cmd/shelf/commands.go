package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shelf/cmd/internal/app"
	"shelf/cmd/security/password"
	"shelf/cmd/security/token"

	"github.com/urfave/cli/v2"
)

// Version is set via ldflags.
var Version = "dev"

func newCLI() *cli.App {
	return &cli.App{
		Name:    "shelf",
		Usage:   "credential-gated book catalogue API",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file; SHELF_* env vars override it",
				EnvVars: []string{app.ConfigEnvKey},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			hashPasswordCommand(),
			issueTokenCommand(),
		},
		Action: serve,
	}
}

func loadConfig(c *cli.Context) (app.Config, error) {
	cfg, err := app.LoadConfig(c.String("config"))
	if err != nil {
		return app.Config{}, cli.Exit(err, 2)
	}
	return cfg, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "run the HTTP server (default)",
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := app.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Serve(ctx, cfg, log)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply embedded schema migrations to the configured database",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			log := app.NewLogger(cfg.LogLevel, cfg.LogFormat)

			ctx, cancel := context.WithTimeout(c.Context, time.Minute)
			defer cancel()

			applied, err := app.Migrate(ctx, cfg, log)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				_, _ = fmt.Fprintln(c.App.Writer, "schema up to date")
				return nil
			}
			for _, v := range applied {
				_, _ = fmt.Fprintln(c.App.Writer, "applied", v)
			}
			return nil
		},
	}
}

func hashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash-password",
		Usage:     "read a password from stdin and print its digest",
		UsageText: "echo -n 'secret' | shelf hash-password",
		Action: func(c *cli.Context) error {
			pc, err := password.FromEnv()
			if err != nil {
				return err
			}
			line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
			if err != nil && line == "" {
				return cli.Exit("no password on stdin", 2)
			}
			digest, err := pc.Hash(strings.TrimRight(line, "\r\n"))
			if err != nil {
				if password.IsPolicyViolation(err) {
					return cli.Exit(err, 2)
				}
				return err
			}
			_, _ = fmt.Fprintln(c.App.Writer, digest)
			return nil
		},
	}
}

type issuedToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func issueTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "issue-token",
		Usage: "mint an access token for a subject with the configured secret",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "token subject (username)", Required: true},
			&cli.BoolFlag{Name: "json", Usage: "print the full token response as JSON"},
		},
		Action: func(c *cli.Context) error {
			subject := strings.TrimSpace(c.String("subject"))
			if subject == "" {
				return cli.Exit(errors.New("subject must not be blank"), 2)
			}
			tc, err := token.LoadConfigFromEnv()
			if err != nil {
				return err
			}
			tokens, err := token.NewService(tc)
			if err != nil {
				return err
			}
			iss, err := tokens.Issue(subject, time.Now())
			if err != nil {
				return err
			}
			if !c.Bool("json") {
				_, _ = fmt.Fprintln(c.App.Writer, iss.AccessToken)
				return nil
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(issuedToken{AccessToken: iss.AccessToken, TokenType: iss.TokenType, ExpiresAt: iss.ExpiresAt})
		},
	}
}

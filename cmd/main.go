package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"weekly/internal/app"
	"weekly/internal/config"
	"weekly/internal/digest"
	"weekly/internal/google"
	"weekly/internal/mcp"
	"weekly/internal/tools"
)

var version = "0.1.0"

func main() {
	cliApp := &cli.App{
		Name:    "weekly",
		Usage:   "Build a weekly meeting digest from Calendar, Gmail, HubSpot, Google Docs and Slack.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Usage: "Read configuration from this dotenv file instead of the process environment."},
		},
		Commands: []*cli.Command{
			authCommand(),
			toolsCommand(),
			callCommand(),
			runCommand(),
			serveCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// setup resolves the configuration source, the logger and the adapter registry.
func setup(c *cli.Context) (*slog.Logger, *tools.Env, *tools.Registry, error) {
	var src config.Source = config.NewEnv()
	if path := c.String("env-file"); path != "" {
		m, err := config.FromFile(path)
		if err != nil {
			return nil, nil, nil, err
		}
		src = m
	}
	logger := setupLogger(config.Get(src, config.LogLevelKey, "info"))
	env, err := tools.NewEnv(logger, src)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return logger, env, app.NewRegistry(env), nil
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize a Google service and print the token JSON to store in the environment.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "service", Value: "calendar", Usage: "One of: " + strings.Join(google.GrantServices(), ", ")},
			&cli.StringFlag{Name: "credentials", Value: "credentials.json", Usage: "OAuth client file used when GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET are unset."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			grant, err := google.GrantFor(c.String("service"))
			if err != nil {
				return err
			}
			logger.Info("Starting Google authentication flow.", "service", c.String("service"))

			cfg, err := google.OAuthConfig(grant, os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"), c.String("credentials"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Fprintf(os.Stderr, "Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)
			fmt.Fprint(os.Stderr, "Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			data, err := google.ExchangeCode(c.Context, grant, cfg, authCode)
			if err != nil {
				return err
			}
			fmt.Printf("%s='%s'\n", grant.Key, data)
			logger.Info("Successfully authenticated. Store the printed line in your .env file.", "key", grant.Key)
			return nil
		},
	}
}

func toolsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tools",
		Usage: "Print the registered tools and their argument schemas as JSON.",
		Action: func(c *cli.Context) error {
			_, _, registry, err := setup(c)
			if err != nil {
				return err
			}
			schemas := make([]map[string]any, 0)
			for _, t := range registry.List() {
				schemas = append(schemas, tools.Schema(t))
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(schemas)
		},
	}
}

func callCommand() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "Invoke one tool and print its raw result.",
		ArgsUsage: "<tool> [json-arguments]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("tool name is required")
			}
			_, _, registry, err := setup(c)
			if err != nil {
				return err
			}
			name := c.Args().Get(0)
			if _, ok := registry.Lookup(name); !ok {
				return fmt.Errorf("unknown tool: %s", name)
			}
			args := json.RawMessage(c.Args().Get(1))
			if len(args) > 0 && !json.Valid(args) {
				return fmt.Errorf("arguments for %s are not valid JSON", name)
			}
			fmt.Println(strings.TrimSpace(registry.Call(c.Context, name, args)))
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the digest: fetch meetings, enrich, publish and notify.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "start", Usage: "Window start (ISO-8601, local zone). Defaults to now."},
			&cli.StringFlag{Name: "end", Usage: "Window end (ISO-8601, local zone). Defaults to start + 7 days."},
			&cli.BoolFlag{Name: "all", Usage: "Include meetings without a Zoom link."},
			&cli.BoolFlag{Name: "include-body", Usage: "Include truncated mail bodies in the enrichment."},
			&cli.StringFlag{Name: "recipient", Usage: "Slack recipient for the link. Defaults to DIGEST_RECIPIENT."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the summary without publishing or notifying."},
			&cli.IntFlag{Name: "watch", Value: 0, Usage: "Run the digest every N seconds."},
		},
		Action: func(c *cli.Context) error {
			logger, env, registry, err := setup(c)
			if err != nil {
				return err
			}
			if c.Bool("dry-run") {
				logger.Info("Performing a dry run. Nothing will be published.")
			}
			recipient := c.String("recipient")
			if recipient == "" {
				recipient = config.Get(env.Source, config.DigestRecipientKey, "")
			}
			opts := digest.Options{
				StartISO:    c.String("start"),
				EndISO:      c.String("end"),
				RequireZoom: !c.Bool("all"),
				IncludeBody: c.Bool("include-body"),
				Recipient:   recipient,
				DryRun:      c.Bool("dry-run"),
			}
			runner := digest.NewRunner(logger, registry)

			runOnce := func() error {
				report, err := runner.Run(c.Context, opts)
				if err != nil {
					return fmt.Errorf("digest run failed: %w", err)
				}
				if opts.DryRun {
					fmt.Print(report.Summary)
				} else {
					fmt.Println(report.Link)
				}
				return nil
			}

			// --watch keeps running until the process is stopped
			if c.Int("watch") > 0 {
				interval := time.Duration(c.Int("watch")) * time.Second
				logger.Info("Starting watcher.", "interval", interval)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for ; true; <-ticker.C {
					if err := runOnce(); err != nil {
						logger.Error("Digest cycle failed", "error", err)
					}
				}
			} else {
				logger.Info("Running a single digest cycle.")
				if err := runOnce(); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Expose the tools over MCP streamable HTTP.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":5000", Usage: "HTTP listen address."},
		},
		Action: func(c *cli.Context) error {
			logger, _, registry, err := setup(c)
			if err != nil {
				return err
			}
			return mcp.Serve(c.Context, logger, registry, c.String("addr"), version)
		},
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/jsonfetch/internal/app"
	"github.com/samvad-hq/jsonfetch/internal/config"
	"github.com/samvad-hq/jsonfetch/internal/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:   "probe",
		Usage:  "poll JSON endpoints and publish new observations",
		Action: runProbe,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "poll every enabled endpoint until interrupted",
				Action: runProbe,
			},
			{
				Name:      "inspect",
				Usage:     "fetch one endpoint once and print the decoded result",
				ArgsUsage: "<endpoint-id>",
				Action:    inspect,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *logger.ZapLogger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.Init(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func runProbe(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.InfoObj("probe starting", "config", cfg)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	probe, err := app.NewProbe(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize probe", "error", err.Error())
		return err
	}
	if err := probe.Run(ctx); err != nil {
		return fmt.Errorf("probe run: %w", err)
	}
	return nil
}

func inspect(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return cli.Exit("inspect requires an endpoint id", 2)
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, ok, err := app.Inspect(ctx, cfg, log, id)
	if err != nil {
		return err
	}
	if !ok {
		return cli.Exit(fmt.Sprintf("endpoint %s: response dropped by non_ok_policy=%s", id, cfg.NonOKPolicy), 1)
	}
	obs, err := res.Get()
	if err != nil {
		return cli.Exit(fmt.Sprintf("endpoint %s: %v", id, err), 1)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(obs)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/trace-agent/lib/clock"
	"github.com/bureau-foundation/trace-agent/lib/config"
	"github.com/bureau-foundation/trace-agent/lib/controlplane"
	"github.com/bureau-foundation/trace-agent/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command-line flags.
type options struct {
	configPath  string
	configGiven bool
	debug       bool
	showVersion bool
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("trace-agent", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&opts.configPath, "config", config.DefaultPath, "configuration file (YAML, or JSON with comments for .json/.jsonc)")
	flagSet.BoolVar(&opts.debug, "debug", false, "log at debug level (overrides the debug key)")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	opts.configGiven = flagSet.Changed("config")
	return &opts, nil
}

// loadConfig loads and validates configuration. The default config
// path may be absent; an explicitly given one may not.
func loadConfig(opts *options) (*config.Config, error) {
	path := opts.configPath
	if !opts.configGiven {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger writes text to a terminal and JSON otherwise, so a
// supervised agent's output can be ingested as-is.
func newLogger(output io.Writer, debug bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		options.Level = slog.LevelDebug
	}
	if file, ok := output.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.New(slog.NewTextHandler(output, options))
	}
	return slog.New(slog.NewJSONHandler(output, options))
}

func run(args []string, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Printf("trace-agent %s\n", version.Full())
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, cfg.Debug)
	logger.Info("trace agent starting", version.Attrs()...)
	logger.Info("effective configuration", "config", cfg.Redacted())

	token, err := cfg.Token()
	if err != nil {
		return err
	}
	compression, err := controlplane.ParseCompression(cfg.Compression)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := controlplane.New(ctx, controlplane.Config{
		BaseURL:      cfg.APIClarityURL,
		Token:        token,
		CertPath:     cfg.CertPath,
		CertHostname: cfg.CertHostname,
		Compression:  compression,
		Timeout:      cfg.Timeout(),
	}, logger.With("component", "controlplane"))
	if err != nil {
		return err
	}

	agent, err := newAgent(ctx, cfg, client, clock.Real(), logger)
	if err != nil {
		return err
	}

	logger.Info("trace agent running",
		"control_plane", cfg.APIClarityURL,
		"protocol", cfg.RemoteLogProto,
		"port", cfg.RemoteLogPort,
		"queue_size", cfg.QueueSize,
		"refresh_interval", cfg.RefreshInterval(),
	)
	return agent.Run(ctx)
}

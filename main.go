package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"nxrm-staging-utility/cfg"
	"nxrm-staging-utility/server"
	"nxrm-staging-utility/staging"
)

const (
	exitFailure   = 1
	exitExecution = 2
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Error(err)
		if staging.IsFailure(err) {
			os.Exit(exitFailure)
		}
		os.Exit(exitExecution)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage()
		return nil
	}
	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		printUsage()
		return fmt.Errorf("unknown goal %q", name)
	}

	opts := &options{}
	flagSet := opts.flagSet(name, cmd.flags)
	if err := flagSet.Parse(args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return &staging.ExecutionError{Err: err}
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return &staging.ExecutionError{Err: fmt.Errorf("unexpected argument: %s", extra[0])}
	}

	config, err := opts.loadConfig(flagSet)
	if err != nil {
		return &staging.ExecutionError{Err: err}
	}
	setupLogger(config.Logger)

	if cmd.remote {
		if err := promptPassword(config); err != nil {
			return &staging.ExecutionError{Err: err}
		}
	}
	goal := opts.goal(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if name == "serve" {
		s, err := server.New(*config, goal)
		if err != nil {
			return &staging.ExecutionError{Err: err}
		}
		return s.Run(ctx)
	}

	output, err := cmd.run(ctx, opts, goal)
	if err != nil {
		return err
	}
	if output != nil {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	}
	return nil
}

func setupLogger(config cfg.LoggerConfig) {
	level, err := log.ParseLevel(config.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	if config.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Stages Maven components in Nexus Repository Manager 3.

Usage:
  nxrm-staging <goal> [flags]

Goals:
  deploy          upload the project as one tagged component, or stage it locally with --defer
  upload          upload everything staged by deploy --defer
  move            move tagged components to another repository
  delete          delete the components carrying the staged tag
  prepare-deploy  record maven.deploy.skip=true for release versions
  associate       tag the components matching --search
  disassociate    untag the components matching --search
  status          print the NXRM version
  repositories    list the NXRM repositories
  serve           run the staging gateway

Run "nxrm-staging <goal> --help" for the flags of a goal.
`)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/jacoelho/tidbit/internal/config"
	"github.com/jacoelho/tidbit/internal/logging"
	"github.com/jacoelho/tidbit/internal/runner"
)

func main() {
	exitCode := run(os.Args)
	os.Exit(exitCode)
}

func run(args []string) int {
	cfg, exitResult := config.Parse(args)
	if exitResult != nil {
		exitResult.Print()
		return exitResult.ExitCode
	}

	if cfg.Debug {
		logging.SetGlobalLogger(logging.NewConsole(os.Stderr, zerolog.DebugLevel))
	}

	r, exitResult := runner.New(cfg)
	if exitResult != nil {
		exitResult.Print()
		return exitResult.ExitCode
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return r.Run(ctx)
}

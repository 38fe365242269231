// Package daemonrun wires up and runs the daemon runtime. It is shared by
// the capstand binary and the CLI's foreground run command.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"capstan/internal/config"
	"capstan/internal/history"
	"capstan/internal/logging"
	"capstan/internal/queue"
	"capstan/internal/runner"
)

// Run starts the runner daemon and blocks until a shutdown signal arrives
// or the loop halts on its own. Running jobs are left to finish under the
// next daemon; only supervision stops.
func Run(cmdCtx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := cfg.PIDFilePath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	var archive *history.Store
	if cfg.History.Enabled {
		opened, histErr := history.Open(cfg)
		if histErr != nil {
			logger.Warn("history archive unavailable", logging.Error(histErr))
		} else {
			archive = opened
			defer archive.Close()
		}
	}

	run := runner.New(cfg, store,
		runner.WithLogger(logger),
		runner.WithHistory(archive))
	if err := run.Start(signalCtx); err != nil {
		logger.Error("start runner", logging.Error(err))
		return err
	}

	select {
	case <-signalCtx.Done():
		logger.Info("capstand shutting down")
	case <-run.Done():
	}
	run.Stop()

	if err := run.Err(); err != nil {
		return fmt.Errorf("runner halted: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

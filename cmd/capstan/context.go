package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"capstan/internal/config"
	"capstan/internal/history"
	"capstan/internal/manager"
	"capstan/internal/queue"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) flagPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.flagPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) openStore() (*config.Config, *queue.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// openManager builds the manager plus a cleanup func releasing the history
// archive. An unavailable archive degrades to a warning; queue operations
// must keep working without it.
func (c *commandContext) openManager() (*manager.Manager, func(), error) {
	cfg, store, err := c.openStore()
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	var archive *history.Store
	if cfg.History.Enabled {
		opened, histErr := history.Open(cfg)
		if histErr != nil {
			fmt.Fprintf(os.Stderr, "warn: history archive unavailable: %v\n", histErr)
		} else {
			archive = opened
			cleanup = func() { _ = archive.Close() }
		}
	}

	return manager.New(cfg, store, manager.WithHistory(archive)), cleanup, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

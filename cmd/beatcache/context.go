package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"beatcache/internal/beatmap"
	"beatcache/internal/config"
	"beatcache/internal/library"
	"beatcache/internal/logging"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
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

// JSONMode reports whether --json was passed.
func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withLibrary opens the library for one command and closes it afterwards.
func (c *commandContext) withLibrary(cmd *cobra.Command, fn func(*library.Library) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	sessionID := logging.NewSessionID()
	logger = logging.WithSession(logger, sessionID)

	lib, err := library.Open(commandCtx(cmd), cfg, logger, library.WithSessionID(sessionID))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := lib.Close(); closeErr != nil {
			logging.WarnWithContext(logger, "failed to close library", "library_close_failed",
				logging.Error(closeErr),
				logging.String(logging.FieldImpact, "journal lock may linger until the process exits"))
		}
	}()
	return fn(lib)
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func parseKeys(args []string) ([]beatmap.Key, error) {
	keys := make([]beatmap.Key, 0, len(args))
	for _, arg := range args {
		key, err := beatmap.ParseKey(arg)
		if err != nil {
			return nil, fmt.Errorf("%w (expected hash:<hash> or key:<key>)", err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

package main

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/coursecap-api/internal/bootstrap"
	"github.com/noah-isme/coursecap-api/pkg/config"
	"github.com/noah-isme/coursecap-api/pkg/logger"
)

type commandContext struct {
	appOnce sync.Once
	app     *bootstrap.App
	appErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

// ensureApp connects to the stores the first time a command needs them.
func (c *commandContext) ensureApp(ctx context.Context) (*bootstrap.App, error) {
	c.appOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.appErr = err
			return
		}
		logr, err := logger.New(cfg)
		if err != nil {
			c.appErr = err
			return
		}
		c.app, c.appErr = bootstrap.New(ctx, cfg, logr)
	})
	return c.app, c.appErr
}

func (c *commandContext) close() {
	if c.app == nil {
		return
	}
	c.app.Close()
	if err := c.app.Logger.Sync(); err != nil {
		c.app.Logger.Debug("sync logger", zap.Error(err))
	}
}

package app

import (
	"context"
)

// Serve builds the App from cfg and the security environment and blocks
// until ctx is cancelled. It returns errors instead of exiting so deferred
// cleanup always runs.
func Serve(ctx context.Context, cfg Config, log Logger) error {
	sec, err := LoadSecurityConfig()
	if err != nil {
		return err
	}

	a, err := New(ctx, cfg, sec, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("app.close.fail", "err", err)
		}
	}()

	return a.Run(ctx)
}

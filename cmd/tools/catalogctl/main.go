package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toss-checkout/internal/app"
	"github.com/noah-isme/toss-checkout/internal/catalog"
	"github.com/noah-isme/toss-checkout/internal/config"
	"github.com/noah-isme/toss-checkout/internal/obs"
)

func main() {
	logger := obs.NewLoggerTo(os.Stderr, "console", "warn")

	open := func(ctx context.Context) (*catalog.Store, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		// Admin edits must see the same document as the API, so seeding is left to the API.
		cfg.CatalogSeedDefaults = false
		rdb, err := app.NewRedis(ctx, cfg, false, logger)
		if err != nil {
			return nil, nil, err
		}
		if rdb == nil {
			return nil, nil, fmt.Errorf("REDIS_URL is required: the in-memory catalog is not shared with the API")
		}
		store, err := app.NewCatalogStore(ctx, cfg, rdb, &logger)
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return store, func() { _ = rdb.Close() }, nil
	}

	if err := newRootCmd(open, zerolog.Nop()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

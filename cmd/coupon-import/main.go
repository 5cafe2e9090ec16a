// Command coupon-import loads coupon definitions from gzip-compressed NDJSON
// files into the database.
package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/events"
	"github.com/xenking/coupon-engine/internal/repository"
)

type config struct {
	DataDir     string `default:"data" usage:"Directory containing *.ndjson.gz files" flag:"data-dir"`
	DatabaseURL string `usage:"PostgreSQL connection URL (COUPON_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
}

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		var cfg config
		if err := aconfig.LoaderFor(&cfg, aconfig.Config{
			EnvPrefix: "COUPON",
			SkipFiles: true,
		}).Load(); err != nil {
			return errors.Wrap(err, "load config")
		}
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		}
		if cfg.DatabaseURL == "" {
			return errors.New("database URL is required: set COUPON_DATABASE_URL or DATABASE_URL")
		}
		return run(ctx, lg, cfg)
	})
}

func run(ctx context.Context, lg *zap.Logger, cfg config) error {
	files, err := filepath.Glob(filepath.Join(cfg.DataDir, "*.ndjson.gz"))
	if err != nil {
		return errors.Wrap(err, "list files")
	}
	if len(files) == 0 {
		lg.Info("No files to import", zap.String("dir", cfg.DataDir))
		return nil
	}
	slices.Sort(files)

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	svc, err := coupon.NewService(
		repository.NewCouponRepository(pool),
		repository.NewUsageRepository(pool),
		events.Nop{},
	)
	if err != nil {
		return errors.Wrap(err, "create coupon service")
	}

	im := &importer{lg: lg, store: svc}
	sum, err := im.Run(ctx, files)
	if err != nil {
		return err
	}

	lg.Info("Import completed",
		zap.Int("files", sum.Files),
		zap.Int("lines", sum.Lines),
		zap.Int("imported", sum.Imported),
		zap.Int("invalid", sum.Invalid),
		zap.Int("conflicts", sum.Conflicts),
	)
	return nil
}

package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/lendcart/pkg/config"
	"github.com/angelmondragon/lendcart/pkg/db"
	"github.com/angelmondragon/lendcart/pkg/logger"
)

// MaybeRun applies the embedded migrations when the SQL slot is in use and
// either the app runs in dev mode or auto-migrate is switched on.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg.Cart.SlotDriver != config.SlotDriverSQL {
		return nil
	}
	if !cfg.App.IsDev() && !cfg.DB.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})
	logg.Info(ctx, "running Goose migrations (auto-run)")

	if err := Run(ctx, sqlDB, Dialect(cfg.DB.Driver), "", "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}

package cli

import (
	"github.com/alecthomas/kingpin"
	"github.com/gallerio/marketplace-indexer-svc/internal/config"
	"github.com/gallerio/marketplace-indexer-svc/internal/data/postgres"
	"github.com/gallerio/marketplace-indexer-svc/internal/metrics"
	"github.com/gallerio/marketplace-indexer-svc/internal/service"
	"gitlab.com/distributed_lab/kit/kv"
	"gitlab.com/distributed_lab/logan/v3"
)

func Run(args []string) bool {
	log := logan.New()

	defer func() {
		if rvr := recover(); rvr != nil {
			log.WithRecover(rvr).Error("app panicked")
		}
	}()

	cfg := config.New(kv.MustFromEnv())
	log = cfg.Log()

	app := kingpin.New("marketplace-indexer-svc", "")

	runCmd := app.Command("run", "run command")
	serviceCmd := runCmd.Command("service", "run service")

	migrateCmd := app.Command("migrate", "migrate command")
	migrateUpCmd := migrateCmd.Command("up", "migrate db up")
	migrateDownCmd := migrateCmd.Command("down", "migrate db down")

	cmd, err := app.Parse(args[1:])
	if err != nil {
		log.WithError(err).Error("failed to parse arguments")
		return false
	}

	switch cmd {
	case serviceCmd.FullCommand():
		if cfg.Metrics().Enabled {
			go metrics.Serve(log, cfg.Metrics().ListenAddr)
		}
		service.Run(cfg)
	case migrateUpCmd.FullCommand():
		if err = postgres.MigrateUp(cfg.DB()); err != nil {
			log.WithError(err).Error("failed to migrate db up")
			return false
		}
		log.Info("migrated db up")
	case migrateDownCmd.FullCommand():
		if err = postgres.MigrateDown(cfg.DB()); err != nil {
			log.WithError(err).Error("failed to migrate db down")
			return false
		}
		log.Info("migrated db down")
	default:
		log.Errorf("unknown command %s", cmd)
		return false
	}

	return true
}

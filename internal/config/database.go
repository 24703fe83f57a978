package config

import (
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"shuttle_tracker/internal/logger"
	"shuttle_tracker/internal/models"
)

// indexes that gorm tags cannot express.
var extraIndexes = []string{
	// a driver owns at most one bus that is still in service
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_buses_active_driver ON buses (driver_id) WHERE status <> 'out_of_service'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_stops_route_sequence ON stops (route_id, sequence)`,
}

// OpenDB connects to postgres, migrates the schema and creates the extra indexes.
func OpenDB(cfg DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.GormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}

	err = db.AutoMigrate(&models.User{}, &models.Route{}, &models.Stop{}, &models.Bus{}, &models.Notification{})
	if err != nil {
		return nil, errors.Wrap(err, "auto-migration")
	}

	for _, stmt := range extraIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return nil, errors.Wrapf(err, "create index: %s", stmt)
		}
	}
	return db, nil
}

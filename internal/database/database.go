package database

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront/internal/models"
)

type Database struct {
	DB *gorm.DB
}

// New opens sqlite for "sqlite://<path>" URLs and Postgres otherwise, then migrates the schema.
func New(databaseURL string, debug bool) (*Database, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(databaseURL, "sqlite://") {
		// SQLite for development
		dialector = sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://"))
	} else {
		dialector = postgres.Open(databaseURL)
	}

	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}

	d := &Database{DB: db}
	if err := d.Migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

// OpenMemory returns a private in-memory sqlite database with the schema applied.
func OpenMemory() (*Database, error) {
	d, err := New("sqlite://file:"+uuid.NewString()+"?mode=memory&cache=shared", false)
	if err != nil {
		return nil, err
	}
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, errors.Wrap(err, "sql handle")
	}
	sqlDB.SetMaxOpenConns(1)
	return d, nil
}

func (d *Database) Migrate() error {
	err := d.DB.AutoMigrate(
		&models.User{},
		&models.SessionRecord{},
		&models.VisitorData{},
		&models.ExperimentConversion{},
		&models.AnalyticsEvent{},
	)
	if err != nil {
		return errors.Wrap(err, "migrate schema")
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

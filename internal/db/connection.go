package db

import (
	"errors"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Open opens the sqlite file at path and brings its schema up to date. The
// handle is closed again on any failure after the driver opened it.
func Open(path string) (*gorm.DB, error) {
	gdb, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := prepare(gdb); err != nil {
		_ = Close(gdb)
		return nil, err
	}
	return gdb, nil
}

func prepare(gdb *gorm.DB) error {
	if err := MigrateUp(gdb); err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return nil
}

func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return errors.New("db is required")
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func openSQLite(path string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{`PRAGMA journal_mode=WAL;`, `PRAGMA busy_timeout=5000;`} {
		if err := gdb.Exec(pragma).Error; err != nil {
			_ = Close(gdb)
			return nil, err
		}
	}
	return gdb, nil
}

// Package db opens the gorm connection shared by the SQL vector stores and
// the ingestion audit log.
package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// DialectOf picks a driver from the DSN shape. Anything that is not a
// postgres or mysql DSN is treated as a SQLite file path.
func DialectOf(dsn string) Dialect {
	d := strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(d, "postgres://"), strings.HasPrefix(d, "postgresql://"), strings.HasPrefix(d, "host="):
		return Postgres
	case strings.HasPrefix(d, "mysql://"), strings.Contains(d, "@tcp("):
		return MySQL
	default:
		return SQLite
	}
}

func newLogger(verbose bool) gormlogger.Interface {
	level := gormlogger.Warn
	if verbose {
		level = gormlogger.Info
	}
	return gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		},
	)
}

func Open(dsn string, verbose bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch DialectOf(dsn) {
	case Postgres:
		dialector = postgres.Open(dsn)
	case MySQL:
		dialector = mysql.Open(strings.TrimPrefix(dsn, "mysql://"))
	default:
		dialector = sqlite.Open(dsn)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: newLogger(verbose)})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", DialectOf(dsn), err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if DialectOf(dsn) == SQLite {
		// one writer at a time
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return gdb, nil
}

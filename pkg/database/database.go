package database

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx as database/sql driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/noah-isme/sma-occurrences-api/pkg/config"
)

func init() {
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

// Open returns a configured database client for the selected driver.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	driver, dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if driver == config.DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// DSN resolves the driver name and connection string for cfg.
func DSN(cfg config.DatabaseConfig) (string, string, error) {
	switch cfg.Driver {
	case "", config.DriverPostgres:
		return config.DriverPostgres, fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.SSLMode,
		), nil
	case config.DriverPGX:
		dsn := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Path:     "/" + cfg.Name,
			RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
		}
		return config.DriverPGX, dsn.String(), nil
	case config.DriverSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = "ocorrencias.db"
		}
		return config.DriverSQLite, path, nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

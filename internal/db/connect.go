package db

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/sysfr3ak/archive-sys/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds the driver-specific data source name. An explicit dsn in the
// config is returned as is.
func DSN(c config.DatabaseConfig) (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch c.Driver {
	case "sqlite":
		return c.Path + "?_busy_timeout=5000&_journal_mode=WAL", nil
	case "mysql":
		mc := gomysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.Name
		mc.ParseTime = true
		mc.Loc = time.UTC
		return mc.FormatDSN(), nil
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
			Path:     "/" + c.Name,
			RawQuery: url.Values{"sslmode": {"disable"}, "TimeZone": {"UTC"}}.Encode(),
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("db: unsupported driver %q", c.Driver)
	}
}

// Connect opens a GORM connection for the configured driver. Unique
// violations surface as gorm.ErrDuplicatedKey and all timestamps GORM
// fills in are UTC.
func Connect(c config.DatabaseConfig, verbose bool) (*gorm.DB, error) {
	dsn, err := DSN(c)
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch c.Driver {
	case "sqlite":
		if c.DSN == "" && c.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
				return nil, fmt.Errorf("db: create directory for %s: %w", c.Path, err)
			}
		}
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	}

	level := logger.Silent
	if verbose {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s: %w", c.Driver, err)
	}

	if c.Driver == "sqlite" {
		// One writer at a time; SQLite locks the whole file anyway.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("db: sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db: sql handle: %w", err)
	}
	return sqlDB.Close()
}

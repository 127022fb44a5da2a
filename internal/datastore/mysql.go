package datastore

import (
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// mysqlDSN builds the connection string. Credentials are escaped by the
// driver config rather than formatted by hand.
func mysqlDSN(s conf.MySQLSettings) string {
	cfg := mysql.NewConfig()
	cfg.User = s.Username
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, s.Port)
	cfg.DBName = s.Database
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to the MySQL server
func (store *MySQLStore) Open() error {
	db, err := OpenMySQL(mysqlDSN(store.Settings.Output.MySQL))
	if err != nil {
		return err
	}

	store.DataStore = *NewWithDB(db)
	GetLogger().Info("connected to mysql",
		logger.String("host", store.Settings.Output.MySQL.Host),
		logger.String("database", store.Settings.Output.MySQL.Database))
	return nil
}

// OpenMySQL opens a MySQL database from a DSN
func OpenMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get MySQL handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

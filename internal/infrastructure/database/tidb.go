package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
)

var tlsOnce sync.Once // Ensure TLS config is registered only once

// Credentials identify the MySQL or TiDB server to connect to
type Credentials struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// IsLocal reports whether the host is the local machine, which never uses TLS
func (c Credentials) IsLocal() bool {
	return c.Host == "" || c.Host == "127.0.0.1" || c.Host == "localhost"
}

// DSN builds the driver data source name. Times are read and written in UTC
// and UPDATE reports matched rows rather than changed rows.
func (c Credentials) DSN() string {
	port := c.Port
	if port == "" {
		port = "4000"
	}

	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	// Determine TLS configuration based on host
	if !c.IsLocal() {
		// Remote host (e.g., TiDB Cloud) - register TLS config with ServerName
		tlsOnce.Do(func() {
			if err := mysql.RegisterTLSConfig("tidb", &tls.Config{
				MinVersion: tls.VersionTLS12,
				ServerName: c.Host, // Required for TLS verification
			}); err != nil {
				log.Printf("Failed to register TLS config: %v\n", err)
			}
		})
		cfg.TLSConfig = "tidb"
	}

	return cfg.FormatDSN()
}

// Connect opens a connection to the server and pins a single session for
// the lifetime of the returned Connection
func Connect(ctx context.Context, creds Credentials, opts Options) (*Connection, error) {
	db, err := sql.Open("mysql", creds.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One session is all the executor ever uses
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn, err := NewConnection(ctx, db, creds.Database, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	conn.ownsDB = true

	log.Printf("✅ Connected to %s:%s/%s", creds.Host, creds.Port, creds.Database)
	return conn, nil
}

package database

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Params identifies the MySQL server and schema to connect to.
type Params struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

func (p Params) mysqlConfig() *mysql.Config {
	c := mysql.NewConfig()
	c.User = p.User
	c.Passwd = p.Pass
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(p.Host, p.Port)
	c.DBName = p.Name
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c
}

// DSN renders p as a go-sql-driver DSN.  Times are parsed into time.Time
// and kept in UTC.
func (p Params) DSN() string {
	return p.mysqlConfig().FormatDSN()
}

// MigrateURL renders p as a golang-migrate mysql:// URL recording applied
// versions in table.
func MigrateURL(p Params, table string) string {
	c := p.mysqlConfig()
	c.MultiStatements = true
	c.Params["x-migrations-table"] = table
	return "mysql://" + c.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(p Params) (*sql.DB, error) {
	db, err := sql.Open("mysql", p.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

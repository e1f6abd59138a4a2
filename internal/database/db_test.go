package database

import (
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsDSN(t *testing.T) {
	dsn := Params{User: "app", Pass: "p@ss", Host: "db", Port: "3306", Name: "slotswap"}.DSN()

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "p@ss", parsed.Passwd)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "slotswap", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "UTC", parsed.Loc.String())
}

func TestMigrateURL(t *testing.T) {
	url := MigrateURL(Params{User: "app", Pass: "pw", Host: "db", Port: "3306", Name: "slotswap"}, "schema_migrations")

	require.True(t, strings.HasPrefix(url, "mysql://"))
	assert.Contains(t, url, "x-migrations-table=schema_migrations")
	assert.Contains(t, url, "multiStatements=true")
	assert.Contains(t, url, "tcp(db:3306)/slotswap")
}

package driver

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

func NewSQLite(dbname string) (*sql.DB, error) {
	return sql.Open("sqlite3", fmt.Sprintf("file:%s.db?mode=rwc&_busy_timeout=5000&_fk=on", dbname))
}

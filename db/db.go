package db

import (
	"database/sql"
	"fmt"
)

// DB backs the upload metadata store. Room and history state is
// in-memory only and never touches it.
var DB *sql.DB

func InitSQLite(databaseName string) (*sql.DB, error) {
	database, err := sql.Open("sqlite3", databaseName+"?_foreign_keys=1")
	if err != nil {
		return nil, err
	}

	var enabled int
	err = database.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	if err != nil {
		return nil, fmt.Errorf("error checking foreign keys: %v", err)
	}
	if enabled != 1 {
		return nil, fmt.Errorf("foreign keys are not enabled")
	}

	return database, nil
}

func CloseDB(databaseInstance *sql.DB) {
	if databaseInstance != nil {
		databaseInstance.Close()
	}
}

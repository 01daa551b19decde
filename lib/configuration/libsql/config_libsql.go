package configlibsql

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	devenv "causelist-backend/dev/env"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Struct selects the job database. A local file (or ":memory:") is opened
// with modernc sqlite, a Url points at a remote libsql server.
type Struct struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config Struct) OpenDB() (*sql.DB, error) {
	if config.Url == "" {
		if config.File == "" {
			return nil, fmt.Errorf("a database file was not specified")
		}
		if config.File == ":memory:" {
			db, err := sql.Open("sqlite", ":memory:")
			if err != nil {
				return nil, err
			}
			// every connection would otherwise get its own empty database
			db.SetMaxOpenConns(1)
			return db, nil
		}

		dbpath, err := devenv.ResolvePath(config.File)
		if err != nil {
			return nil, err
		}
		pragmas := url.Values{}
		pragmas.Add("_pragma", "busy_timeout(5000)")
		pragmas.Add("_pragma", "journal_mode(WAL)")
		return sql.Open("sqlite", fmt.Sprintf("file:%s?%s", dbpath, pragmas.Encode()))
	}

	values := url.Values{}
	if config.AuthToken != "" {
		values.Add("authToken", config.AuthToken)
	}
	dsn := config.Url
	if encoded := values.Encode(); encoded != "" {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + encoded
	}
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}

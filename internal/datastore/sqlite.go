package datastore

import (
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/menulens/internal/errors"
)

// sqliteParams enables WAL and waits on locks instead of failing right away
const sqliteParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

func sqliteDialector(path string) (gorm.Dialector, string, error) {
	if path == "" {
		return nil, "", errors.Newf("sqlite datastore requires a path").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if path == ":memory:" {
		return sqlite.Open(path), path, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", dbError(err, "resolve_path", "path", path)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, "", errors.New(err).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Context("path", abs).
			Build()
	}
	return sqlite.Open(abs + sqliteParams), abs, nil
}

// isSQLiteBusy reports lock contention that survived the busy timeout
func isSQLiteBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

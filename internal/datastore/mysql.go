package datastore

import (
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/menulens/internal/errors"
)

// MySQL error numbers worth a second attempt
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// normalizeMySQLDSN forces time parsing in UTC and utf8mb4 so dish names in
// any script round-trip. It also returns a log-safe description of the target.
func normalizeMySQLDSN(dsn string) (normalized, target string, err error) {
	if dsn == "" {
		return "", "", errors.Newf("mysql datastore requires a dsn").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", "", errors.New(err).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("setting", "datastore.mysql.dsn").
			Build()
	}
	cfg.ParseTime = true
	if cfg.Loc == nil || cfg.Loc == time.Local {
		cfg.Loc = time.UTC
	}
	// the driver keeps charset unexported, so look at the raw query
	if !hasDSNParam(dsn, "charset") {
		if err := cfg.Apply(mysql.Charset("utf8mb4", "")); err != nil {
			return "", "", errors.New(err).
				Component("datastore").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}
	return cfg.FormatDSN(), cfg.Addr + "/" + cfg.DBName, nil
}

// hasDSNParam reports whether the query part of dsn sets name
func hasDSNParam(dsn, name string) bool {
	i := strings.LastIndex(dsn, "?")
	if i < 0 || i < strings.LastIndex(dsn, "/") {
		return false
	}
	params, err := url.ParseQuery(dsn[i+1:])
	if err != nil {
		return false
	}
	return params.Has(name)
}

func mysqlDialector(dsn string) (gorm.Dialector, string, error) {
	normalized, target, err := normalizeMySQLDSN(dsn)
	if err != nil {
		return nil, "", err
	}
	return gormmysql.New(gormmysql.Config{DSN: normalized}), target, nil
}

func isMySQLRetryable(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlLockWaitTimeout || mysqlErr.Number == mysqlDeadlock
	}
	return false
}

// Package repository is the MySQL store behind the reservation engine.
// Missing rows surface as apperr kinds so handlers can tell a 404 from a
// failure; lock waits and deadlocks surface as conflicts the caller may
// retry; every other driver error is wrapped with the failing operation.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/resource-rental/internal/apperr"
)

// MySQL server error numbers the store classifies.
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// classify wraps a driver error for op.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errLockWaitTimeout, errDeadlock:
			return apperr.Wrap(apperr.KindConflict, err, "concurrent update on the same resource, retry the request")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// missing turns sql.ErrNoRows into an error of kind and classifies
// anything else.
func missing(op string, err error, kind apperr.Kind, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(kind, format, args...)
	}
	return classify(op, err)
}

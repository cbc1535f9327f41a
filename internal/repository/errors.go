// Package repository holds the MySQL data access layer and the sentinel
// errors shared by every repository.  Handlers map these values to HTTP
// status codes; raw driver errors never reach a response body.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource that belongs to someone else.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state, such as starting a second session on a reservation.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when an insert or update hits the unique email key.
var ErrEmailExists = errors.New("email already exists")

// ErrSlotTaken is returned when the station already holds a reservation in
// the requested slot hour.
var ErrSlotTaken = errors.New("slot already reserved")

// ErrForeignKey is returned when an insert references a missing parent row.
var ErrForeignKey = errors.New("referenced row does not exist")

// MySQL server error numbers the repositories translate.
const (
	mysqlDuplicateEntry  = 1062
	mysqlNoReferenced    = 1452
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// IsDuplicate reports whether err is a unique key violation.
func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// IsForeignKey reports whether err is a failed foreign key reference.
func IsForeignKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlNoReferenced
}

// IsLockConflict reports whether err is an InnoDB deadlock or lock wait
// timeout.  The server has rolled back the statement (or, for a deadlock,
// the whole transaction).
func IsLockConflict(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && (me.Number == mysqlDeadlock || me.Number == mysqlLockWaitTimeout)
}

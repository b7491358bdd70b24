package utils

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var ErrorRecordNotFound = errors.New("record not found")

// mysqlDuplicateEntry is the server error code for a unique key violation.
const mysqlDuplicateEntry = 1062

// IsDuplicateKeyError reports whether err is a MySQL unique constraint
// violation. Report numbers carry a unique index, so a losing concurrent
// insert surfaces here and is mapped to a conflict response.
func IsDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return false
}

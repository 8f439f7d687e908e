package postgresql

import (
	"errors"

	"github.com/lib/pq"
)

// SQLSTATE codes the data-access layers translate into domain errors
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeCheckViolation      = "23514"
)

// ErrorCode returns the SQLSTATE of a lib/pq error, or "" for anything else
func ErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func IsUniqueViolation(err error) bool {
	return ErrorCode(err) == CodeUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	return ErrorCode(err) == CodeForeignKeyViolation
}

func IsCheckViolation(err error) bool {
	return ErrorCode(err) == CodeCheckViolation
}

package repository

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// bindNamed expands a named query with possible slice parameters into a
// positional query bound for the given handle's driver.
func bindNamed(ext sqlx.ExtContext, query string, args map[string]any) (string, []any, error) {
	q, qargs, err := sqlx.Named(query, args)
	if err != nil {
		return "", nil, err
	}
	q, qargs, err = sqlx.In(q, qargs...)
	if err != nil {
		return "", nil, err
	}
	return ext.Rebind(q), qargs, nil
}

// isUniqueViolation reports whether the error is a postgres unique
// constraint violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

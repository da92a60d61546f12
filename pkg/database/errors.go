package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-registry/internal/apperr"
)

// ErrStorageUnavailable is returned when the store refuses service: the
// connection failed, authentication failed, or the retry budget for lock
// contention ran out. Details are logged, never returned.
var ErrStorageUnavailable = apperr.New(apperr.KindUnavailable, "storage_unavailable", "", "storage unavailable")

// Class tells the connection manager what to do with an error.
type Class int

const (
	ClassNone Class = iota
	// ClassTransient errors are lock waits, deadlocks and statement timeouts: retry.
	ClassTransient
	// ClassFatal errors mean the store is unreachable: surface ErrStorageUnavailable.
	ClassFatal
	// ClassOther errors propagate unchanged (constraint violations, syntax, domain errors).
	ClassOther
)

var transientCodes = map[pq.ErrorCode]bool{
	"55P03": true, // lock_not_available
	"40P01": true, // deadlock_detected
	"40001": true, // serialization_failure
	"57014": true, // query_canceled (lock_timeout / statement_timeout)
}

// Classify sorts err into a retry class.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassOther
	}
	if errors.Is(err, ErrStorageUnavailable) {
		return ClassOther
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if transientCodes[pqErr.Code] {
			return ClassTransient
		}
		switch pqErr.Code.Class() {
		case "08", "28", "53":
			// connection exception, invalid authorization, insufficient resources
			return ClassFatal
		}
		if strings.HasPrefix(string(pqErr.Code), "57P") {
			return ClassFatal
		}
		return ClassOther
	}
	if errors.Is(err, driver.ErrBadConn) {
		return ClassFatal
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassFatal
	}
	return ClassOther
}

// UniqueViolation reports whether err is a unique_violation and on which constraint.
func UniqueViolation(err error) (string, bool) {
	return violation(err, "23505")
}

// ForeignKeyViolation reports whether err is a foreign_key_violation and on which constraint.
func ForeignKeyViolation(err error) (string, bool) {
	return violation(err, "23503")
}

func violation(err error, code pq.ErrorCode) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == code {
		return pqErr.Constraint, true
	}
	return "", false
}

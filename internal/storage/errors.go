package storage

import "errors"

// ErrUnavailable marks persistence failures (connection refused, unreadable
// file, ...). Callers must keep it distinct from "not found": a record that
// could not be checked is not a record that is absent.
var ErrUnavailable = errors.New("storage unavailable")

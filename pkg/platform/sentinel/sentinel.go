package sentinel

import "errors"

// Store-level facts. Stores return these (optionally wrapped) and services
// translate them into coded domain errors:
//   - ErrNotFound: the eventable, event or subscription does not exist
//   - ErrConflict: a concurrent writer changed the row first (stale lock_version)
//   - ErrDuplicate: a unique key already exists (dedup key, event id)
//   - ErrUnavailable: a backing service (redis, kafka, smtp) cannot be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrDuplicate   = errors.New("duplicate")
	ErrUnavailable = errors.New("unavailable")
)

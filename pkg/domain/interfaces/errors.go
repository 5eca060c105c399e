package interfaces

import "github.com/m-mizutani/goerr/v2"

// Shared repository sentinels. Both backends return these, so callers can
// match with errors.Is without knowing which backend they talk to.
var (
	// ErrRecordNotFound indicates the requested record does not exist
	ErrRecordNotFound = goerr.New("record not found")

	// ErrRevisionMismatch indicates a conditional write or delete lost to
	// a concurrent writer
	ErrRevisionMismatch = goerr.New("record revision mismatch")

	// ErrKeyConflict indicates a create lost a race for a (class, key)
	// pair. The caller should re-read by key and update the winner.
	ErrKeyConflict = goerr.New("record key conflict")
)

package memory

import "github.com/secmon-lab/mnemora/pkg/domain/interfaces"

var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = interfaces.ErrRecordNotFound

	// ErrRevisionMismatch indicates a conditional write or delete lost a
	// race against another writer
	ErrRevisionMismatch = interfaces.ErrRevisionMismatch

	// ErrKeyConflict indicates a create lost a race for a (class, key) pair
	ErrKeyConflict = interfaces.ErrKeyConflict
)

package types

import "github.com/google/uuid"

// RecordID is a UUID-based identifier for Record
type RecordID string

// NewRecordID generates a new UUID v4 RecordID
func NewRecordID() RecordID {
	return RecordID(uuid.New().String())
}

// String returns the string representation of the record ID
func (id RecordID) String() string {
	return string(id)
}

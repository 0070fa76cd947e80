// Package market defines the entities tracked by the marketplace ledger:
// users, tradable commodities and the outstanding offers that reference
// them.
package market

import "github.com/google/uuid"

// ID is the opaque 128-bit identifier every entity is referenced by. IDs
// are random, globally unique and immutable once assigned.
type ID uuid.UUID

// NilID is the zero identifier; no stored entity ever carries it.
var NilID = ID(uuid.Nil)

// NewID returns a fresh random identifier.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses the canonical string form of an identifier.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilID, err
	}
	return ID(u), nil
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText implements encoding.TextMarshaler so IDs serialize as UUID
// strings, including when used as JSON map keys.
func (id ID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return err
	}
	*id = ID(u)
	return nil
}

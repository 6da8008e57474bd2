package domain

import "github.com/google/uuid"

// RUMUUID identifies a session, view, resource, action or event.
type RUMUUID uuid.UUID

// NullUUID stands in for the session id of rejected (unsampled) sessions.
var NullUUID = RUMUUID(uuid.Nil)

// NewRUMUUID returns a random identifier.
func NewRUMUUID() RUMUUID {
	return RUMUUID(uuid.New())
}

// ParseRUMUUID parses the canonical string form.
func ParseRUMUUID(s string) (RUMUUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NullUUID, err
	}
	return RUMUUID(id), nil
}

// String returns the lowercase canonical form.
func (u RUMUUID) String() string {
	return uuid.UUID(u).String()
}

// IsNull reports whether u is the reserved null identifier.
func (u RUMUUID) IsNull() bool {
	return u == NullUUID
}

// MarshalText encodes the canonical string form, so identifiers serialize as
// JSON strings.
func (u RUMUUID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *RUMUUID) UnmarshalText(data []byte) error {
	id, err := uuid.ParseBytes(data)
	if err != nil {
		return err
	}
	*u = RUMUUID(id)
	return nil
}

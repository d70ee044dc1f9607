package idgen

import "github.com/rs/xid"

// Generator creates sortable unique identifiers for operation envelopes.
type Generator struct{}

// NewID returns a new identifier.
func (Generator) NewID() string {
	return xid.New().String()
}

package logging

import (
	"github.com/blockclique/blockclique-go/model/dag"
)

// Entity is anything identified by a content hash.
type Entity interface {
	ID() dag.Identifier
}

// ID returns the text form of the id of an entity, for log fields.
func ID(entity Entity) string {
	return entity.ID().String()
}

// IDs returns the text form of a list of identifiers, for log fields.
func IDs(ids []dag.Identifier) []string {
	return dag.IdentifierList(ids).Strings()
}

package store

import (
	"strings"

	"github.com/google/uuid"
)

// localIDPrefix marks ids assigned on this device while the remote store
// was unreachable. A record keeps its local id only until flush rewrites
// it with the remote-assigned canonical id.
const localIDPrefix = "local-"

// NewLocalID generates a prefix-marked id for a record created offline.
func NewLocalID() string {
	return localIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was generated offline and is not yet
// confirmed by the remote store.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

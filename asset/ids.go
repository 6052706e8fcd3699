package asset

import (
	"fmt"

	"github.com/google/uuid"
)

// MeshID and InstanceID are stable identities minted once per asset
// and per scene instance respectively — google/uuid so independently
// loaded assets and independently spawned instances never collide
// without a shared counter, the same reasoning cache.Token uses for
// GPU-resource tokens.
type MeshID uuid.UUID
type InstanceID uuid.UUID

func NewMeshID() MeshID         { return MeshID(uuid.New()) }
func NewInstanceID() InstanceID { return InstanceID(uuid.New()) }

func (id MeshID) String() string     { return uuid.UUID(id).String() }
func (id InstanceID) String() string { return uuid.UUID(id).String() }

func errInvariant(kind string, node, child int, got, want float32) error {
	return fmt.Errorf("asset: %s %d child %d violates LOD monotonicity: error %f >= parent bound %f", kind, node, child, got, want)
}

package chain

import (
	"github.com/google/uuid"
)

// refNamespace scopes deterministic transfer references to this system.
var refNamespace = uuid.MustParse("7f1c9b6e-4c1a-4a7d-9f3e-2d8a5b0c6e41")

// TransferRef derives the idempotent transfer reference for a game-player
// record. The same record always yields the same reference, so a retried
// send against an already-confirmed transfer is a safe no-op on the chain
// side.
func TransferRef(gamePlayerID uuid.UUID) string {
	return uuid.NewSHA1(refNamespace, []byte(gamePlayerID.String())).String()
}

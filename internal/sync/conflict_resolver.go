package sync

import (
	"fmt"
	"time"
)

// WriteVersion is one side of a reconciliation
type WriteVersion struct {
	VectorClock VectorClock `json:"vector_clock"`
	WrittenAt   time.Time   `json:"written_at"`
	DeviceID    string      `json:"device_id"`
}

// ConflictResolution represents the outcome of comparing two writes
type ConflictResolution struct {
	Strategy ConflictResolutionStrategy `json:"strategy"`
	Winner   Side                       `json:"winner"`
	Relation ClockRelation              `json:"relation"`
	Reason   string                     `json:"reason"`
}

// Causal reports whether the clocks alone decided the winner
func (r ConflictResolution) Causal() bool {
	return r.Relation == ClockBefore || r.Relation == ClockAfter
}

// ConflictResolver settles a local write against the remote row
type ConflictResolver struct {
	fallback ConflictResolutionStrategy
}

// NewConflictResolver creates a resolver. The fallback applies only when
// the clocks give no causal order; it defaults to last write wins.
func NewConflictResolver(fallback ConflictResolutionStrategy) *ConflictResolver {
	switch fallback {
	case ConflictLastWriteWins, ConflictRemoteWins, ConflictLocalWins:
	default:
		fallback = ConflictLastWriteWins
	}
	return &ConflictResolver{fallback: fallback}
}

// Resolve picks the write that survives
func (cr *ConflictResolver) Resolve(local, remote WriteVersion) ConflictResolution {
	relation := local.VectorClock.Compare(remote.VectorClock)

	switch relation {
	case ClockBefore:
		return ConflictResolution{
			Strategy: ConflictCausal,
			Winner:   SideRemote,
			Relation: relation,
			Reason:   "Remote version causally follows local (vector clock)",
		}
	case ClockAfter:
		return ConflictResolution{
			Strategy: ConflictCausal,
			Winner:   SideLocal,
			Relation: relation,
			Reason:   "Local version causally follows remote (vector clock)",
		}
	}

	res := cr.resolveUnordered(local, remote)
	res.Relation = relation
	return res
}

// resolveUnordered handles equal and concurrent clocks
func (cr *ConflictResolver) resolveUnordered(local, remote WriteVersion) ConflictResolution {
	switch cr.fallback {
	case ConflictRemoteWins:
		return ConflictResolution{Strategy: cr.fallback, Winner: SideRemote, Reason: "Remote wins by policy"}
	case ConflictLocalWins:
		return ConflictResolution{Strategy: cr.fallback, Winner: SideLocal, Reason: "Local wins by policy"}
	}

	// Ties go to the local write: pushing is an explicit user action
	if remote.WrittenAt.After(local.WrittenAt) {
		return ConflictResolution{
			Strategy: ConflictLastWriteWins,
			Winner:   SideRemote,
			Reason: fmt.Sprintf("Remote timestamp (%s) is more recent than local (%s)",
				remote.WrittenAt.UTC().Format(time.RFC3339), local.WrittenAt.UTC().Format(time.RFC3339)),
		}
	}
	return ConflictResolution{
		Strategy: ConflictLastWriteWins,
		Winner:   SideLocal,
		Reason: fmt.Sprintf("Local timestamp (%s) is not older than remote (%s)",
			local.WrittenAt.UTC().Format(time.RFC3339), remote.WrittenAt.UTC().Format(time.RFC3339)),
	}
}

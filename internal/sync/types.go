package sync

// Side names which copy of a report a resolution picked
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// ConflictResolutionStrategy defines how writes without a causal order are settled
type ConflictResolutionStrategy string

const (
	ConflictLastWriteWins ConflictResolutionStrategy = "last_write_wins"
	ConflictRemoteWins    ConflictResolutionStrategy = "remote_wins"
	ConflictLocalWins     ConflictResolutionStrategy = "local_wins"
	ConflictCausal        ConflictResolutionStrategy = "causal"
)

// Conflict types recorded in sync_conflicts
const (
	ConflictTypeConcurrent = "concurrent"
	ConflictTypeEqualClock = "equal_clock"
)

package model

// SnapshotMeta tags a read result with its origin. A snapshot served purely
// from local cache with no outstanding local write must not update visible
// state; the authoritative value is still on its way.
type SnapshotMeta struct {
	FromCache        bool `json:"fromCache"`
	HasPendingWrites bool `json:"hasPendingWrites"`
}

// Authoritative reports whether the snapshot may update visible state.
func (m SnapshotMeta) Authoritative() bool {
	return !m.FromCache || m.HasPendingWrites
}

// DocumentSnapshot is one delivery from a live entitled-document subscription.
type DocumentSnapshot struct {
	SnapshotMeta
	Level     int        `json:"level"`
	Documents []Document `json:"documents"`
}

// ProfileSnapshot is one delivery from a live user-profile subscription.
// Exists is false when the profile document is missing; Profile is then zero.
type ProfileSnapshot struct {
	SnapshotMeta
	Exists  bool        `json:"exists"`
	Profile UserProfile `json:"profile"`
}

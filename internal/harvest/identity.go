package harvest

// IdentityIndex remembers which elements a session has already processed.
// It is scoped to one harvest and is not safe for concurrent use.
type IdentityIndex struct {
	seen map[Identity]struct{}
}

// NewIdentityIndex returns an empty index.
func NewIdentityIndex() *IdentityIndex {
	return &IdentityIndex{seen: make(map[Identity]struct{})}
}

// IsNew reports whether id has not been marked seen.
func (x *IdentityIndex) IsNew(id Identity) bool {
	_, ok := x.seen[id]
	return !ok
}

// MarkSeen records id.
func (x *IdentityIndex) MarkSeen(id Identity) {
	x.seen[id] = struct{}{}
}

// Len is the number of distinct identities seen.
func (x *IdentityIndex) Len() int {
	return len(x.seen)
}

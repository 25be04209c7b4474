package domain

// MomentGroup is the ordered set of one author's active moments shown
// consecutively in the viewer, plus the cursor the viewer should start at.
// A group with zero moments is never built.
type MomentGroup struct {
	AuthorID    string
	Moments     []Moment
	StartCursor int
}

// FirstUnseen returns the index of the first moment the viewer has not seen,
// or 0 when everything has been seen already.
func (g MomentGroup) FirstUnseen() int {
	for i, m := range g.Moments {
		if !m.Seen {
			return i
		}
	}
	return 0
}

// AllSeen reports whether the viewer has seen every moment in the group.
func (g MomentGroup) AllSeen() bool {
	for _, m := range g.Moments {
		if !m.Seen {
			return false
		}
	}
	return true
}

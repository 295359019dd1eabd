// Package recency maintains bounded "recently viewed" lists.
//
// Each subject (a user) owns at most Capacity entries per list. Recording an
// interaction either creates an entry or refreshes the timestamp of the
// existing one, then evicts everything beyond the Capacity most recent. The
// three steps run as one atomic unit per subject in every Store, so
// concurrent interactions from the same subject never leave more than
// Capacity entries behind.
//
// Entries are ordered by LastInteractionAt descending with Seq, a monotonic
// interaction sequence assigned on every insert and refresh, breaking ties.
package recency

import (
	"context"
	"errors"
	"time"
)

// DefaultCapacity is the number of entries kept per subject and list.
const DefaultCapacity = 5

// List identifies one recency list.
type List string

const (
	ViewedPosts List = "viewed_posts"
	ViewedUsers List = "viewed_users"
)

// Valid reports whether l is a known list.
func (l List) Valid() bool {
	return l == ViewedPosts || l == ViewedUsers
}

// Outcome tells whether an interaction created or refreshed an entry.
type Outcome int

const (
	Created Outcome = iota + 1
	Refreshed
)

// String returns the label used in metrics and responses.
func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Refreshed:
		return "refreshed"
	default:
		return "unknown"
	}
}

// MarshalText renders the outcome as its label.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Entry is one (subject, target) interaction record.
type Entry struct {
	SubjectID         string    `json:"subject_id"`
	TargetID          string    `json:"target_id"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
	Seq               int64     `json:"-"`
}

// Result describes what a RecordInteraction call did.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Evicted int     `json:"evicted"`
}

// Errors.
var (
	ErrInvalidInput   = errors.New("invalid recency input")
	ErrUnknownList    = errors.New("unknown recency list")
	ErrUnknownSubject = errors.New("unknown recency subject")
)

// Store persists recency lists. Record must apply lookup, upsert and
// eviction atomically with respect to other calls for the same subject.
type Store interface {
	Record(ctx context.Context, list List, subjectID, targetID string, at time.Time, capacity int) (Result, error)
	ListRecent(ctx context.Context, list List, subjectID string) ([]Entry, error)
}

// newer reports whether a sorts before b: more recent first, then higher seq.
func newer(a, b Entry) bool {
	if !a.LastInteractionAt.Equal(b.LastInteractionAt) {
		return a.LastInteractionAt.After(b.LastInteractionAt)
	}
	return a.Seq > b.Seq
}

// TargetIDs returns the targets of entries in order.
func TargetIDs(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.TargetID
	}
	return ids
}

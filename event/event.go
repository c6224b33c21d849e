// Package event describes row mutations of an entity.
//
// A DataChange is immutable once produced. Values are positional: index i
// belongs to the i-th column of the entity's column list.
package event

import (
	"github.com/hupe1980/colstore/types"
)

// DataChange is one of Insert, Update or Delete.
type DataChange interface {
	// TupleID returns the mutated row.
	TupleID() types.TupleID
	// Entity returns the entity name.
	Entity() string
	isDataChange()
}

// Insert records a new row.
type Insert struct {
	Ent    string
	ID     types.TupleID
	Values []types.Value
}

// Update records a changed row. Old and New have the same length; columns
// that were not written carry identical old and new values.
type Update struct {
	Ent string
	ID  types.TupleID
	Old []types.Value
	New []types.Value
}

// Delete records a removed row with its last values.
type Delete struct {
	Ent    string
	ID     types.TupleID
	Values []types.Value
}

func (e Insert) TupleID() types.TupleID { return e.ID }
func (e Update) TupleID() types.TupleID { return e.ID }
func (e Delete) TupleID() types.TupleID { return e.ID }

func (e Insert) Entity() string { return e.Ent }
func (e Update) Entity() string { return e.Ent }
func (e Delete) Entity() string { return e.Ent }

func (Insert) isDataChange() {}
func (Update) isDataChange() {}
func (Delete) isDataChange() {}

// Changed reports whether column i differs between Old and New.
func (e Update) Changed(i int) bool {
	return !types.Equal(e.Old[i], e.New[i])
}

// Subscriber observes the committed changes of an entity.
type Subscriber interface {
	// OnCommit receives the changes of one transaction in the order they
	// were applied.
	OnCommit(changes []DataChange)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(changes []DataChange)

// OnCommit implements Subscriber.
func (f SubscriberFunc) OnCommit(changes []DataChange) { f(changes) }

// Sink collects the changes of one transaction.
type Sink struct {
	changes []DataChange
}

// Append records c.
func (s *Sink) Append(c DataChange) { s.changes = append(s.changes, c) }

// Len returns the number of recorded changes.
func (s *Sink) Len() int { return len(s.changes) }

// Drain returns and clears the recorded changes.
func (s *Sink) Drain() []DataChange {
	out := s.changes
	s.changes = nil
	return out
}

// Reset drops the recorded changes.
func (s *Sink) Reset() { s.changes = nil }

package entity

import (
	"slices"

	"github.com/hupe1980/colstore/event"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/types"
)

// Insert appends a row and returns it with its new tuple id. values are
// positional in column order.
func (tx *Tx) Insert(values []types.Value) (types.Tuple, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkWrite(); err != nil {
		return types.Tuple{}, err
	}
	if len(values) != len(tx.columns) {
		return types.Tuple{}, errs.Validationf("entity %s has %d columns, got %d values",
			tx.entry.Name, len(tx.columns), len(values))
	}
	for i, c := range tx.columns {
		if err := c.Validate(values[i]); err != nil {
			return types.Tuple{}, err
		}
	}
	values = slices.Clone(values)

	largest, err := tx.columns[0].LargestTupleID()
	if err != nil {
		return types.Tuple{}, err
	}
	next := largest + 1
	ev := event.Insert{Ent: tx.entry.Name, ID: next, Values: values}
	if err := tx.validateIndexes(ev); err != nil {
		return types.Tuple{}, err
	}

	for i, c := range tx.columns {
		id, err := c.Insert(values[i])
		if err != nil {
			return types.Tuple{}, tx.fail(err)
		}
		if id != next {
			return types.Tuple{}, tx.fail(errs.Corruptionf(
				"entity %s: column %s assigned tuple %d, expected %d",
				tx.entry.Name, c.Def().Name, id, next))
		}
	}
	if err := tx.applyIndexes(ev); err != nil {
		return types.Tuple{}, err
	}
	tx.dir.Add(uint64(next))
	tx.dirDirty = true
	tx.record(ev)
	return types.Tuple{ID: next, Values: slices.Clone(values)}, nil
}

// Update writes the named columns of row id and returns the row as it is
// afterwards. Columns are addressed by simple or qualified name.
func (tx *Tx) Update(id types.TupleID, changes map[string]types.Value) (types.Tuple, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkWrite(); err != nil {
		return types.Tuple{}, err
	}
	if !tx.live(id) {
		return types.Tuple{}, errs.ErrTupleNotFound
	}
	old, err := tx.readRow(id)
	if err != nil {
		return types.Tuple{}, err
	}
	updated := slices.Clone(old)
	for name, v := range changes {
		i := tx.position(name)
		if i < 0 {
			return types.Tuple{}, errs.Validationf("entity %s has no column %s", tx.entry.Name, name)
		}
		if err := tx.columns[i].Validate(v); err != nil {
			return types.Tuple{}, err
		}
		updated[i] = v
	}

	ev := event.Update{Ent: tx.entry.Name, ID: id, Old: old, New: updated}
	if err := tx.validateIndexes(ev); err != nil {
		return types.Tuple{}, err
	}
	changed := false
	for i, c := range tx.columns {
		if !ev.Changed(i) {
			continue
		}
		if _, err := c.Write(id, updated[i]); err != nil {
			return types.Tuple{}, tx.fail(err)
		}
		changed = true
	}
	if !changed {
		return types.Tuple{ID: id, Values: updated}, nil
	}
	if err := tx.applyIndexes(ev); err != nil {
		return types.Tuple{}, err
	}
	tx.record(ev)
	return types.Tuple{ID: id, Values: slices.Clone(updated)}, nil
}

// Delete removes row id and returns its last values.
func (tx *Tx) Delete(id types.TupleID) (types.Tuple, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkWrite(); err != nil {
		return types.Tuple{}, err
	}
	if !tx.live(id) {
		return types.Tuple{}, errs.ErrTupleNotFound
	}
	old, err := tx.readRow(id)
	if err != nil {
		return types.Tuple{}, err
	}
	for _, c := range tx.columns {
		if _, err := c.Delete(id); err != nil {
			return types.Tuple{}, tx.fail(err)
		}
	}
	ev := event.Delete{Ent: tx.entry.Name, ID: id, Values: old}
	if err := tx.applyIndexes(ev); err != nil {
		return types.Tuple{}, err
	}
	tx.dir.Remove(uint64(id))
	tx.dirDirty = true
	tx.record(ev)
	return types.Tuple{ID: id, Values: slices.Clone(old)}, nil
}

// Read returns row id projected onto cols, or every column when cols is
// empty.
func (tx *Tx) Read(id types.TupleID, cols ...string) (types.Tuple, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(); err != nil {
		return types.Tuple{}, err
	}
	if !tx.live(id) {
		return types.Tuple{}, errs.ErrTupleNotFound
	}
	positions, err := tx.positions(cols)
	if err != nil {
		return types.Tuple{}, err
	}
	out := types.Tuple{ID: id, Values: make([]types.Value, len(positions))}
	for i, p := range positions {
		if out.Values[i], err = tx.columns[p].Read(id); err != nil {
			return types.Tuple{}, err
		}
	}
	return out, nil
}

// Contains reports whether row id is live.
func (tx *Tx) Contains(id types.TupleID) (bool, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(); err != nil {
		return false, err
	}
	return tx.live(id), nil
}

// Count returns the number of live rows.
func (tx *Tx) Count() (int64, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(); err != nil {
		return 0, err
	}
	return int64(tx.dir.GetCardinality()), nil
}

// LargestTupleID returns the largest tuple id ever assigned, or types.BOC.
func (tx *Tx) LargestTupleID() (types.TupleID, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(); err != nil {
		return types.BOC, err
	}
	if len(tx.columns) == 0 {
		return types.BOC, nil
	}
	return tx.columns[0].LargestTupleID()
}

func (tx *Tx) live(id types.TupleID) bool {
	return id.Valid() && tx.dir.Contains(uint64(id))
}

func (tx *Tx) readRow(id types.TupleID) ([]types.Value, error) {
	row := make([]types.Value, len(tx.columns))
	for i, c := range tx.columns {
		v, err := c.Read(id)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func (tx *Tx) position(name string) int {
	for i, c := range tx.entry.Columns {
		if c.Def.Name == name || c.Def.Simple() == name {
			return i
		}
	}
	return -1
}

func (tx *Tx) positions(cols []string) ([]int, error) {
	if len(cols) == 0 {
		out := make([]int, len(tx.columns))
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	out := make([]int, len(cols))
	for i, name := range cols {
		if out[i] = tx.position(name); out[i] < 0 {
			return nil, errs.Validationf("entity %s has no column %s", tx.entry.Name, name)
		}
	}
	return out, nil
}

// validateIndexes runs the uniqueness checks before anything is written,
// so a violation leaves the transaction usable.
func (tx *Tx) validateIndexes(ev event.DataChange) error {
	for _, ix := range tx.indexes {
		if err := ix.Validate(ev); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) applyIndexes(ev event.DataChange) error {
	observer := tx.ctx.Observer()
	for _, ix := range tx.indexes {
		_, err := ix.TryApply(ev)
		observer.RecordIndexApply(ix.Name(), err)
		if err != nil {
			return tx.fail(err)
		}
	}
	return nil
}

func (tx *Tx) record(ev event.DataChange) {
	tx.sink.Append(ev)
	tx.ctx.AddMutations(1)
}

// Package draft holds the staged-change queue. Edits accumulate here until
// they are published to the content repository in a single commit.
package draft

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vellumhq/vellum/internal/model"
)

var draftLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	draftLogger = l
}

// Queue holds staged changes in arrival order. Staging a change whose
// primary path is already queued replaces the earlier change and moves it
// to the tail, so the queue never carries two drafts of the same file.
type Queue struct {
	mu      sync.RWMutex
	changes []Change
}

func NewQueue() *Queue {
	return &Queue{}
}

// Stage validates and appends a change. It returns the change that was
// replaced, if the primary path was already queued.
func (q *Queue) Stage(c Change) (*Change, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var replaced *Change
	for i, existing := range q.changes {
		if existing.PrimaryPath == c.PrimaryPath {
			old := existing
			replaced = &old
			q.changes = append(q.changes[:i], q.changes[i+1:]...)
			break
		}
	}

	q.changes = append(q.changes, c)

	if replaced != nil {
		draftLogger.Debug().
			Str("change_id", string(c.ID)).
			Str("replaced_id", string(replaced.ID)).
			Str("primary_path", c.PrimaryPath).
			Msg("Staged change replaced an earlier draft")
	}
	return replaced, nil
}

// Remove drops a change by id and returns it, or nil if it was not queued.
func (q *Queue) Remove(id model.ChangeID) *Change {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, c := range q.changes {
		if c.ID == id {
			removed := c
			q.changes = append(q.changes[:i], q.changes[i+1:]...)
			return &removed
		}
	}
	return nil
}

// Get returns a queued change by id, or nil.
func (q *Queue) Get(id model.ChangeID) *Change {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, c := range q.changes {
		if c.ID == id {
			found := c
			return &found
		}
	}
	return nil
}

// List returns the queued changes in order.
func (q *Queue) List() []Change {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]Change, len(q.changes))
	copy(out, q.changes)
	return out
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.changes)
}

// Clear drains the queue and returns what it held.
func (q *Queue) Clear() []Change {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.changes
	q.changes = nil
	return drained
}

// Reset replaces the queue contents, used when loading persisted drafts
// at startup. Invalid changes are dropped with a warning.
func (q *Queue) Reset(changes []Change) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.changes = q.changes[:0]
	for _, c := range changes {
		if err := c.Validate(); err != nil {
			draftLogger.Warn().
				Err(err).
				Str("change_id", string(c.ID)).
				Msg("Dropping invalid persisted change")
			continue
		}
		q.changes = append(q.changes, c)
	}
}

// Flatten collapses the queue into one operation per file path. When several
// queued changes touch the same path, the operation staged last wins. The
// result is ordered by each path's first appearance, which keeps commit
// payloads deterministic.
func (q *Queue) Flatten() []Operation {
	q.mu.RLock()
	defer q.mu.RUnlock()

	index := make(map[string]int)
	var ops []Operation
	for _, c := range q.changes {
		for _, op := range c.Operations {
			if i, ok := index[op.Path]; ok {
				ops[i] = op
				continue
			}
			index[op.Path] = len(ops)
			ops = append(ops, op)
		}
	}
	return ops
}

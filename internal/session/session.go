// Package session owns the per-repository editing state: one draft queue,
// one read mirror, and one publisher per connected repository, serialized
// behind a session mutex so staging, publishing, and branch switching never
// interleave.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vellumhq/vellum/internal/deploy"
	"github.com/vellumhq/vellum/internal/draft"
	"github.com/vellumhq/vellum/internal/gitremote"
	"github.com/vellumhq/vellum/internal/mirror"
	"github.com/vellumhq/vellum/internal/model"
	"github.com/vellumhq/vellum/internal/publish"
	"github.com/vellumhq/vellum/internal/sse"
)

var sessionLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	sessionLogger = l
}

var ErrChangeNotFound = errors.New("staged change not found")

const deployTimeout = time.Minute

// Session is the editing state for one connected repository on one branch.
// All mutating operations hold the session mutex for their full duration, so
// a publish and a branch switch can never interleave.
type Session struct {
	repo model.RepoID

	mu        sync.Mutex
	branch    string
	client    gitremote.Client
	queue     *draft.Queue
	mirror    *mirror.Mirror
	publisher *publish.Publisher

	store     draft.Store
	events    *sse.SSEClients
	target    deploy.Target
	deferred  bool
	batchSize int
	layout    mirror.Layout
}

// ApplyResult reports what happened to a single edit: staged into the queue
// or committed immediately.
type ApplyResult struct {
	Staged    bool            `json:"staged"`
	ChangeID  model.ChangeID  `json:"changeId,omitempty"`
	Replaced  model.ChangeID  `json:"replaced,omitempty"`
	QueueSize int             `json:"queueSize"`
	Commit    *publish.Result `json:"commit,omitempty"`
}

func (s *Session) Repo() model.RepoID {
	return s.repo
}

func (s *Session) Branch() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.branch
}

func (s *Session) Deferred() bool {
	return s.deferred
}

// Mirror exposes the read model. It has its own locking and is safe to use
// while the session is busy.
func (s *Session) Mirror() *mirror.Mirror {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirror
}

func (s *Session) Changes() []draft.Change {
	return s.queue.List()
}

func (s *Session) QueueSize() int {
	return s.queue.Len()
}

// connect builds the initial read model and restores the persisted queue.
func (s *Session) connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mirror.Resync(ctx); err != nil {
		return fmt.Errorf("error syncing repository %s: %w", s.repo, err)
	}

	changes, err := s.store.Load(s.repo)
	if err != nil {
		sessionLogger.Warn().Err(err).
			Str("repo", string(s.repo)).
			Msg("Could not restore the draft queue, starting empty")
	} else if len(changes) > 0 {
		s.queue.Reset(changes)
		for _, change := range s.queue.List() {
			s.patchOps(change.Operations)
		}
	}

	sessionLogger.Info().
		Str("repo", string(s.repo)).
		Str("branch", s.branch).
		Int("queue", s.queue.Len()).
		Msg("Session connected")

	return nil
}

// Apply routes one edit: staged into the queue when the request asks for it
// or deferred publishing is on, committed immediately otherwise. The read
// mirror is patched before returning in both branches.
func (s *Session) Apply(ctx context.Context, change draft.Change, queueOnly bool) (*ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := change.Validate(); err != nil {
		return nil, err
	}

	if queueOnly || s.deferred {
		return s.stage(change)
	}
	return s.commitNow(ctx, change)
}

func (s *Session) stage(change draft.Change) (*ApplyResult, error) {
	replaced, err := s.queue.Stage(change)
	if err != nil {
		return nil, err
	}

	s.persistQueue()
	s.patchOps(change.Operations)

	result := &ApplyResult{
		Staged:    true,
		ChangeID:  change.ID,
		QueueSize: s.queue.Len(),
	}
	if replaced != nil {
		result.Replaced = replaced.ID
	}

	s.events.Broadcast(s.repo, sse.NewEvent("queue", map[string]any{
		"action":   "staged",
		"id":       change.ID,
		"replaced": result.Replaced,
		"size":     result.QueueSize,
	}))

	return result, nil
}

func (s *Session) commitNow(ctx context.Context, change draft.Change) (*ApplyResult, error) {
	message := publish.CommitMessage([]draft.Change{change})
	result, err := s.publisher.Publish(ctx, message, change.Operations)
	if err != nil {
		return nil, err
	}

	s.patchOps(change.Operations)
	s.events.Broadcast(s.repo, sse.NewEvent("publish", result))
	s.notifyDeploy(change.Operations)

	return &ApplyResult{
		Staged:    false,
		ChangeID:  change.ID,
		QueueSize: s.queue.Len(),
		Commit:    result,
	}, nil
}

// Publish commits the whole queue as one atomic commit, then clears the
// queue and resyncs the read model from the new head. On failure the queue
// is left exactly as it was.
func (s *Session) Publish(ctx context.Context, message string) (*publish.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changes := s.queue.List()
	if message == "" {
		message = publish.CommitMessage(changes)
	}
	ops := s.queue.Flatten()

	result, err := s.publisher.Publish(ctx, message, ops)
	if err != nil {
		return nil, err
	}

	s.queue.Clear()
	if err := s.store.Clear(s.repo); err != nil {
		sessionLogger.Error().Err(err).
			Str("repo", string(s.repo)).
			Msg("Could not clear the persisted queue")
	}

	if err := s.mirror.Resync(ctx); err != nil {
		// The commit landed; a stale read model is repaired on the next sync
		sessionLogger.Error().Err(err).
			Str("repo", string(s.repo)).
			Msg("Resync after publish failed")
	}

	s.events.Broadcast(s.repo, sse.NewEvent("publish", result))
	s.notifyDeploy(ops)

	return result, nil
}

// Remove drops one staged change and rolls the read model back to committed
// state plus whatever remains in the queue.
func (s *Session) Remove(id model.ChangeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	change := s.queue.Remove(id)
	if change == nil {
		return fmt.Errorf("%w: %s", ErrChangeNotFound, id)
	}

	s.persistQueue()
	s.rebuildOverlay()

	s.events.Broadcast(s.repo, sse.NewEvent("queue", map[string]any{
		"action": "removed",
		"id":     id,
		"size":   s.queue.Len(),
	}))

	return nil
}

// Clear drops every staged change.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := s.queue.Clear()
	if err := s.store.Clear(s.repo); err != nil {
		sessionLogger.Error().Err(err).
			Str("repo", string(s.repo)).
			Msg("Could not clear the persisted queue")
	}
	s.mirror.ClearOverlay()

	s.events.Broadcast(s.repo, sse.NewEvent("queue", map[string]any{
		"action":  "cleared",
		"dropped": len(dropped),
		"size":    0,
	}))
}

// SwitchBranch destroys the queue and the read model unconditionally, then
// rebuilds both against the new branch. Serialized with staging and
// publishing through the session mutex.
func (s *Session) SwitchBranch(ctx context.Context, branch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if branch == s.branch {
		return nil
	}

	s.queue.Clear()
	if err := s.store.Clear(s.repo); err != nil {
		sessionLogger.Error().Err(err).
			Str("repo", string(s.repo)).
			Msg("Could not clear the persisted queue")
	}
	s.mirror.InvalidateAll()

	m, err := mirror.New(s.client, s.repo, branch, s.layout)
	if err != nil {
		return err
	}
	if err := m.Resync(ctx); err != nil {
		return fmt.Errorf("error syncing branch %s: %w", branch, err)
	}

	s.branch = branch
	s.mirror = m
	s.publisher = publish.NewPublisher(s.client, branch, s.batchSize)

	sessionLogger.Info().
		Str("repo", string(s.repo)).
		Str("branch", branch).
		Msg("Switched branch")

	s.events.Broadcast(s.repo, sse.NewEvent("branch", map[string]any{
		"branch": branch,
	}))

	return nil
}

// shutdown wipes everything the session owns. Called on disconnect.
func (s *Session) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue.Clear()
	if err := s.store.Clear(s.repo); err != nil {
		sessionLogger.Error().Err(err).
			Str("repo", string(s.repo)).
			Msg("Could not clear the persisted queue")
	}
	s.mirror.InvalidateAll()
}

// persistQueue writes the in-memory queue through to the store. The memory
// copy is authoritative; persistence failures only cost restart durability.
func (s *Session) persistQueue() {
	if err := s.store.Replace(s.repo, s.queue.List()); err != nil {
		sessionLogger.Error().Err(err).
			Str("repo", string(s.repo)).
			Msg("Could not persist the draft queue")
	}
}

func (s *Session) patchOps(ops []draft.Operation) {
	for _, op := range ops {
		switch op.Kind {
		case draft.OpWrite:
			s.mirror.Patch(op.Path, op.Content)
		case draft.OpDelete:
			s.mirror.PatchDelete(op.Path)
		}
	}
}

func (s *Session) rebuildOverlay() {
	s.mirror.ClearOverlay()
	for _, change := range s.queue.List() {
		s.patchOps(change.Operations)
	}
}

func (s *Session) notifyDeploy(ops []draft.Operation) {
	if s.target == nil {
		return
	}

	files := make([]deploy.File, 0, len(ops))
	for _, op := range ops {
		files = append(files, deploy.File{
			Path:    op.Path,
			Content: op.Content,
			Deleted: op.Kind == draft.OpDelete,
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deployTimeout)
		defer cancel()

		if err := s.target.Sync(ctx, files); err != nil {
			sessionLogger.Error().Err(err).
				Str("target", s.target.Name()).
				Str("repo", string(s.repo)).
				Msg("Deploy sync failed")
		}
	}()
}

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vellumhq/vellum/internal/deploy"
	"github.com/vellumhq/vellum/internal/draft"
	"github.com/vellumhq/vellum/internal/gitremote"
	"github.com/vellumhq/vellum/internal/mirror"
	"github.com/vellumhq/vellum/internal/model"
	"github.com/vellumhq/vellum/internal/publish"
	"github.com/vellumhq/vellum/internal/sse"
)

var ErrNotConnected = errors.New("repository not connected")

// ManagerConfig wires the shared pieces every session uses.
type ManagerConfig struct {
	// NewClient builds the remote client for a repository. Injected so tests
	// can connect sessions against fakes.
	NewClient func(repo model.RepoID) gitremote.Client

	Store  draft.Store
	Events *sse.SSEClients

	// Target is optional; nil disables deployment.
	Target deploy.Target

	DefaultBranch string
	Deferred      bool
	BatchSize     int
	Layout        mirror.Layout
}

// Manager owns the Session per connected repository. There is no global
// session state; handlers receive the manager and look sessions up per
// request.
type Manager struct {
	mu       sync.RWMutex
	sessions map[model.RepoID]*Session

	cfg ManagerConfig
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.DefaultBranch == "" {
		cfg.DefaultBranch = "main"
	}
	return &Manager{
		sessions: make(map[model.RepoID]*Session),
		cfg:      cfg,
	}
}

// Connect returns the live session for the repository, building and syncing
// a new one on first use.
func (m *Manager) Connect(ctx context.Context, repo model.RepoID) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[repo]; ok {
		m.mu.Unlock()
		return s, nil
	}

	s, err := m.newSession(repo)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.sessions[repo] = s
	m.mu.Unlock()

	if err := s.connect(ctx); err != nil {
		m.mu.Lock()
		delete(m.sessions, repo)
		m.mu.Unlock()
		return nil, err
	}

	return s, nil
}

// Get returns the session only if the repository is already connected.
func (m *Manager) Get(repo model.RepoID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[repo]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, repo)
	}
	return s, nil
}

// Disconnect destroys the session and everything it staged.
func (m *Manager) Disconnect(repo model.RepoID) {
	m.mu.Lock()
	s, ok := m.sessions[repo]
	delete(m.sessions, repo)
	m.mu.Unlock()

	if ok {
		s.shutdown()
		sessionLogger.Info().Str("repo", string(repo)).Msg("Session disconnected")
	}
}

func (m *Manager) newSession(repo model.RepoID) (*Session, error) {
	client := m.cfg.NewClient(repo)

	mir, err := mirror.New(client, repo, m.cfg.DefaultBranch, m.cfg.Layout)
	if err != nil {
		return nil, err
	}

	return &Session{
		repo:      repo,
		branch:    m.cfg.DefaultBranch,
		client:    client,
		queue:     draft.NewQueue(),
		mirror:    mir,
		publisher: publish.NewPublisher(client, m.cfg.DefaultBranch, m.cfg.BatchSize),
		store:     m.cfg.Store,
		events:    m.cfg.Events,
		target:    m.cfg.Target,
		deferred:  m.cfg.Deferred,
		batchSize: m.cfg.BatchSize,
		layout:    m.cfg.Layout,
	}, nil
}

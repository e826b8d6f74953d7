package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vellumhq/vellum/internal/auth"
	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/db"
	"github.com/vellumhq/vellum/internal/draft"
	"github.com/vellumhq/vellum/internal/gitremote"
	"github.com/vellumhq/vellum/internal/mirror"
	"github.com/vellumhq/vellum/internal/model"
	"github.com/vellumhq/vellum/internal/publish"
	"github.com/vellumhq/vellum/internal/render"
	"github.com/vellumhq/vellum/internal/routes"
	"github.com/vellumhq/vellum/internal/session"
	"github.com/vellumhq/vellum/internal/sse"
)

const testRepo = model.RepoID("vellumhq/notes")

const welcomePost = `%%%
title = "Welcome"
date = 2025-01-01 00:00:00Z
%%%

Hello world.
`

func TestMain(m *testing.M) {
	quiet := zerolog.New(os.Stdout).Level(zerolog.ErrorLevel)
	config.SetLogger(quiet)
	db.SetLogger(quiet)
	draft.SetLogger(quiet)
	mirror.SetLogger(quiet)
	publish.SetLogger(quiet)
	render.SetLogger(quiet)
	session.SetLogger(quiet)
	SetLogger(quiet)

	if err := config.LoadConfig("testdata/missing.yaml"); err != nil {
		panic(err)
	}
	config.AppConfig.Features.Authentication.Enabled = false
	os.Exit(m.Run())
}

// fakeRemote is an in-memory stand-in for the provider's git object API.
// Blobs and trees accumulate invisibly; only UpdateRef moves the head.
type fakeRemote struct {
	mu sync.Mutex

	nextID  int
	objects map[string][]byte
	trees   map[string]map[string]string
	commits map[string]string

	headCommit  string
	lastMessage string
	refConflict bool
}

func newFakeRemote(files map[string]string) *fakeRemote {
	f := &fakeRemote{
		objects: make(map[string][]byte),
		trees:   make(map[string]map[string]string),
		commits: make(map[string]string),
	}

	tree := make(map[string]string)
	for path, content := range files {
		tree[path] = f.storeObject([]byte(content))
	}
	f.trees["tree-0"] = tree
	f.commits["commit-0"] = "tree-0"
	f.headCommit = "commit-0"
	return f
}

func (f *fakeRemote) storeObject(content []byte) string {
	f.nextID++
	id := fmt.Sprintf("obj-%d", f.nextID)
	f.objects[id] = content
	return id
}

// committedContent reads a path from the current head, the way a fresh
// clone would see it.
func (f *fakeRemote) committedContent(path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tree := f.trees[f.commits[f.headCommit]]
	id, ok := tree[path]
	if !ok {
		return "", false
	}
	return string(f.objects[id]), true
}

func (f *fakeRemote) ResolveHead(ctx context.Context, branch string) (gitremote.Head, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gitremote.Head{
		Branch: branch,
		Commit: f.headCommit,
		Tree:   f.commits[f.headCommit],
	}, nil
}

func (f *fakeRemote) CreateBlob(ctx context.Context, content []byte, encoding string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storeObject(content), nil
}

func (f *fakeRemote) CreateTree(ctx context.Context, baseTree string, entries []gitremote.TreeEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	base, ok := f.trees[baseTree]
	if !ok {
		return "", fmt.Errorf("unknown base tree %s", baseTree)
	}

	tree := make(map[string]string, len(base))
	for path, id := range base {
		tree[path] = id
	}
	for _, e := range entries {
		switch {
		case e.Deleted:
			delete(tree, e.Path)
		case e.SHA != "":
			tree[e.Path] = e.SHA
		default:
			tree[e.Path] = f.storeObject([]byte(e.Content))
		}
	}

	f.nextID++
	id := fmt.Sprintf("tree-%d", f.nextID)
	f.trees[id] = tree
	return id, nil
}

func (f *fakeRemote) CreateCommit(ctx context.Context, commit gitremote.NewCommit) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastMessage = commit.Message

	f.nextID++
	id := fmt.Sprintf("commit-%d", f.nextID)
	f.commits[id] = commit.Tree
	return id, nil
}

func (f *fakeRemote) UpdateRef(ctx context.Context, branch, sha string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.refConflict {
		return fmt.Errorf("%w: branch moved", gitremote.ErrConflict)
	}
	f.headCommit = sha
	return nil
}

func (f *fakeRemote) ListTree(ctx context.Context, treeSHA string) ([]gitremote.TreeFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tree, ok := f.trees[treeSHA]
	if !ok {
		return nil, fmt.Errorf("%w: tree %s", gitremote.ErrNotFound, treeSHA)
	}

	var files []gitremote.TreeFile
	for path, id := range tree {
		files = append(files, gitremote.TreeFile{
			Path: path,
			Mode: gitremote.ModeFile,
			Type: gitremote.TypeBlob,
			SHA:  id,
			Size: int64(len(f.objects[id])),
		})
	}
	return files, nil
}

func (f *fakeRemote) GetBlob(ctx context.Context, sha string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	content, ok := f.objects[sha]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", gitremote.ErrNotFound, sha)
	}
	return content, nil
}

var _ gitremote.Client = (*fakeRemote)(nil)

// stubAuth satisfies the provider interface with a fixed identity.
type stubAuth struct {
	userID model.UserID
	err    error
}

func (s *stubAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}

func (s *stubAuth) SessionUserID(r *http.Request) (model.UserID, error) {
	return s.userID, s.err
}

func (s *stubAuth) RequireUser(w http.ResponseWriter, r *http.Request) (model.UserID, error) {
	if s.err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", s.err
	}
	return s.userID, nil
}

func (s *stubAuth) HandleUserWebhook(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

var _ auth.Provider = (*stubAuth)(nil)

type testServer struct {
	handler *Handler
	manager *session.Manager
	remote  *fakeRemote
	events  *sse.SSEClients
	mux     *http.ServeMux
	session *session.Session
}

func newTestServer(t *testing.T, deferred bool) *testServer {
	t.Helper()

	remote := newFakeRemote(map[string]string{
		"posts/welcome.md": welcomePost,
		"media/logo.png":   "fake png bytes",
		"site.json":        `{"name":"Test Site","description":"d","tagline":"t"}`,
	})

	database := db.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err := database.InitDB(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	events := sse.NewSSEClients()
	manager := session.NewManager(session.ManagerConfig{
		NewClient:     func(model.RepoID) gitremote.Client { return remote },
		Store:         draft.NewSQLiteStore(database),
		Events:        events,
		DefaultBranch: "main",
		Deferred:      deferred,
		BatchSize:     4,
		Layout:        mirror.DefaultLayout(),
	})

	sess, err := manager.Connect(context.Background(), testRepo)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	handler := NewHandler(manager, testRepo, &stubAuth{userID: "tester"}, events)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	return &testServer{
		handler: handler,
		manager: manager,
		remote:  remote,
		events:  events,
		mux:     mux,
		session: sess,
	}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func formRequest(method, target, content string) *http.Request {
	form := url.Values{"content": {content}}
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set(config.HCType, "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(string(data)))
	req.Header.Set(config.HCType, config.CTypeJSON)
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestServeHealth(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, routes.Health, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var status map[string]any
	decodeJSON(t, rec, &status)
	if status["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", status["status"])
	}
	if status["repo"] != string(testRepo) {
		t.Errorf("Expected repo %s, got %v", testRepo, status["repo"])
	}
	if status["branch"] != "main" {
		t.Errorf("Expected branch main, got %v", status["branch"])
	}
	if status["head"] != "commit-0" {
		t.Errorf("Expected head commit-0, got %v", status["head"])
	}
}

func TestServeWorkspace(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, routes.Workspace, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var state model.WorkspaceState
	decodeJSON(t, rec, &state)
	if state.Repo != testRepo {
		t.Errorf("Expected repo %s, got %s", testRepo, state.Repo)
	}
	if state.Branch != "main" {
		t.Errorf("Expected branch main, got %s", state.Branch)
	}
	if !state.DeferredPublish {
		t.Error("Expected deferred publishing on")
	}
	if state.QueueSize != 0 {
		t.Errorf("Expected empty queue, got %d", state.QueueSize)
	}
}

func TestServeWorkspaceNotConnected(t *testing.T) {
	manager := session.NewManager(session.ManagerConfig{
		NewClient: func(model.RepoID) gitremote.Client { return newFakeRemote(nil) },
	})
	handler := NewHandler(manager, testRepo, &stubAuth{}, sse.NewSSEClients())
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, routes.Workspace, nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), config.ErrRemoteUnavailable) {
		t.Errorf("Expected remote unavailable message, got %q", rec.Body.String())
	}
}

func TestEnforceWithAuthEnabled(t *testing.T) {
	ts := newTestServer(t, true)
	ts.handler.auth = &stubAuth{err: errors.New("no identity")}

	config.AppConfig.Features.Authentication.Enabled = true
	defer func() { config.AppConfig.Features.Authentication.Enabled = false }()

	// Mutating endpoints reject anonymous requests
	rec := ts.do(t, formRequest(http.MethodPut, "/api/posts/welcome", "# x"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 on post save, got %d", rec.Code)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodPost, routes.Publish, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 on publish, got %d", rec.Code)
	}

	// Reads stay open
	rec = ts.do(t, httptest.NewRequest(http.MethodGet, routes.Posts, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 on post list, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, false)

	cases := []struct {
		method string
		target string
	}{
		{http.MethodDelete, routes.Posts},
		{http.MethodGet, routes.Media},
		{http.MethodPost, routes.Files},
		{http.MethodPut, routes.Queue},
		{http.MethodGet, routes.Publish},
		{http.MethodGet, routes.Branch},
		{http.MethodGet, routes.Preview},
		{http.MethodGet, routes.ThemeToggle},
	}
	for _, tc := range cases {
		rec := ts.do(t, httptest.NewRequest(tc.method, tc.target, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", tc.method, tc.target, rec.Code)
		}
	}
}

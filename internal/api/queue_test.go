package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/draft"
	"github.com/vellumhq/vellum/internal/model"
	"github.com/vellumhq/vellum/internal/publish"
	"github.com/vellumhq/vellum/internal/routes"
	"github.com/vellumhq/vellum/internal/session"
	"github.com/vellumhq/vellum/internal/sse"
)

type queueView struct {
	Size    int `json:"size"`
	Changes []struct {
		ID          model.ChangeID `json:"id"`
		Kind        draft.Kind     `json:"kind"`
		Summary     string         `json:"summary"`
		PrimaryPath string         `json:"primaryPath"`
		Files       int            `json:"files"`
	} `json:"changes"`
}

func (ts *testServer) stagePost(t *testing.T, slug, body string) session.ApplyResult {
	t.Helper()
	rec := ts.do(t, formRequest(http.MethodPut, "/api/posts/"+slug, body))
	if rec.Code != http.StatusOK {
		t.Fatalf("Staging %s failed: %d %s", slug, rec.Code, rec.Body.String())
	}
	var res session.ApplyResult
	decodeJSON(t, rec, &res)
	return res
}

func (ts *testServer) queue(t *testing.T) queueView {
	t.Helper()
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, routes.Queue, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Queue fetch failed: %d", rec.Code)
	}
	var view queueView
	decodeJSON(t, rec, &view)
	return view
}

func TestServeQueueList(t *testing.T) {
	ts := newTestServer(t, true)

	ts.stagePost(t, "welcome", updatedPost)
	ts.stagePost(t, "draft-two", "Second body.")

	view := ts.queue(t)
	if view.Size != 2 {
		t.Fatalf("Expected queue size 2, got %d", view.Size)
	}
	if view.Changes[0].Summary != "Welcome Again" {
		t.Errorf("Expected front matter summary, got %q", view.Changes[0].Summary)
	}
	if view.Changes[0].Kind != draft.KindPost {
		t.Errorf("Expected post kind, got %q", view.Changes[0].Kind)
	}
	if view.Changes[1].PrimaryPath != "posts/draft-two.md" {
		t.Errorf("Expected primary path, got %q", view.Changes[1].PrimaryPath)
	}
	if view.Changes[0].Files != 1 {
		t.Errorf("Expected 1 file, got %d", view.Changes[0].Files)
	}
}

func TestServeQueueDeduplicatesByPath(t *testing.T) {
	ts := newTestServer(t, true)

	first := ts.stagePost(t, "welcome", "First draft.")
	second := ts.stagePost(t, "welcome", "Second draft.")

	if second.Replaced != first.ChangeID {
		t.Errorf("Expected the second save to replace %s, got %s", first.ChangeID, second.Replaced)
	}

	view := ts.queue(t)
	if view.Size != 1 {
		t.Fatalf("Expected one queued change after replacement, got %d", view.Size)
	}
}

func TestServeQueueRemove(t *testing.T) {
	ts := newTestServer(t, true)

	res := ts.stagePost(t, "welcome", updatedPost)
	ts.stagePost(t, "other", "Other body.")

	rec := ts.do(t, httptest.NewRequest(http.MethodDelete, routes.Queue+"/"+string(res.ChangeID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var sizes map[string]int
	decodeJSON(t, rec, &sizes)
	if sizes["size"] != 1 {
		t.Errorf("Expected size 1 after removal, got %d", sizes["size"])
	}

	// The read model rolled back to the committed content
	var detail postDetail
	getRec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/posts/welcome", nil))
	decodeJSON(t, getRec, &detail)
	if detail.Markdown != welcomePost {
		t.Error("Expected the committed content after removing the staged edit")
	}
}

func TestServeQueueRemoveMissing(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, httptest.NewRequest(http.MethodDelete, routes.Queue+"/no-such-id", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), config.ErrChangeNotFound) {
		t.Errorf("Expected change not found message, got %q", rec.Body.String())
	}
}

func TestServeQueueClear(t *testing.T) {
	ts := newTestServer(t, true)

	ts.stagePost(t, "welcome", updatedPost)
	ts.stagePost(t, "other", "Other body.")

	rec := ts.do(t, httptest.NewRequest(http.MethodDelete, routes.Queue, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	if view := ts.queue(t); view.Size != 0 {
		t.Errorf("Expected empty queue, got %d", view.Size)
	}
}

func TestServePublish(t *testing.T) {
	ts := newTestServer(t, true)

	client := &sse.Client{Msg: make(chan sse.Event, 8), Repo: testRepo}
	ts.events.Add(client)
	defer ts.events.Delete(client)

	ts.stagePost(t, "welcome", updatedPost)
	ts.stagePost(t, "second", "Another post.")
	drainEvents(client)

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, routes.Publish, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result publish.Result
	decodeJSON(t, rec, &result)
	if result.Files != 2 {
		t.Errorf("Expected 2 files in the commit, got %d", result.Files)
	}
	if result.Parent != "commit-0" {
		t.Errorf("Expected parent commit-0, got %q", result.Parent)
	}
	if result.Branch != "main" {
		t.Errorf("Expected branch main, got %q", result.Branch)
	}

	// One commit with both changes in the message
	if !strings.HasPrefix(ts.remote.lastMessage, "Publish 2 changes") {
		t.Errorf("Expected derived message, got %q", ts.remote.lastMessage)
	}
	if committed, _ := ts.remote.committedContent("posts/second.md"); committed != "Another post." {
		t.Error("Expected the queued post on the branch")
	}

	// Queue drained and the publish event broadcast
	if view := ts.queue(t); view.Size != 0 {
		t.Errorf("Expected drained queue, got %d", view.Size)
	}

	select {
	case event := <-client.Msg:
		if event.Name != "publish" {
			t.Errorf("Expected publish event, got %q", event.Name)
		}
	default:
		t.Error("Expected a publish event")
	}
}

func TestServePublishCustomMessage(t *testing.T) {
	ts := newTestServer(t, true)

	ts.stagePost(t, "welcome", updatedPost)

	rec := ts.do(t, jsonRequest(t, http.MethodPost, routes.Publish, map[string]string{
		"message": "Rework the welcome page",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ts.remote.lastMessage != "Rework the welcome page" {
		t.Errorf("Expected the custom message, got %q", ts.remote.lastMessage)
	}
}

func TestServePublishEmptyQueue(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, routes.Publish, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), config.ErrNothingToPublish) {
		t.Errorf("Expected nothing to publish message, got %q", rec.Body.String())
	}
}

func TestServePublishConflictKeepsQueue(t *testing.T) {
	ts := newTestServer(t, true)

	ts.stagePost(t, "welcome", updatedPost)
	ts.remote.refConflict = true

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, routes.Publish, nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	// The staged work survives a failed publish
	if view := ts.queue(t); view.Size != 1 {
		t.Errorf("Expected the queue retained, got size %d", view.Size)
	}
}

func TestServeBranchSwitch(t *testing.T) {
	ts := newTestServer(t, true)

	ts.stagePost(t, "welcome", updatedPost)

	rec := ts.do(t, jsonRequest(t, http.MethodPost, routes.Branch, map[string]string{
		"branch": "drafts",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var res map[string]string
	decodeJSON(t, rec, &res)
	if res["branch"] != "drafts" {
		t.Errorf("Expected branch drafts, got %q", res["branch"])
	}
	if res["head"] == "" {
		t.Error("Expected a head commit")
	}

	// Switching abandons staged work
	if view := ts.queue(t); view.Size != 0 {
		t.Errorf("Expected the queue dropped on switch, got %d", view.Size)
	}
}

func TestServeBranchMissingName(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, jsonRequest(t, http.MethodPost, routes.Branch, map[string]string{}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func drainEvents(client *sse.Client) {
	for {
		select {
		case <-client.Msg:
		default:
			return
		}
	}
}

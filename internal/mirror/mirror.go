// Package mirror keeps a local read model of the content repository: the
// file listing of the branch head, raw file contents behind a bounded LRU,
// parsed posts, and the parsed site settings. Staged edits are layered on
// top so reads reflect the queue before anything is committed.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mmarkdown/mmark/v2/mast"
	"github.com/rs/zerolog"

	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/gitremote"
	"github.com/vellumhq/vellum/internal/model"
	"github.com/vellumhq/vellum/internal/util"
)

var mirrorLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	mirrorLogger = l
}

// Layout tells the mirror where content lives inside the repository.
type Layout struct {
	PostsDir     string
	MediaDir     string
	SettingsPath string
	CacheEntries int
}

// DefaultLayout matches the standard repository layout.
func DefaultLayout() Layout {
	return Layout{
		PostsDir:     config.PostsLocalDir,
		MediaDir:     config.MediaLocalDir,
		SettingsPath: config.SettingsFilePath,
		CacheEntries: 256,
	}
}

// Mirror is the per-repository read model. All reads go through it; the
// remote is only touched on Resync and on raw content misses. Contents are
// cached by blob id, so entries stay valid across resyncs.
type Mirror struct {
	client gitremote.Client
	repo   model.RepoID
	branch string
	layout Layout

	mu      sync.RWMutex
	head    gitremote.Head
	files   map[string]gitremote.TreeFile
	staged  map[string][]byte
	deleted map[string]struct{}

	// Committed state from the last Resync, kept pristine so the staged
	// overlay can be rolled back without another remote round trip.
	committedPosts    []model.Post
	committedSettings model.SiteSettings

	posts       map[model.PostID]*model.Post
	postsSorted []model.Post
	settings    model.SiteSettings

	contents *lru.Cache[string, []byte]
}

func New(client gitremote.Client, repo model.RepoID, branch string, layout Layout) (*Mirror, error) {
	if layout.CacheEntries <= 0 {
		layout.CacheEntries = DefaultLayout().CacheEntries
	}

	contents, err := lru.New[string, []byte](layout.CacheEntries)
	if err != nil {
		return nil, fmt.Errorf("creating content cache: %w", err)
	}

	return &Mirror{
		client:   client,
		repo:     repo,
		branch:   branch,
		layout:   layout,
		files:    make(map[string]gitremote.TreeFile),
		staged:   make(map[string][]byte),
		deleted:  make(map[string]struct{}),
		posts:    make(map[model.PostID]*model.Post),
		contents: contents,
	}, nil
}

// Resync rebuilds the whole read model from the current branch head and
// drops the staged overlay. Callers that still hold staged changes re-apply
// them afterwards.
func (m *Mirror) Resync(ctx context.Context) error {
	head, err := m.client.ResolveHead(ctx, m.branch)
	if err != nil {
		return fmt.Errorf("error resolving head: %w", err)
	}

	listing, err := m.client.ListTree(ctx, head.Tree)
	if err != nil {
		return fmt.Errorf("error listing tree: %w", err)
	}

	files := make(map[string]gitremote.TreeFile, len(listing))
	for _, f := range listing {
		files[f.Path] = f
	}

	sorted := slices.Clone(listing)
	slices.SortFunc(sorted, func(a, b gitremote.TreeFile) int {
		return strings.Compare(a.Path, b.Path)
	})

	posts := make(map[model.PostID]*model.Post)
	var postsSorted []model.Post
	for _, f := range sorted {
		if !m.isPostPath(f.Path) {
			continue
		}

		content, err := m.fetchBlob(ctx, f.SHA)
		if err != nil {
			return fmt.Errorf("error reading post %s: %w", f.Path, err)
		}

		post := m.buildPost(f.Path, content)
		postsSorted = append(postsSorted, post)
	}
	sortPosts(postsSorted)
	for i := range postsSorted {
		posts[postsSorted[i].ID] = &postsSorted[i]
	}

	settings := m.defaultSettings()
	if sf, ok := files[m.layout.SettingsPath]; ok {
		content, err := m.fetchBlob(ctx, sf.SHA)
		if err != nil {
			return fmt.Errorf("error reading site settings: %w", err)
		}
		if err := json.Unmarshal(content, &settings); err != nil {
			mirrorLogger.Warn().Err(err).
				Str("path", m.layout.SettingsPath).
				Msg("Malformed site settings, using defaults")
			settings = m.defaultSettings()
		}
	}

	m.mu.Lock()
	m.head = head
	m.files = files
	m.staged = make(map[string][]byte)
	m.deleted = make(map[string]struct{})
	m.committedPosts = slices.Clone(postsSorted)
	m.committedSettings = settings
	m.posts = posts
	m.postsSorted = postsSorted
	m.settings = settings
	m.mu.Unlock()

	mirrorLogger.Info().
		Str("repo", string(m.repo)).
		Str("branch", m.branch).
		Str("commit", head.Commit).
		Int("files", len(files)).
		Int("posts", len(postsSorted)).
		Msg("Read model synced")

	return nil
}

// Head returns the branch head captured by the last Resync.
func (m *Mirror) Head() gitremote.Head {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.head
}

// Layout returns the repository layout the mirror was built with.
func (m *Mirror) Layout() Layout {
	return m.layout
}

// Files returns the committed listing with the staged overlay applied,
// sorted by path. Staged paths that are not committed yet appear with an
// empty object id.
func (m *Mirror) Files() []gitremote.TreeFile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	merged := make([]gitremote.TreeFile, 0, len(m.files)+len(m.staged))
	for path, f := range m.files {
		if _, gone := m.deleted[path]; gone {
			continue
		}
		if staged, ok := m.staged[path]; ok {
			f.SHA = ""
			f.Size = int64(len(staged))
		}
		merged = append(merged, f)
	}
	for path, content := range m.staged {
		if _, committed := m.files[path]; committed {
			continue
		}
		merged = append(merged, gitremote.TreeFile{
			Path: path,
			Mode: gitremote.ModeFile,
			Type: gitremote.TypeBlob,
			Size: int64(len(content)),
		})
	}

	slices.SortFunc(merged, func(a, b gitremote.TreeFile) int {
		return strings.Compare(a.Path, b.Path)
	})
	return merged
}

// Content returns the file at path as the editor should see it: staged
// content first, then the committed blob. Committed blobs are fetched
// through the LRU.
func (m *Mirror) Content(ctx context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	if _, gone := m.deleted[path]; gone {
		m.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", gitremote.ErrNotFound, path)
	}
	if staged, ok := m.staged[path]; ok {
		m.mu.RUnlock()
		return slices.Clone(staged), nil
	}
	f, ok := m.files[path]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", gitremote.ErrNotFound, path)
	}
	return m.fetchBlob(ctx, f.SHA)
}

// Posts returns the parsed posts, newest first.
func (m *Mirror) Posts() []model.Post {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.postsSorted)
}

func (m *Mirror) Post(id model.PostID) (*model.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	post, ok := m.posts[id]
	if !ok {
		return nil, fmt.Errorf("post not found: %s", id)
	}
	return post, nil
}

func (m *Mirror) Settings() model.SiteSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Patch records a staged write so reads return it immediately. Posts and
// settings views are updated in the same critical section.
func (m *Mirror) Patch(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.staged[path] = slices.Clone(content)
	delete(m.deleted, path)

	if m.isPostPath(path) {
		m.replacePost(m.buildPost(path, content))
	}
	if path == m.layout.SettingsPath {
		settings := m.defaultSettings()
		if err := json.Unmarshal(content, &settings); err == nil {
			m.settings = settings
		}
	}

	mirrorLogger.Debug().Str("path", path).Msg("Read model patched")
}

// PatchDelete records a staged deletion.
func (m *Mirror) PatchDelete(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleted[path] = struct{}{}
	delete(m.staged, path)

	if m.isPostPath(path) {
		m.removePost(path)
	}
	if path == m.layout.SettingsPath {
		m.settings = m.defaultSettings()
	}

	mirrorLogger.Debug().Str("path", path).Msg("Read model patched with deletion")
}

// ClearOverlay rolls the read model back to the committed state from the
// last Resync. Used when staged changes are removed without being published;
// the caller re-applies whatever remains in the queue.
func (m *Mirror) ClearOverlay() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.staged = make(map[string][]byte)
	m.deleted = make(map[string]struct{})

	m.postsSorted = slices.Clone(m.committedPosts)
	m.posts = make(map[model.PostID]*model.Post, len(m.postsSorted))
	for i := range m.postsSorted {
		m.posts[m.postsSorted[i].ID] = &m.postsSorted[i]
	}
	m.settings = m.committedSettings
}

// InvalidateAll drops the whole read model. Used on branch switch and
// disconnect; the mirror serves nothing until the next Resync.
func (m *Mirror) InvalidateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.head = gitremote.Head{}
	m.files = make(map[string]gitremote.TreeFile)
	m.staged = make(map[string][]byte)
	m.deleted = make(map[string]struct{})
	m.committedPosts = nil
	m.committedSettings = model.SiteSettings{}
	m.posts = make(map[model.PostID]*model.Post)
	m.postsSorted = nil
	m.settings = model.SiteSettings{}
	m.contents.Purge()
}

func (m *Mirror) fetchBlob(ctx context.Context, sha string) ([]byte, error) {
	if content, ok := m.contents.Get(sha); ok {
		return content, nil
	}

	content, err := m.client.GetBlob(ctx, sha)
	if err != nil {
		return nil, err
	}

	m.contents.Add(sha, content)
	return content, nil
}

func (m *Mirror) isPostPath(path string) bool {
	return strings.HasPrefix(path, m.layout.PostsDir+"/") &&
		strings.HasSuffix(path, config.MarkdownExt)
}

func (m *Mirror) buildPost(path string, content []byte) model.Post {
	slug := strings.TrimSuffix(strings.TrimPrefix(path, m.layout.PostsDir+"/"), config.MarkdownExt)

	info, err := util.ParseFrontMatter(content)
	if err != nil {
		info = &mast.TitleData{Title: slug}
	}

	title := info.Title
	if title == "" {
		title = slug
	}

	return model.Post{
		ID:            model.PostID(util.ContentHashString(slug)),
		Title:         title,
		Path:          path,
		Markdown:      content,
		MDContentHash: util.ContentHash(content),
		CreatedDate:   info.Date,
		ModifiedDate:  info.Date,
		Info:          info,
	}
}

// replacePost and removePost expect the write lock to be held.
func (m *Mirror) replacePost(post model.Post) {
	for i := range m.postsSorted {
		if m.postsSorted[i].ID == post.ID {
			m.postsSorted = append(m.postsSorted[:i], m.postsSorted[i+1:]...)
			break
		}
	}
	m.postsSorted = append(m.postsSorted, post)
	sortPosts(m.postsSorted)

	m.posts = make(map[model.PostID]*model.Post, len(m.postsSorted))
	for i := range m.postsSorted {
		m.posts[m.postsSorted[i].ID] = &m.postsSorted[i]
	}
}

func (m *Mirror) removePost(path string) {
	for i := range m.postsSorted {
		if m.postsSorted[i].Path == path {
			delete(m.posts, m.postsSorted[i].ID)
			m.postsSorted = append(m.postsSorted[:i], m.postsSorted[i+1:]...)
			return
		}
	}
}

func (m *Mirror) defaultSettings() model.SiteSettings {
	settings := model.SiteSettings{}
	if config.AppConfig != nil {
		settings.Name = config.AppConfig.Site.Name
		settings.Description = config.AppConfig.Site.Description
		settings.Tagline = config.AppConfig.Site.Tagline
	}
	return settings
}

func sortPosts(posts []model.Post) {
	slices.SortStableFunc(posts, func(a, b model.Post) int {
		return -a.ModifiedDate.Compare(b.ModifiedDate)
	})
}

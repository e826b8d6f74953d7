package gitremote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vellumhq/vellum/internal/model"
)

// GitHub implements Client against the GitHub REST git data API.
type GitHub struct {
	apiBase    string
	repo       model.RepoID
	token      string
	httpClient *http.Client
}

func NewGitHub(apiBase string, repo model.RepoID, token string, timeout time.Duration) *GitHub {
	return &GitHub{
		apiBase: strings.TrimRight(apiBase, "/"),
		repo:    repo,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (g *GitHub) repoURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/%s%s", g.apiBase, g.repo.Owner(), g.repo.Name(), path)
}

func (g *GitHub) do(ctx context.Context, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, URL: url}
		var payload struct {
			Message string `json:"message"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr == nil {
			apiErr.Message = payload.Message
		}
		remoteLogger.Warn().
			Str("method", method).
			Str("url", url).
			Int("status", resp.StatusCode).
			Str("message", apiErr.Message).
			Msg("Remote API request failed")
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *GitHub) ResolveHead(ctx context.Context, branch string) (Head, error) {
	var ref refResponse
	err := g.do(ctx, http.MethodGet, g.repoURL("/git/ref/heads/"+branch), nil, &ref)
	if err != nil {
		return Head{}, fmt.Errorf("resolve ref %s: %w", branch, err)
	}

	var commit commitResponse
	err = g.do(ctx, http.MethodGet, g.repoURL("/git/commits/"+ref.Object.SHA), nil, &commit)
	if err != nil {
		return Head{}, fmt.Errorf("resolve commit %s: %w", ref.Object.SHA, err)
	}

	return Head{
		Branch: branch,
		Commit: commit.SHA,
		Tree:   commit.Tree.SHA,
	}, nil
}

func (g *GitHub) CreateBlob(ctx context.Context, content []byte, encoding string) (string, error) {
	req := blobRequest{Encoding: encoding}
	switch encoding {
	case EncodingBase64:
		req.Content = base64.StdEncoding.EncodeToString(content)
	case EncodingUTF8:
		req.Content = string(content)
	default:
		return "", fmt.Errorf("unsupported blob encoding: %q", encoding)
	}

	var resp shaResponse
	if err := g.do(ctx, http.MethodPost, g.repoURL("/git/blobs"), req, &resp); err != nil {
		return "", err
	}
	return resp.SHA, nil
}

func (g *GitHub) CreateTree(ctx context.Context, baseTree string, entries []TreeEntry) (string, error) {
	req := treeRequest{BaseTree: baseTree, Tree: entries}

	var resp shaResponse
	if err := g.do(ctx, http.MethodPost, g.repoURL("/git/trees"), req, &resp); err != nil {
		return "", err
	}
	return resp.SHA, nil
}

func (g *GitHub) CreateCommit(ctx context.Context, commit NewCommit) (string, error) {
	var resp shaResponse
	if err := g.do(ctx, http.MethodPost, g.repoURL("/git/commits"), commit, &resp); err != nil {
		return "", err
	}
	return resp.SHA, nil
}

func (g *GitHub) UpdateRef(ctx context.Context, branch, sha string) error {
	req := updateRefRequest{SHA: sha, Force: false}

	err := g.do(ctx, http.MethodPatch, g.repoURL("/git/refs/heads/"+branch), req, nil)
	if err != nil {
		// The provider answers 409 or 422 when the branch tip moved and the
		// update is not a fast-forward.
		var apiErr *APIError
		if errors.As(err, &apiErr) &&
			(apiErr.StatusCode == http.StatusConflict || apiErr.StatusCode == http.StatusUnprocessableEntity) {
			return fmt.Errorf("%w: %s", ErrConflict, apiErr.Message)
		}
		return err
	}
	return nil
}

func (g *GitHub) ListTree(ctx context.Context, treeSHA string) ([]TreeFile, error) {
	var resp treeResponse
	err := g.do(ctx, http.MethodGet, g.repoURL("/git/trees/"+treeSHA+"?recursive=1"), nil, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Truncated {
		remoteLogger.Warn().
			Str("tree", treeSHA).
			Msg("Recursive tree listing was truncated by the provider")
	}

	files := make([]TreeFile, 0, len(resp.Tree))
	for _, f := range resp.Tree {
		if f.Type == TypeBlob {
			files = append(files, f)
		}
	}
	return files, nil
}

func (g *GitHub) GetBlob(ctx context.Context, sha string) ([]byte, error) {
	var resp blobResponse
	if err := g.do(ctx, http.MethodGet, g.repoURL("/git/blobs/"+sha), nil, &resp); err != nil {
		return nil, err
	}

	switch resp.Encoding {
	case EncodingBase64:
		// The provider wraps base64 content in newlines.
		cleaned := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' {
				return -1
			}
			return r
		}, resp.Content)
		return base64.StdEncoding.DecodeString(cleaned)
	case EncodingUTF8:
		return []byte(resp.Content), nil
	default:
		return nil, fmt.Errorf("unsupported blob encoding from provider: %q", resp.Encoding)
	}
}

// Package gitremote talks to the version control provider's object API.
// All writes go through raw git primitives (blobs, trees, commits, refs)
// so a multi-file publish can land as a single atomic ref update.
package gitremote

import (
	"context"

	"github.com/rs/zerolog"
)

var remoteLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	remoteLogger = l
}

const (
	EncodingUTF8   = "utf-8"
	EncodingBase64 = "base64"
)

// Tree entry modes, as the provider API expects them.
const (
	ModeFile       = "100644"
	ModeExecutable = "100755"
	ModeSubdir     = "040000"
)

const (
	TypeBlob = "blob"
	TypeTree = "tree"
)

// Client is the remote object API surface the editor needs.
// The GitHub implementation is the only one today; tests use fakes.
type Client interface {
	// ResolveHead returns the branch's current commit and its root tree.
	ResolveHead(ctx context.Context, branch string) (Head, error)

	// CreateBlob uploads raw content and returns the new blob's sha.
	CreateBlob(ctx context.Context, content []byte, encoding string) (string, error)

	// CreateTree creates a tree on top of baseTree and returns its sha.
	// Entries with Deleted set remove their path from the base tree.
	CreateTree(ctx context.Context, baseTree string, entries []TreeEntry) (string, error)

	// CreateCommit creates a commit object and returns its sha. Nothing is
	// visible on the branch until UpdateRef succeeds.
	CreateCommit(ctx context.Context, commit NewCommit) (string, error)

	// UpdateRef fast-forwards the branch to sha. A non-fast-forward update
	// fails with ErrConflict and leaves the branch untouched.
	UpdateRef(ctx context.Context, branch, sha string) error

	// ListTree returns the full recursive file listing of a tree.
	ListTree(ctx context.Context, treeSHA string) ([]TreeFile, error)

	// GetBlob fetches and decodes a blob's content.
	GetBlob(ctx context.Context, sha string) ([]byte, error)
}

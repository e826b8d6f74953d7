// Package deploy pushes the files touched by a publish to an external
// hosting target. Deployment runs after the commit lands and never affects
// the publish result; failures are logged and the next publish retries the
// same paths.
package deploy

import (
	"context"

	"github.com/rs/zerolog"
)

var deployLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	deployLogger = l
}

// File is one published path with its final content. Deleted files carry no
// content.
type File struct {
	Path    string
	Content []byte
	Deleted bool
}

// Target receives published files.
type Target interface {
	Name() string
	Sync(ctx context.Context, files []File) error
}

package publish

import (
	"errors"
	"fmt"
)

// ErrNothingToPublish means the queue was empty; no remote call was made.
var ErrNothingToPublish = errors.New("nothing to publish")

// Stage names the publish step that failed. Every stage before update_ref
// only creates unreferenced objects, so a failure there leaves the branch
// exactly as it was.
type Stage string

const (
	StageResolveHead  Stage = "resolve_head"
	StageCreateBlob   Stage = "create_blob"
	StageCreateTree   Stage = "create_tree"
	StageCreateCommit Stage = "create_commit"
	StageUpdateRef    Stage = "update_ref"
)

// StageError wraps a remote failure with the stage it happened in and,
// for blob uploads, the file that triggered it.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("publish failed at %s (%s): %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("publish failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

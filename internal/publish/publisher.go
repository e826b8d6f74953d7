// Package publish turns a flattened set of staged operations into exactly
// one commit on the content repository. All object creation happens against
// unreferenced blobs and trees; the branch only moves in the final ref
// update, so a failure anywhere leaves readers untouched.
package publish

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vellumhq/vellum/internal/draft"
	"github.com/vellumhq/vellum/internal/gitremote"
)

var publishLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	publishLogger = l
}

// DefaultBlobBatchSize bounds how many blob uploads run at once.
const DefaultBlobBatchSize = 8

// Result describes a successful publish.
type Result struct {
	Branch string `json:"branch"`
	Commit string `json:"commit"`
	Tree   string `json:"tree"`
	Parent string `json:"parent"`
	Files  int    `json:"files"`
}

type Publisher struct {
	client    gitremote.Client
	branch    string
	batchSize int
}

func NewPublisher(client gitremote.Client, branch string, batchSize int) *Publisher {
	if batchSize <= 0 {
		batchSize = DefaultBlobBatchSize
	}
	return &Publisher{
		client:    client,
		branch:    branch,
		batchSize: batchSize,
	}
}

// Publish lands ops on the branch as one commit. Ops must already be
// flattened to one operation per path; draft.Queue.Flatten does that.
func (p *Publisher) Publish(ctx context.Context, message string, ops []draft.Operation) (*Result, error) {
	if len(ops) == 0 {
		return nil, ErrNothingToPublish
	}

	head, err := p.client.ResolveHead(ctx, p.branch)
	if err != nil {
		return nil, &StageError{Stage: StageResolveHead, Err: err}
	}

	entries, err := p.buildEntries(ctx, ops)
	if err != nil {
		return nil, err
	}

	treeSHA, err := p.client.CreateTree(ctx, head.Tree, entries)
	if err != nil {
		return nil, &StageError{Stage: StageCreateTree, Err: err}
	}

	commitSHA, err := p.client.CreateCommit(ctx, gitremote.NewCommit{
		Message: message,
		Tree:    treeSHA,
		Parents: []string{head.Commit},
	})
	if err != nil {
		return nil, &StageError{Stage: StageCreateCommit, Err: err}
	}

	// The only step with visible effect. Everything above this line created
	// orphaned objects the provider garbage collects on failure.
	if err := p.client.UpdateRef(ctx, p.branch, commitSHA); err != nil {
		return nil, &StageError{Stage: StageUpdateRef, Err: err}
	}

	publishLogger.Info().
		Str("branch", p.branch).
		Str("commit", commitSHA).
		Str("parent", head.Commit).
		Int("files", len(ops)).
		Msg("Published commit")

	return &Result{
		Branch: p.branch,
		Commit: commitSHA,
		Tree:   treeSHA,
		Parent: head.Commit,
		Files:  len(ops),
	}, nil
}

type blobTask struct {
	index int
	op    draft.Operation
}

// buildEntries converts operations to tree entries. Text writes go inline
// in the tree request; binary writes get a blob upload first, batched so at
// most batchSize uploads are in flight.
func (p *Publisher) buildEntries(ctx context.Context, ops []draft.Operation) ([]gitremote.TreeEntry, error) {
	entries := make([]gitremote.TreeEntry, len(ops))
	var blobs []blobTask

	for i, op := range ops {
		switch op.Kind {
		case draft.OpDelete:
			entries[i] = gitremote.TreeEntry{
				Path:    op.Path,
				Mode:    gitremote.ModeFile,
				Type:    gitremote.TypeBlob,
				Deleted: true,
			}
		case draft.OpWrite:
			if op.Encoding == draft.EncodingBase64 {
				blobs = append(blobs, blobTask{index: i, op: op})
				continue
			}
			entries[i] = gitremote.TreeEntry{
				Path:    op.Path,
				Mode:    gitremote.ModeFile,
				Type:    gitremote.TypeBlob,
				Content: string(op.Content),
			}
		default:
			return nil, &StageError{
				Stage: StageCreateBlob,
				Path:  op.Path,
				Err:   fmt.Errorf("%w: unknown kind %q", draft.ErrInvalidOperation, op.Kind),
			}
		}
	}

	for start := 0; start < len(blobs); start += p.batchSize {
		end := min(start+p.batchSize, len(blobs))
		batch := blobs[start:end]

		var wg sync.WaitGroup
		errs := make([]error, len(batch))
		for j, task := range batch {
			wg.Add(1)
			go func(j int, task blobTask) {
				defer wg.Done()

				sha, err := p.client.CreateBlob(ctx, task.op.Content, string(task.op.Encoding))
				if err != nil {
					errs[j] = &StageError{Stage: StageCreateBlob, Path: task.op.Path, Err: err}
					return
				}
				entries[task.index] = gitremote.TreeEntry{
					Path: task.op.Path,
					Mode: gitremote.ModeFile,
					Type: gitremote.TypeBlob,
					SHA:  sha,
				}
			}(j, task)
		}
		wg.Wait()

		// Abort before the next batch; nothing is referenced yet.
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}

	return entries, nil
}

// CommitMessage builds the commit message for a set of queued changes.
func CommitMessage(changes []draft.Change) string {
	switch len(changes) {
	case 0:
		return "Publish changes"
	case 1:
		return commitSubject(changes[0])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Publish %d changes\n", len(changes))
	for _, c := range changes {
		b.WriteString("\n- ")
		b.WriteString(commitSubject(c))
	}
	return b.String()
}

func commitSubject(c draft.Change) string {
	switch {
	case c.Title != "":
		return c.Title
	case c.Kind == draft.KindSettings:
		return "Update site settings"
	case len(c.Operations) == 1 && c.Operations[0].Kind == draft.OpDelete:
		return "Delete " + c.PrimaryPath
	default:
		return "Update " + c.PrimaryPath
	}
}

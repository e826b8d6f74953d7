package draft

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vellumhq/vellum/internal/model"
)

type Kind string

const (
	KindPost     Kind = "post"
	KindMedia    Kind = "media"
	KindSettings Kind = "settings"
	KindBundle   Kind = "bundle"
)

// Change is one staged edit waiting in the draft queue. A change groups the
// operations that must land together, like a post body plus its images.
type Change struct {
	ID          model.ChangeID    `json:"id"`
	Kind        Kind              `json:"kind"`
	Title       string            `json:"title"`
	PrimaryPath string            `json:"primary_path"`
	Operations  []Operation       `json:"operations"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func NewChange(kind Kind, title, primaryPath string, ops []Operation) (Change, error) {
	c := Change{
		ID:          model.ChangeID(uuid.NewString()),
		Kind:        kind,
		Title:       title,
		PrimaryPath: primaryPath,
		Operations:  ops,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return Change{}, err
	}
	return c, nil
}

func (c Change) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: change has no id", ErrInvalidOperation)
	}
	if len(c.Operations) == 0 {
		return fmt.Errorf("%w: change %s has no operations", ErrInvalidOperation, c.ID)
	}

	primary, err := normalizePath(c.PrimaryPath)
	if err != nil {
		return err
	}

	found := false
	for _, op := range c.Operations {
		if err := op.Validate(); err != nil {
			return err
		}
		if op.Path == primary {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: primary path %q is not touched by any operation", ErrInvalidOperation, c.PrimaryPath)
	}
	return nil
}

// Summary is the queue line shown to the editor UI.
func (c Change) Summary() string {
	if c.Title != "" {
		return c.Title
	}
	return c.PrimaryPath
}

package draft

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidOperation is wrapped by every operation validation failure.
var ErrInvalidOperation = errors.New("invalid operation")

type OpKind string

const (
	OpWrite  OpKind = "write"
	OpDelete OpKind = "delete"
)

type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingBase64 Encoding = "base64"
)

// Operation is a single file write or deletion inside a staged change.
// Operations are built through NewWrite and NewDelete so a queued change
// can never carry an unpublishable path.
type Operation struct {
	Kind     OpKind   `json:"kind"`
	Path     string   `json:"path"`
	Content  []byte   `json:"content,omitempty"`
	Encoding Encoding `json:"encoding,omitempty"`
}

func NewWrite(filePath string, content []byte, encoding Encoding) (Operation, error) {
	cleaned, err := normalizePath(filePath)
	if err != nil {
		return Operation{}, err
	}
	if encoding != EncodingUTF8 && encoding != EncodingBase64 {
		return Operation{}, fmt.Errorf("%w: unknown encoding %q", ErrInvalidOperation, encoding)
	}

	return Operation{
		Kind:     OpWrite,
		Path:     cleaned,
		Content:  content,
		Encoding: encoding,
	}, nil
}

func NewDelete(filePath string) (Operation, error) {
	cleaned, err := normalizePath(filePath)
	if err != nil {
		return Operation{}, err
	}

	return Operation{
		Kind: OpDelete,
		Path: cleaned,
	}, nil
}

// Validate re-checks an operation that may have been rebuilt from storage
// or an API request body rather than a constructor.
func (op Operation) Validate() error {
	if _, err := normalizePath(op.Path); err != nil {
		return err
	}

	switch op.Kind {
	case OpWrite:
		if op.Encoding != EncodingUTF8 && op.Encoding != EncodingBase64 {
			return fmt.Errorf("%w: unknown encoding %q", ErrInvalidOperation, op.Encoding)
		}
	case OpDelete:
		if len(op.Content) > 0 {
			return fmt.Errorf("%w: deletion of %q carries content", ErrInvalidOperation, op.Path)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOperation, op.Kind)
	}
	return nil
}

// normalizePath validates that a path stays inside the repository and
// returns its cleaned form.
func normalizePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidOperation)
	}
	if strings.Contains(p, "\\") {
		return "", fmt.Errorf("%w: backslash in path %q", ErrInvalidOperation, p)
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: path %q must be relative", ErrInvalidOperation, p)
	}

	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: path %q escapes the repository", ErrInvalidOperation, p)
	}
	return cleaned, nil
}

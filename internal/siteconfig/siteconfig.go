// Package siteconfig rewrites the repository's site settings document field
// by field. The editor only knows a handful of fields; everything else in
// the file must survive a patch byte-for-byte, so edits go through targeted
// path updates instead of a decode/encode round trip.
package siteconfig

import (
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Patch applies updates to the raw settings JSON and returns the new
// document. Field names use dotted paths ("social.twitter" addresses a
// nested object). Empty input starts a fresh document.
func Patch(raw []byte, updates map[string]any) ([]byte, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("settings document is not valid JSON")
	}

	// Apply in sorted order so the same updates always produce the same bytes
	fields := make([]string, 0, len(updates))
	for field := range updates {
		if field == "" {
			return nil, fmt.Errorf("settings field name cannot be empty")
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	out := raw
	var err error
	for _, field := range fields {
		out, err = sjson.SetBytes(out, field, updates[field])
		if err != nil {
			return nil, fmt.Errorf("error setting %s: %w", field, err)
		}
	}
	return out, nil
}

// Delete removes fields from the raw settings JSON. Missing fields are not
// an error.
func Delete(raw []byte, fields ...string) ([]byte, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("settings document is not valid JSON")
	}

	out := raw
	var err error
	for _, field := range fields {
		out, err = sjson.DeleteBytes(out, field)
		if err != nil {
			return nil, fmt.Errorf("error deleting %s: %w", field, err)
		}
	}
	return out, nil
}

// Field reads one dotted path from the document.
func Field(raw []byte, path string) (string, bool) {
	result := gjson.GetBytes(raw, path)
	if !result.Exists() {
		return "", false
	}
	return result.String(), true
}

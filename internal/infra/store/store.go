// Package store persists the shared mutable state of the orchestrator as
// JSON documents on disk: the app registry, the global env vars and the
// tenant overrides. Every read-modify-write cycle acquires the document's
// named lock first, so at most one mutation is in flight per document.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Lock names, one per persisted document. Locks are scoped to the logical
// document, not to individual records: two override writes for different
// apps still serialize. That is an intentional simplicity trade-off.
const (
	LockApps      = "apps"
	LockEnvVars   = "env-vars"
	LockOverrides = "tenant-overrides"
)

// loadDocument reads the JSON document at path into out. A missing file is
// not an error; out is left untouched.
func loadDocument(path string, out any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// saveDocument writes v as indented JSON to path via a temp file and
// rename, so readers never observe a partially written document.
func saveDocument(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// loadKeyedDocument reads a document expected to be a JSON object keyed by
// app id. Legacy flat-array layouts of the same document are treated as
// empty, not as a parse error.
func loadKeyedDocument[T any](path string) (map[string][]T, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string][]T), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc := make(map[string][]T)
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}

	// Legacy flat array: readable, but carries no per-app keying we can
	// trust. Start over with an empty document.
	var legacy []json.RawMessage
	if err := json.Unmarshal(data, &legacy); err == nil {
		return make(map[string][]T), nil
	}

	return nil, fmt.Errorf("failed to parse %s: unrecognized document layout", path)
}

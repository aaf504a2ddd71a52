// Package state persists the small record that survives restarts, most
// importantly whether the HUD was visible. The file is a flat JSON object so
// keys written by other tools are kept intact.
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Visible is the key holding HUD visibility.
const Visible = "IS_VISIBLE"

// Record is a flat key/value state record.
type Record map[string]any

// Load reads the record at path. A missing file is created from defaults
// first. Keys in defaults absent from the file are filled in.
func Load(path string, defaults Record) (Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := Write(path, defaults); err != nil {
			return nil, err
		}
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	rec := Record{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parse state %s: %w", path, err)
		}
	}
	for k, v := range defaults {
		if _, ok := rec[k]; !ok {
			rec[k] = v
		}
	}
	return rec, nil
}

// Write stores values at path. When keys are given, only those keys are
// taken from values and every other key already in the file is preserved.
// With no keys the whole of values is merged over the file. The file is
// replaced atomically.
func Write(path string, values Record, keys ...string) error {
	current := Record{}
	if data, err := os.ReadFile(path); err == nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("parse state %s: %w", path, err)
		}
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read state: %w", err)
	}

	if len(keys) == 0 {
		for k, v := range values {
			current[k] = v
		}
	} else {
		for _, k := range keys {
			v, ok := values[k]
			if !ok {
				return fmt.Errorf("state key %q has no value", k)
			}
			current[k] = v
		}
	}

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return atomicWrite(path, append(data, '\n'))
}

func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// Bool returns the boolean under key, or def when missing or not a bool.
func (r Record) Bool(key string, def bool) bool {
	if b, ok := r[key].(bool); ok {
		return b
	}
	return def
}

// SetBool stores a boolean under key.
func (r Record) SetBool(key string, v bool) {
	r[key] = v
}

// Keys returns the record's keys sorted.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SaveVisibility updates only the visibility key at path.
func SaveVisibility(path string, visible bool) error {
	return Write(path, Record{Visible: visible}, Visible)
}

package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

// --- Load ---

func TestLoadMissingWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "state.json")
	rec, err := Load(path, Record{Visible: true, "POWER_SWITCH_BEHAVIOR": "SAVED"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !rec.Bool(Visible, false) {
		t.Error("default visibility lost")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults not written: %v", err)
	}
}

func TestLoadFillsMissingDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	os.WriteFile(path, []byte(`{"IS_VISIBLE": false}`), 0o644)

	rec, err := Load(path, Record{Visible: true, "EXTRA": "x"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Bool(Visible, true) {
		t.Error("file value overridden by default")
	}
	if rec["EXTRA"] != "x" {
		t.Errorf("EXTRA = %v", rec["EXTRA"])
	}
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	os.WriteFile(path, []byte(`{not json`), 0o644)
	if _, err := Load(path, nil); err == nil {
		t.Error("expected parse error")
	}
}

// --- Write ---

func TestWriteSubsetPreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	os.WriteFile(path, []byte(`{"IS_VISIBLE": true, "LOW_BATTERY_THRESHOLD": 12, "CUSTOM": {"a": 1}}`), 0o644)

	err := Write(path, Record{Visible: false, "LOW_BATTERY_THRESHOLD": 99}, Visible)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := readJSON(t, path)
	want := map[string]any{
		"IS_VISIBLE":            false,
		"LOW_BATTERY_THRESHOLD": float64(12),
		"CUSTOM":                map[string]any{"a": float64(1)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("file = %v, want %v", got, want)
	}
}

func TestWriteAllMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	os.WriteFile(path, []byte(`{"KEEP": "yes"}`), 0o644)

	if err := Write(path, Record{Visible: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := readJSON(t, path)
	if got["KEEP"] != "yes" || got[Visible] != true {
		t.Errorf("file = %v", got)
	}
}

func TestWriteMissingKeyValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := Write(path, Record{}, Visible); err == nil {
		t.Error("expected error for key without value")
	}
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := SaveVisibility(path, true); err != nil {
		t.Fatalf("SaveVisibility: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}

// --- Record ---

func TestRecordBool(t *testing.T) {
	r := Record{"s": "true"}
	if r.Bool("s", false) {
		t.Error("string coerced to bool")
	}
	if !r.Bool("missing", true) {
		t.Error("default ignored")
	}
	r.SetBool("b", true)
	if !r.Bool("b", false) {
		t.Error("SetBool not stored")
	}
	if got := r.Keys(); !reflect.DeepEqual(got, []string{"b", "s"}) {
		t.Errorf("Keys = %v", got)
	}
}

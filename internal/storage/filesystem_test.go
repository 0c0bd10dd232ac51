package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteResultExtractsScriptText(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	path, err := store.WriteResult(context.Background(), "job-7", json.RawMessage(`{"script":"INT. CAFE - DAY"}`))
	if err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
	if filepath.Ext(path) != ".md" {
		t.Fatalf("path = %q, want a .md artifact", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "INT. CAFE - DAY" {
		t.Fatalf("artifact = %q", data)
	}
}

func TestWriteResultFallsBackToRawJSON(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	raw := json.RawMessage(`{"scenes":[{"heading":"INT. CAFE"}]}`)
	path, err := store.WriteResult(context.Background(), "job-8", raw)
	if err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
	if filepath.Ext(path) != ".json" {
		t.Fatalf("path = %q, want a .json artifact", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != string(raw) {
		t.Fatalf("artifact = %s, want %s", data, raw)
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{key: "scripts/job.md", wantErr: false},
		{key: "./scripts/job.md", wantErr: false},
		{key: "", wantErr: true},
		{key: "../escape.md", wantErr: true},
		{key: "a/../../escape.md", wantErr: true},
	}
	for _, tc := range tests {
		_, err := sanitizeKey(tc.key)
		if (err != nil) != tc.wantErr {
			t.Fatalf("sanitizeKey(%q) error = %v, wantErr %v", tc.key, err, tc.wantErr)
		}
	}
}

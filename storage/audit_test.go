package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// auditEntry is a test-friendly version of AuditEntry that uses json.RawMessage for Data.
type auditEntry struct {
	Time      string          `json:"time"`
	SessionID string          `json:"session_id,omitempty"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
}

func readAuditLog(t *testing.T, path string) []auditEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("Failed to open audit log: %v", err)
	}
	defer f.Close()

	var entries []auditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var entry auditEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to parse audit log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}
	return entries
}

func TestAuditLog(t *testing.T) {
	dir := t.TempDir()
	s, err := New(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := SetSessionID(context.Background(), "test-session-123")
	s.Audit(ctx, "TRIGGER_DISABLE", AuditTriggerDisable{Caller: Ref("wiz"), Object: "lamp"})
	s.Audit(context.Background(), "TRIGGER_GLOBAL", AuditTriggerGlobal{Caller: SystemRef(), Enabled: false})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	entries := readAuditLog(t, filepath.Join(dir, "audit.log"))
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Event != "TRIGGER_DISABLE" || entries[0].SessionID != "test-session-123" {
		t.Errorf("first entry = %+v", entries[0])
	}
	var disable AuditTriggerDisable
	if err := json.Unmarshal(entries[0].Data, &disable); err != nil {
		t.Fatal(err)
	}
	if disable.Caller.Name != "wiz" || disable.Object != "lamp" {
		t.Errorf("disable data = %+v", disable)
	}
	if entries[1].SessionID != "" {
		t.Errorf("SessionID = %q, want empty", entries[1].SessionID)
	}
	var global AuditTriggerGlobal
	if err := json.Unmarshal(entries[1].Data, &global); err != nil {
		t.Fatal(err)
	}
	if global.Caller.Name != "system" || global.Enabled {
		t.Errorf("global data = %+v", global)
	}
}

package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HendryAvila/memflow/internal/memgraph"
	"github.com/HendryAvila/memflow/internal/recovery"
)

var testTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, dir, project string) *Store {
	t.Helper()
	s, err := New(Config{DataDir: dir, Project: project, MaxSearchResults: 20}, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func node(id memgraph.NodeID, kind memgraph.Kind, content string, at time.Time) memgraph.Node {
	return memgraph.Node{ID: id, Kind: kind, Content: content, UpdatedAt: at}
}

// ─── New ─────────────────────────────────────────────────────────────────────

func TestNew_CreatesDBFile(t *testing.T) {
	dir := t.TempDir()
	newTestStore(t, dir, "/repo")
	if _, err := os.Stat(filepath.Join(dir, "index.db")); err != nil {
		t.Errorf("index.db not created: %v", err)
	}
}

func TestNew_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Config{DataDir: dir, Project: "/repo"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.IndexNode(node("architecture", memgraph.KindArchitecture, "hexagonal layers", testTime)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2 := newTestStore(t, dir, "/repo")
	if n, _ := s2.Count(); n != 1 {
		t.Errorf("Count after reopen = %d, want 1", n)
	}
}

// ─── Search ──────────────────────────────────────────────────────────────────

func TestSearch_FindsWrittenNode(t *testing.T) {
	s := newTestStore(t, t.TempDir(), "/repo")
	s.OnNodeWritten(node("architecture", memgraph.KindArchitecture, "We use an LRU cache in front of Postgres.", testTime))
	s.OnNodeWritten(node("technical", memgraph.KindTechnical, "Go 1.25 with modernc sqlite.", testTime))

	results, err := s.Search("lru cache", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "architecture" {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Kind != memgraph.KindArchitecture || !results[0].UpdatedAt.Equal(testTime) {
		t.Errorf("result = %+v", results[0])
	}
}

func TestSearch_UpdateReplacesContent(t *testing.T) {
	s := newTestStore(t, t.TempDir(), "/repo")
	_ = s.IndexNode(node("tasks-plan", memgraph.KindTasksPlan, "migrate redis", testTime))
	_ = s.IndexNode(node("tasks-plan", memgraph.KindTasksPlan, "migrate memcached", testTime.Add(time.Hour)))

	if r, _ := s.Search("redis", 10); len(r) != 0 {
		t.Errorf("old content still indexed: %+v", r)
	}
	if r, _ := s.Search("memcached", 10); len(r) != 1 {
		t.Errorf("new content not indexed: %+v", r)
	}
	if n, _ := s.Count(); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestSearch_EmptyQueryReturnsRecent(t *testing.T) {
	s := newTestStore(t, t.TempDir(), "/repo")
	_ = s.IndexNode(node("architecture", memgraph.KindArchitecture, "a", testTime))
	_ = s.IndexNode(node("technical", memgraph.KindTechnical, "b", testTime.Add(time.Hour)))

	results, err := s.Search("   ", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].ID != "technical" {
		t.Errorf("results = %+v", results)
	}
}

func TestSearch_QuotesAreSafe(t *testing.T) {
	s := newTestStore(t, t.TempDir(), "/repo")
	_ = s.IndexNode(node("architecture", memgraph.KindArchitecture, "cache", testTime))
	if _, err := s.Search(`"cache" OR "`, 10); err != nil {
		t.Errorf("Search with quotes: %v", err)
	}
}

func TestSearch_ProjectIsolation(t *testing.T) {
	dir := t.TempDir()
	a := newTestStore(t, dir, "/repo-a")
	b := newTestStore(t, dir, "/repo-b")
	_ = a.IndexNode(node("architecture", memgraph.KindArchitecture, "kafka pipeline", testTime))

	if r, _ := b.Search("kafka", 10); len(r) != 0 {
		t.Errorf("project b sees project a: %+v", r)
	}
}

func TestSearch_LimitCapped(t *testing.T) {
	s, err := New(Config{DataDir: t.TempDir(), Project: "/repo", MaxSearchResults: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	for _, k := range memgraph.CoreKinds {
		_ = s.IndexNode(node(memgraph.CoreID(k), k, "shared word", testTime))
	}
	r, _ := s.Search("shared", 50)
	if len(r) != 2 {
		t.Errorf("len = %d, want 2", len(r))
	}
}

// ─── Sync ────────────────────────────────────────────────────────────────────

func TestSync_ReplacesProjectNodes(t *testing.T) {
	s := newTestStore(t, t.TempDir(), "/repo")
	_ = s.IndexNode(node("old-rfc", memgraph.KindRFC, "gone", testTime))

	err := s.Sync([]memgraph.Node{
		node("architecture", memgraph.KindArchitecture, "kept", testTime),
		{ID: "technical", Kind: memgraph.KindTechnical}, // unauthored placeholder
	})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if n, _ := s.Count(); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
	if r, _ := s.Search("gone", 10); len(r) != 0 {
		t.Errorf("stale entry survived sync: %+v", r)
	}
}

// ─── Debug attempts ──────────────────────────────────────────────────────────

func TestAttempts_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir, "/repo")

	first := recovery.Attempt{
		Symptoms: recovery.NewSymptomSet("stale read", "timeout"),
		Fix:      "retry",
		Reason:   "still stale",
		At:       testTime,
	}
	second := recovery.Attempt{
		Symptoms:  recovery.NewSymptomSet("stale read", "timeout"),
		Diagnosis: "cache not invalidated",
		Causes:    []recovery.Cause{{Kind: recovery.CauseDesignFlaw, Description: "wrong layer"}},
		Fix:       "flush on commit",
		Passed:    true,
		At:        testTime.Add(time.Minute),
	}
	for _, a := range []recovery.Attempt{first, second} {
		if err := s.RecordAttempt(a); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	got, err := newTestStore(t, dir, "/repo").Attempts()
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].Symptoms.Equal(first.Symptoms) || got[0].Passed || !got[0].At.Equal(testTime) {
		t.Errorf("first = %+v", got[0])
	}
	if !got[1].Passed || got[1].Diagnosis != "cache not invalidated" || len(got[1].Causes) != 1 {
		t.Errorf("second = %+v", got[1])
	}

	h := recovery.NewHistory(s, got...)
	if !h.HasFailure(recovery.NewSymptomSet("timeout", "stale read")) {
		t.Error("reloaded history should report the earlier failure")
	}
}

func TestAttempts_HistoryRecorder(t *testing.T) {
	s := newTestStore(t, t.TempDir(), "/repo")
	h := recovery.NewHistory(s)
	if err := h.Append(recovery.Attempt{Symptoms: recovery.NewSymptomSet("panic"), Fix: "nil check"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, _ := s.Attempts()
	if len(got) != 1 || got[0].Fix != "nil check" {
		t.Errorf("attempts = %+v", got)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func TestSanitizeFTS(t *testing.T) {
	tests := map[string]string{
		"fix auth bug": `"fix" "auth" "bug"`,
		`"quoted"`:     `"quoted"`,
		`" "`:          "",
		"":             "",
	}
	for in, want := range tests {
		if got := sanitizeFTS(in); got != want {
			t.Errorf("sanitizeFTS(%q) = %q, want %q", in, got, want)
		}
	}
}

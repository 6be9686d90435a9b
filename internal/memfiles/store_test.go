package memfiles

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/HendryAvila/memflow/internal/memgraph"
)

var testTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// --- Layout ---

func TestRelPath(t *testing.T) {
	l := DefaultLayout()
	tests := []struct {
		id   memgraph.NodeID
		kind memgraph.Kind
		want string
	}{
		{"architecture", memgraph.KindArchitecture, "docs/architecture.md"},
		{"tasks-plan", memgraph.KindTasksPlan, "tasks/tasks_plan.md"},
		{"lessons-learned", memgraph.KindLessonsLearned, "rules/lessons-learned.md"},
		{"raft-paper", memgraph.KindLiterature, "docs/literature/raft-paper.md"},
		{"cache-rfc", memgraph.KindRFC, "tasks/rfc/cache-rfc.md"},
		{"onboarding", memgraph.Kind("runbook"), "docs/context/runbook/onboarding.md"},
	}
	for _, tt := range tests {
		got, err := l.RelPath(tt.id, tt.kind)
		if err != nil {
			t.Errorf("RelPath(%s): %v", tt.id, err)
			continue
		}
		if got != tt.want {
			t.Errorf("RelPath(%s) = %s, want %s", tt.id, got, tt.want)
		}
	}
}

func TestRelPath_RejectsTraversal(t *testing.T) {
	l := DefaultLayout()
	for _, id := range []memgraph.NodeID{"../escape", "a/b", "..", ""} {
		if _, err := l.RelPath(id, memgraph.KindRFC); err == nil {
			t.Errorf("RelPath(%q) should fail", id)
		}
	}
}

func TestWithOverrides(t *testing.T) {
	l, err := DefaultLayout().WithOverrides(map[string]string{
		"architecture": "design/ARCH.md",
		"rfc":          "rfcs",
	})
	if err != nil {
		t.Fatalf("WithOverrides: %v", err)
	}
	if got, _ := l.RelPath("architecture", memgraph.KindArchitecture); got != "design/ARCH.md" {
		t.Errorf("core override = %s", got)
	}
	if got, _ := l.RelPath("x", memgraph.KindRFC); got != "rfcs/x.md" {
		t.Errorf("context override = %s", got)
	}
	if DefaultLayout().Core[memgraph.KindArchitecture] != "docs/architecture.md" {
		t.Error("overrides must not mutate the default layout")
	}

	if _, err := DefaultLayout().WithOverrides(map[string]string{"technical": "/abs/path.md"}); err == nil {
		t.Error("absolute override should fail")
	}
}

// --- Front matter ---

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantID   string
		wantBody string
		wantErr  bool
	}{
		{"no front matter", "# Title\nbody\n", "", "# Title\nbody", false},
		{"front matter", "---\nid: a\nkind: rfc\n---\nbody\n", "a", "body", false},
		{"crlf", "---\r\nid: a\r\n---\r\nbody\r\n", "a", "body", false},
		{"empty header", "---\n---\nbody", "", "body", false},
		{"header only", "---\nid: a\n---", "a", "", false},
		{"unclosed", "---\nid: a\nbody", "", "", true},
		{"bad yaml", "---\nid: [\n---\n", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body, err := parse([]byte(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if fm.ID != tt.wantID || body != tt.wantBody {
				t.Errorf("parse = %q, %q; want %q, %q", fm.ID, body, tt.wantID, tt.wantBody)
			}
		})
	}
}

// --- Save / Load ---

func TestSaveLoad_RoundTrip(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root, DefaultLayout())

	arch := memgraph.Node{ID: "architecture", Kind: memgraph.KindArchitecture, Content: "# Architecture\n\nlayers", UpdatedAt: testTime}
	rfc := memgraph.Node{ID: "cache-rfc", Kind: memgraph.KindRFC, Content: "use LRU", UpdatedAt: testTime,
		Upstream: []memgraph.NodeID{"tasks-plan", "architecture"}}
	for _, n := range []memgraph.Node{arch, rfc} {
		if err := fs.Save(n); err != nil {
			t.Fatalf("Save %s: %v", n.ID, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(root, "docs", "architecture.md"))
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	if !strings.HasPrefix(string(data), "---\n") || !strings.Contains(string(data), "kind: architecture") {
		t.Errorf("front matter missing:\n%s", data)
	}
	if strings.Contains(string(data), "upstream") {
		t.Error("core files do not record upstream ids")
	}

	nodes, err := fs.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("Load returned %d nodes, want 2", len(nodes))
	}
	got := map[memgraph.NodeID]memgraph.Node{}
	for _, n := range nodes {
		got[n.ID] = n
	}
	if got["architecture"].Content != arch.Content || !got["architecture"].UpdatedAt.Equal(testTime) {
		t.Errorf("architecture = %+v", got["architecture"])
	}
	if r := got["cache-rfc"]; r.Content != "use LRU" || len(r.Upstream) != 2 || r.Kind != memgraph.KindRFC {
		t.Errorf("cache-rfc = %+v", r)
	}
}

func TestLoad_HandWrittenFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/technical.md", "# Technical\nGo 1.25\n")
	writeFile(t, root, "docs/literature/raft.md", "consensus notes\n")

	nodes, err := NewFileStore(root, DefaultLayout()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("Load returned %d nodes, want 2", len(nodes))
	}
	tech := nodes[0]
	if tech.ID != "technical" || tech.Content != "# Technical\nGo 1.25" {
		t.Errorf("technical = %+v", tech)
	}
	if tech.UpdatedAt.IsZero() {
		t.Error("hand-written files take their mtime as UpdatedAt")
	}
	lit := nodes[1]
	if len(lit.Upstream) != 1 || lit.Upstream[0] != "technical" {
		t.Errorf("literature default parent = %v", lit.Upstream)
	}
}

func TestLoad_CustomContextKinds(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/context/runbook/deploy.md", "---\nupstream: [architecture]\n---\nsteps")
	writeFile(t, root, "docs/context/runbook/orphan.md", "no parent")
	writeFile(t, root, "docs/context/runbook/notes.txt", "ignored")

	nodes, err := NewFileStore(root, DefaultLayout()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != "deploy" || nodes[0].Kind != "runbook" {
		t.Errorf("nodes = %+v", nodes)
	}
}

func TestLoad_EmptyRoot(t *testing.T) {
	nodes, err := NewFileStore(t.TempDir(), DefaultLayout()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("expected no nodes, got %d", len(nodes))
	}
}

func TestLoad_BadCoreFrontMatter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/architecture.md", "---\nid: [\n---\n")
	if _, err := NewFileStore(root, DefaultLayout()).Load(); err == nil {
		t.Error("broken core file should fail the load")
	}
}

func TestLoad_IntoGraph(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root, DefaultLayout())
	for _, k := range memgraph.CoreKinds {
		if err := fs.Save(memgraph.Node{ID: memgraph.CoreID(k), Kind: k, Content: string(k), UpdatedAt: testTime}); err != nil {
			t.Fatal(err)
		}
	}
	if err := fs.Save(memgraph.Node{ID: "cache-rfc", Kind: memgraph.KindRFC, Content: "x", UpdatedAt: testTime,
		Upstream: []memgraph.NodeID{"tasks-plan"}}); err != nil {
		t.Fatal(err)
	}

	nodes, err := fs.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	g := memgraph.New()
	if err := g.Load(nodes); err != nil {
		t.Fatalf("graph Load: %v", err)
	}
	if !g.Complete() || g.Len() != 8 {
		t.Errorf("graph complete=%v len=%d", g.Complete(), g.Len())
	}
}

func TestMissing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/product_requirement_docs.md", "prd")
	missing, err := NewFileStore(root, DefaultLayout()).Missing()
	if err != nil {
		t.Fatalf("Missing: %v", err)
	}
	if len(missing) != 6 || missing[0] != "architecture" {
		t.Errorf("Missing = %v", missing)
	}
}

func TestLoad_BadContextFileIsLoggedAndSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/literature/broken.md", "---\nupstream: [\n---\nbody\n")
	writeFile(t, root, "docs/literature/good.md", "fine\n")

	var buf bytes.Buffer
	fs := NewFileStore(root, DefaultLayout())
	fs.SetLogger(log.New(&buf))

	nodes, err := fs.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != "good" {
		t.Errorf("nodes = %+v, want only good", nodes)
	}
	out := buf.String()
	if !strings.Contains(out, "skipping context file") || !strings.Contains(out, "broken") {
		t.Errorf("skip not logged: %q", out)
	}
}

func TestCheck(t *testing.T) {
	fs := NewFileStore(t.TempDir(), DefaultLayout())
	if err := fs.Check("raft-paper", memgraph.KindLiterature); err != nil {
		t.Errorf("valid id rejected: %v", err)
	}
	if err := fs.Check("../../escape", memgraph.KindLiterature); err == nil {
		t.Error("traversal id accepted")
	}
}

package memfiles

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/HendryAvila/memflow/internal/memgraph"
)

// FileStore reads and writes memory files under a project root.
type FileStore struct {
	root   string
	layout Layout
	logger *log.Logger
}

// NewFileStore creates a filesystem-backed memory store.
func NewFileStore(root string, layout Layout) *FileStore {
	return &FileStore{root: root, layout: layout, logger: log.New(io.Discard)}
}

// SetLogger sets where skipped files are reported.
func (fs *FileStore) SetLogger(l *log.Logger) {
	if l != nil {
		fs.logger = l
	}
}

// Root returns the project root the store writes under.
func (fs *FileStore) Root() string { return fs.root }

// Path returns the absolute path for a node.
func (fs *FileStore) Path(id memgraph.NodeID, kind memgraph.Kind) (string, error) {
	rel, err := fs.layout.RelPath(id, kind)
	if err != nil {
		return "", err
	}
	return filepath.Join(fs.root, filepath.FromSlash(rel)), nil
}

// Check reports whether a node with this id and kind has a file path.
func (fs *FileStore) Check(id memgraph.NodeID, kind memgraph.Kind) error {
	_, err := fs.layout.RelPath(id, kind)
	return err
}

// Save writes n to its file, creating parent directories as needed.
func (fs *FileStore) Save(n memgraph.Node) error {
	path, err := fs.Path(n.ID, n.Kind)
	if err != nil {
		return err
	}

	fm := frontMatter{
		ID:        string(n.ID),
		Kind:      string(n.Kind),
		UpdatedAt: n.UpdatedAt.UTC(),
	}
	if !memgraph.IsCore(n.Kind) {
		for _, u := range n.Upstream {
			fm.Upstream = append(fm.Upstream, string(u))
		}
	}
	data, err := render(fm, n.Content)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", n.ID, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", n.ID, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", n.ID, err)
	}
	return nil
}

// Load reads every memory file present on disk: core files first, then
// context files. Missing files and directories are not errors.
func (fs *FileStore) Load() ([]memgraph.Node, error) {
	var nodes []memgraph.Node

	for _, k := range memgraph.CoreKinds {
		path, err := fs.Path(memgraph.CoreID(k), k)
		if err != nil {
			return nil, err
		}
		n, ok, err := fs.readFile(path, memgraph.CoreID(k), k)
		if err != nil {
			return nil, err
		}
		if ok {
			nodes = append(nodes, n)
		}
	}

	ctx, err := fs.loadContext()
	if err != nil {
		return nil, err
	}
	return append(nodes, ctx...), nil
}

// Missing returns the core ids whose file does not exist, in canonical
// order.
func (fs *FileStore) Missing() ([]memgraph.NodeID, error) {
	var out []memgraph.NodeID
	for _, k := range memgraph.CoreKinds {
		path, err := fs.Path(memgraph.CoreID(k), k)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			out = append(out, memgraph.CoreID(k))
		} else if err != nil {
			return nil, fmt.Errorf("checking %s: %w", path, err)
		}
	}
	return out, nil
}

// loadContext scans the well-known context directories and every
// <kind>/ directory under the context root.
func (fs *FileStore) loadContext() ([]memgraph.Node, error) {
	dirs := make(map[memgraph.Kind]string, len(fs.layout.Context))
	for k, d := range fs.layout.Context {
		dirs[k] = d
	}

	rootAbs := filepath.Join(fs.root, filepath.FromSlash(fs.layout.ContextRoot))
	entries, err := os.ReadDir(rootAbs)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading context directory: %w", err)
	}
	for _, e := range entries {
		k := memgraph.Kind(e.Name())
		if !e.IsDir() || memgraph.IsCore(k) || memgraph.ValidateKind(k) != nil {
			continue
		}
		if _, ok := dirs[k]; !ok {
			dirs[k] = fs.layout.contextDir(k)
		}
	}

	kinds := make([]memgraph.Kind, 0, len(dirs))
	for k := range dirs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	var nodes []memgraph.Node
	for _, k := range kinds {
		dir := filepath.Join(fs.root, filepath.FromSlash(dirs[k]))
		files, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") {
				continue
			}
			id := memgraph.NodeID(strings.TrimSuffix(f.Name(), ".md"))
			n, ok, err := fs.readFile(filepath.Join(dir, f.Name()), id, k)
			if err != nil {
				fs.logger.Warn("skipping context file", "kind", k, "id", id, "err", err)
				continue
			}
			if ok && len(n.Upstream) > 0 {
				nodes = append(nodes, n)
			}
		}
	}
	return nodes, nil
}

// readFile parses one memory file. ok is false when the file does not
// exist. The layout decides id and kind; front matter may only add
// upstream ids and the timestamp.
func (fs *FileStore) readFile(path string, id memgraph.NodeID, kind memgraph.Kind) (memgraph.Node, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return memgraph.Node{}, false, nil
		}
		return memgraph.Node{}, false, fmt.Errorf("reading %s: %w", path, err)
	}

	fm, body, err := parse(data)
	if err != nil {
		return memgraph.Node{}, false, fmt.Errorf("%s: %w", path, err)
	}

	n := memgraph.Node{ID: id, Kind: kind, Content: body, UpdatedAt: fm.UpdatedAt.UTC()}
	if fm.UpdatedAt.IsZero() {
		info, err := os.Stat(path)
		if err != nil {
			return memgraph.Node{}, false, fmt.Errorf("stat %s: %w", path, err)
		}
		n.UpdatedAt = info.ModTime().UTC()
	}

	if !memgraph.IsCore(kind) {
		for _, u := range fm.Upstream {
			n.Upstream = append(n.Upstream, memgraph.NodeID(u))
		}
		if len(n.Upstream) == 0 {
			n.Upstream = append(n.Upstream, defaultParents[kind]...)
		}
	}
	return n, true, nil
}

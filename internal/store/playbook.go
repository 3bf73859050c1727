package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"infomap/internal/logging"
)

// PlaybookEntry is one strategy bullet: a namespaced id and free text.
type PlaybookEntry struct {
	ID      string `json:"bullet_id"`
	Content string `json:"content"`
}

// Playbook is a durable, namespaced, ordered collection of free-text
// strategy entries. Entries live as <namespace>_<seq>.txt files in a
// directory; the sequence counter is derived by scanning the directory,
// serialized by a per-store mutex so concurrent creators cannot mint
// duplicate numbers.
type Playbook struct {
	dir       string
	namespace string

	mu sync.Mutex
}

// NewPlaybook opens a playbook store over a directory. The directory is
// created if missing.
func NewPlaybook(dir, namespace string) (*Playbook, error) {
	if namespace == "" {
		return nil, &StoreError{Op: "playbook init", Err: fmt.Errorf("namespace required")}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &StoreError{Op: "playbook init", Err: err}
	}

	p := &Playbook{dir: dir, namespace: namespace}
	entries, err := p.Overview()
	if err != nil {
		return nil, err
	}
	logging.Playbook("Playbook %q opened with %d entries at %s", namespace, len(entries), dir)
	return p, nil
}

// Namespace returns the store's namespace prefix.
func (p *Playbook) Namespace() string { return p.namespace }

// entryFiles returns the namespace's entry files sorted by name, which is
// sequence order given the zero-padded suffix.
func (p *Playbook) entryFiles() ([]string, error) {
	pattern := filepath.Join(p.dir, p.namespace+"_*.txt")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, &StoreError{Op: "playbook scan", Err: err}
	}
	sort.Strings(files)
	return files, nil
}

// nextSequence scans the directory for the highest sequence number in use.
// Callers must hold p.mu.
func (p *Playbook) nextSequence() (int, error) {
	files, err := p.entryFiles()
	if err != nil {
		return 0, err
	}

	max := 0
	for _, f := range files {
		stem := strings.TrimSuffix(filepath.Base(f), ".txt")
		suffix := strings.TrimPrefix(stem, p.namespace+"_")
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// List returns the raw text of every entry, in sequence order.
func (p *Playbook) List() ([]string, error) {
	files, err := p.entryFiles()
	if err != nil {
		return nil, err
	}

	contents := make([]string, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, &StoreError{Op: "playbook list", Err: err}
		}
		contents = append(contents, string(data))
	}
	return contents, nil
}

// Overview returns (id, content) pairs for every entry, in sequence order.
func (p *Playbook) Overview() ([]PlaybookEntry, error) {
	files, err := p.entryFiles()
	if err != nil {
		return nil, err
	}

	entries := make([]PlaybookEntry, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, &StoreError{Op: "playbook overview", Err: err}
		}
		entries = append(entries, PlaybookEntry{
			ID:      strings.TrimSuffix(filepath.Base(f), ".txt"),
			Content: string(data),
		})
	}
	return entries, nil
}

// Create writes a new entry under the next unused sequence number and
// returns its id.
func (p *Playbook) Create(content string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	seq, err := p.nextSequence()
	if err != nil {
		return "", err
	}

	id := fmt.Sprintf("%s_%05d", p.namespace, seq)
	if err := p.writeEntry(id, content); err != nil {
		return "", err
	}
	logging.Playbook("Created playbook entry %s (%d bytes)", id, len(content))
	return id, nil
}

// Modify replaces an entry's content wholesale. The id must belong to this
// namespace and exist.
func (p *Playbook) Modify(id, newContent string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.validateID(id); err != nil {
		return err
	}
	if err := p.writeEntry(id, newContent); err != nil {
		return err
	}
	logging.Playbook("Modified playbook entry %s", id)
	return nil
}

// Delete removes an entry. The id must belong to this namespace and exist.
func (p *Playbook) Delete(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.validateID(id); err != nil {
		return err
	}
	if err := os.Remove(p.entryPath(id)); err != nil {
		return &StoreError{Op: "playbook delete", Err: err}
	}
	logging.Playbook("Deleted playbook entry %s", id)
	return nil
}

// validateID rejects ids outside the namespace, path escapes, and
// nonexistent entries. Tool-calling agents supply these ids, so they are
// external input, not trusted program state.
func (p *Playbook) validateID(id string) error {
	if !strings.HasPrefix(id, p.namespace+"_") {
		return &StoreError{Op: "playbook", Err: fmt.Errorf("id %q outside namespace %q", id, p.namespace)}
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return &StoreError{Op: "playbook", Err: fmt.Errorf("invalid id %q", id)}
	}
	if _, err := os.Stat(p.entryPath(id)); err != nil {
		return &StoreError{Op: "playbook", Err: fmt.Errorf("no such entry %q: %w", id, err)}
	}
	return nil
}

func (p *Playbook) entryPath(id string) string {
	return filepath.Join(p.dir, id+".txt")
}

// writeEntry writes atomically: temp file then rename, so a crash cannot
// leave a half-written entry.
func (p *Playbook) writeEntry(id, content string) error {
	tmp, err := os.CreateTemp(p.dir, id+".tmp*")
	if err != nil {
		return &StoreError{Op: "playbook write", Err: err}
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &StoreError{Op: "playbook write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &StoreError{Op: "playbook write", Err: err}
	}
	if err := os.Rename(tmp.Name(), p.entryPath(id)); err != nil {
		os.Remove(tmp.Name())
		return &StoreError{Op: "playbook write", Err: err}
	}
	return nil
}

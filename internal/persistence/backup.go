package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CaseMetaKey holds case metadata inside a case node of the backup tree.
const CaseMetaKey = "_dosya"

// Backup is the JSON file that mirrors every payload as
// case number → party label → query type → payload. Writes merge into the
// existing tree and replace the file atomically.
type Backup struct {
	path string
	mu   sync.Mutex
}

func NewBackup(path string) *Backup {
	return &Backup{path: path}
}

func (b *Backup) Path() string {
	return b.path
}

// Load reads the current tree. A missing file is an empty tree.
func (b *Backup) Load() (map[string]map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load()
}

func (b *Backup) load() (map[string]map[string]any, error) {
	tree := make(map[string]map[string]any)
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return tree, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	if len(data) == 0 {
		return tree, nil
	}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	return tree, nil
}

// Merge adds the documents to the tree. Existing entries not mentioned by
// docs are kept; mentioned ones are replaced.
func (b *Backup) Merge(docs ...Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tree, err := b.load()
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if doc.CaseNumber == "" {
			continue
		}
		node := tree[doc.CaseNumber]
		if node == nil {
			node = make(map[string]any)
			tree[doc.CaseNumber] = node
		}

		if doc.Case != nil || doc.Detail != nil || len(doc.Debtors) > 0 {
			node[CaseMetaKey] = caseMeta(doc)
		}

		for _, party := range doc.Parties {
			partyNode, _ := node[party.Label].(map[string]any)
			if partyNode == nil {
				partyNode = make(map[string]any)
				node[party.Label] = partyNode
			}
			for _, rec := range party.Results {
				partyNode[rec.Type] = rec.Payload
			}
		}
	}

	return b.write(tree)
}

func caseMeta(doc Document) map[string]any {
	meta := map[string]any{}
	if doc.Case != nil {
		meta["dosya"] = doc.Case
	}
	if doc.Detail != nil {
		meta["detay"] = doc.Detail
	}
	if len(doc.Debtors) > 0 {
		meta["borclular"] = doc.Debtors
	}
	return meta
}

func (b *Backup) write(tree map[string]map[string]any) error {
	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".backup-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("failed to replace backup: %w", err)
	}
	return nil
}

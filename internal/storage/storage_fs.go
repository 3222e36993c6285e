package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FSStorage writes the index snapshots served to the page widgets.
type FSStorage struct {
	Root string
}

func NewFSStorage(root string) *FSStorage {
	return &FSStorage{Root: root}
}

// WriteJSON encodes v to destPath, a slash-separated path below Root.
func (s *FSStorage) WriteJSON(ctx context.Context, destPath string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", destPath, err)
	}
	return s.writeFile(destPath, append(data, '\n'))
}

// TraitPath maps a trait path such as "clap::derive::CommandFactory" to its
// snapshot location.
func TraitPath(trait string) string {
	segments := strings.Split(trait, "::")
	for i, seg := range segments {
		segments[i] = strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(seg)
	}
	return path.Join("implementors", path.Join(segments...)) + ".json"
}

func (s *FSStorage) writeFile(destPath string, content []byte) error {
	clean := path.Clean("/" + filepath.ToSlash(destPath))
	fullPath := filepath.Join(s.Root, filepath.FromSlash(clean))
	return s.writeFileAbsolute(fullPath, content)
}

func (s *FSStorage) writeFileAbsolute(fullPath string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	// Remove any existing file or symlink so os.WriteFile does not
	// follow a stale symlink left by an earlier build.
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

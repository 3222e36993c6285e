package fragment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/canonical/docindex/internal/sourcetree"
)

// SourcesFile is the name of the generated source-tree fragment.
const SourcesFile = "source-files.js"

// SourceUnit is one decoded unit of a source fragment.
type SourceUnit struct {
	Name string
	Tree *sourcetree.Tree
}

// node accepts both generator layouts: ["name", [dirs...], [files...]] and
// {"name": ..., "dirs": [...], "files": [...]}.
type node struct {
	Name  string
	Dirs  []node
	Files []string
}

func (n *node) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var parts []json.RawMessage
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		if len(parts) == 0 || len(parts) > 3 {
			return fmt.Errorf("%w: node has %d fields", ErrMalformed, len(parts))
		}
		if err := json.Unmarshal(parts[0], &n.Name); err != nil {
			return fmt.Errorf("node name: %w", err)
		}
		if len(parts) > 1 {
			if err := json.Unmarshal(parts[1], &n.Dirs); err != nil {
				return fmt.Errorf("node %q dirs: %w", n.Name, err)
			}
		}
		if len(parts) > 2 {
			if err := json.Unmarshal(parts[2], &n.Files); err != nil {
				return fmt.Errorf("node %q files: %w", n.Name, err)
			}
		}
		return nil
	}

	var obj struct {
		Name  string   `json:"name"`
		Dirs  []node   `json:"dirs"`
		Files []string `json:"files"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	n.Name, n.Dirs, n.Files = obj.Name, obj.Dirs, obj.Files
	return nil
}

func (n node) tree() *sourcetree.Tree {
	t := &sourcetree.Tree{Name: n.Name, Files: n.Files}
	for _, d := range n.Dirs {
		t.Children = append(t.Children, sourcetree.Dir{Name: d.Name, Tree: d.tree()})
	}
	return t
}

var sourcesAssign = regexp.MustCompile(`^\s*sourcesIndex\[("(?:[^"\\]|\\.)*")\]\s*=\s*(.*?);?\s*$`)

// DecodeSources reads a source fragment. Units come back in file order; a
// malformed unit is skipped and reported in the error slice.
func DecodeSources(r io.Reader) ([]SourceUnit, []error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, []error{fmt.Errorf("read sources fragment: %w", err)}
	}
	text := string(raw)

	var units []SourceUnit
	var errs []error
	add := func(name string, data json.RawMessage) {
		var n node
		if err := json.Unmarshal(data, &n); err != nil {
			errs = append(errs, fmt.Errorf("%w: unit %q: %v", ErrMalformed, name, err))
			return
		}
		tree := n.tree()
		tree.Name = name
		if err := tree.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("unit %q: %w", name, err))
			return
		}
		units = append(units, SourceUnit{Name: name, Tree: tree})
	}

	if start := strings.Index(text, "JSON.parse('"); start >= 0 {
		body := text[start+len("JSON.parse('"):]
		end := strings.LastIndex(body, "')")
		if end < 0 {
			return nil, []error{fmt.Errorf("%w: unterminated JSON.parse literal", ErrMalformed)}
		}
		payload, err := unquoteJS(body[:end])
		if err != nil {
			return nil, []error{err}
		}
		if err := eachMember(json.NewDecoder(strings.NewReader(payload)), add); err != nil {
			errs = append(errs, err)
		}
		return units, errs
	}

	var assigned bool
	for _, line := range strings.Split(text, "\n") {
		m := sourcesAssign.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		assigned = true
		var name string
		if err := json.Unmarshal([]byte(m[1]), &name); err != nil {
			errs = append(errs, fmt.Errorf("%w: unit key %s: %v", ErrMalformed, m[1], err))
			continue
		}
		add(name, json.RawMessage(m[2]))
	}
	if assigned {
		return units, errs
	}

	// Plain JSON object with the same member layout.
	if err := eachMember(json.NewDecoder(strings.NewReader(text)), add); err != nil {
		errs = append(errs, err)
	}
	return units, errs
}

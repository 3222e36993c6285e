package sourcetree

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"path"
)

// ErrMalformedTree is returned by Validate for trees that cannot be indexed.
var ErrMalformedTree = errors.New("malformed source tree")

// Tree is the directory layout of one compilation unit. The root node carries
// the unit name; nested nodes carry their directory name.
type Tree struct {
	Name     string
	Children []Dir
	Files    []string
}

// Dir is one (directory-name, subtree) pair in a Tree's ordered children.
type Dir struct {
	Name string
	Tree *Tree
}

// Walk returns a depth-first sequence of (path, isFile) pairs relative to the
// tree root. A directory is yielded before its contents; within a node child
// directories come first, then files. Every call starts a fresh walk.
func (t *Tree) Walk() iter.Seq2[string, bool] {
	return func(yield func(string, bool) bool) {
		if t == nil {
			return
		}
		walk(t, "", yield)
	}
}

func walk(t *Tree, prefix string, yield func(string, bool) bool) bool {
	for _, d := range t.Children {
		p := path.Join(prefix, d.Name)
		if !yield(p, false) {
			return false
		}
		if d.Tree != nil && !walk(d.Tree, p, yield) {
			return false
		}
	}
	for _, f := range t.Files {
		if !yield(path.Join(prefix, f), true) {
			return false
		}
	}
	return true
}

// FilePaths collects every file path of the tree in walk order.
func (t *Tree) FilePaths() []string {
	var out []string
	for p, isFile := range t.Walk() {
		if isFile {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that every directory and file has a name, every directory
// has a subtree and no subtree is reachable twice.
func (t *Tree) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil tree", ErrMalformedTree)
	}
	return validate(t, "", map[*Tree]bool{})
}

func validate(t *Tree, at string, seen map[*Tree]bool) error {
	if seen[t] {
		return fmt.Errorf("%w: %q revisited", ErrMalformedTree, at)
	}
	seen[t] = true
	for _, d := range t.Children {
		if d.Name == "" {
			return fmt.Errorf("%w: unnamed directory under %q", ErrMalformedTree, at)
		}
		p := path.Join(at, d.Name)
		if d.Tree == nil {
			return fmt.Errorf("%w: directory %q has no subtree", ErrMalformedTree, p)
		}
		if err := validate(d.Tree, p, seen); err != nil {
			return err
		}
	}
	for _, f := range t.Files {
		if f == "" {
			return fmt.Errorf("%w: unnamed file under %q", ErrMalformedTree, at)
		}
	}
	return nil
}

// Clone returns a deep copy so readers can never mutate an indexed tree.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	c := &Tree{Name: t.Name}
	if t.Files != nil {
		c.Files = append([]string(nil), t.Files...)
	}
	if t.Children != nil {
		c.Children = make([]Dir, len(t.Children))
		for i, d := range t.Children {
			c.Children[i] = Dir{Name: d.Name, Tree: d.Tree.Clone()}
		}
	}
	return c
}

// MarshalJSON writes the compact layout the sidebar consumes:
// ["name", [child nodes...], ["file", ...]].
func (t Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(compact(t.Name, &t))
}

func compact(name string, t *Tree) []any {
	dirs := make([]any, 0, len(t.Children))
	files := t.Files
	if files == nil {
		files = []string{}
	}
	for _, d := range t.Children {
		if d.Tree == nil {
			continue
		}
		dirs = append(dirs, compact(d.Name, d.Tree))
	}
	return []any{name, dirs, files}
}

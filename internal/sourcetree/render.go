package sourcetree

import "github.com/disiqueira/gotree/v3"

// Render draws the tree as an indented text diagram rooted at the unit name.
func Render(t *Tree) string {
	if t == nil {
		return ""
	}
	root := gotree.New(t.Name)
	addNodes(root, t)
	return root.Print()
}

func addNodes(parent gotree.Tree, t *Tree) {
	for _, d := range t.Children {
		dir := parent.Add(d.Name + "/")
		if d.Tree != nil {
			addNodes(dir, d.Tree)
		}
	}
	for _, f := range t.Files {
		parent.Add(f)
	}
}

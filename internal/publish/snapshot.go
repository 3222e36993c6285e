package publish

import (
	"bytes"
	"encoding/json"

	"github.com/canonical/docindex/internal/sourcetree"
)

type namedTree struct {
	name string
	tree *sourcetree.Tree
}

// orderedTrees encodes as a JSON object whose members keep slice order, the
// same layout the generated sources fragment uses.
type orderedTrees []namedTree

func (o orderedTrees) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, nt := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(nt.name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(nt.tree)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

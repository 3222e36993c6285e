package fragment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/canonical/docindex/internal/implementors"
)

// ImplementorsDir is the directory holding per-trait implementor fragments.
const ImplementorsDir = "implementors"

type rawEntry struct {
	Text      *string  `json:"text"`
	Synthetic bool     `json:"synthetic"`
	Types     []string `json:"types"`
}

var implAssign = regexp.MustCompile(`^\s*implementors\[("(?:[^"\\]|\\.)*")\]\s*=\s*(\[.*\]);?\s*$`)

// DecodeImplementors reads one trait's implementor fragment. Entries keep
// their file order; malformed entries are skipped and reported.
func DecodeImplementors(r io.Reader) ([]implementors.Entry, []error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, []error{fmt.Errorf("read implementors fragment: %w", err)}
	}
	text := string(raw)

	var entries []implementors.Entry
	var errs []error
	add := func(unit string, data json.RawMessage) {
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			errs = append(errs, fmt.Errorf("%w: unit %q: %v", ErrMalformed, unit, err))
			return
		}
		for i, item := range list {
			e, err := decodeEntry(unit, item)
			if err != nil {
				errs = append(errs, fmt.Errorf("unit %q entry %d: %w", unit, i, err))
				continue
			}
			entries = append(entries, e)
		}
	}

	var assigned bool
	for _, line := range strings.Split(text, "\n") {
		m := implAssign.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		assigned = true
		var unit string
		if err := json.Unmarshal([]byte(m[1]), &unit); err != nil {
			errs = append(errs, fmt.Errorf("%w: unit key %s: %v", ErrMalformed, m[1], err))
			continue
		}
		add(unit, json.RawMessage(m[2]))
	}
	if assigned {
		return entries, errs
	}

	// Object literal form: var implementors = {"unit": [...], ...};
	start := strings.Index(text, "implementors = {")
	if start < 0 {
		if strings.HasPrefix(strings.TrimSpace(text), "{") {
			start = strings.Index(text, "{")
		} else {
			return nil, []error{fmt.Errorf("%w: no implementor data", ErrMalformed)}
		}
	} else {
		start += len("implementors = ")
	}
	if err := eachMember(json.NewDecoder(strings.NewReader(text[start:])), add); err != nil {
		errs = append(errs, err)
	}
	return entries, errs
}

func decodeEntry(unit string, data json.RawMessage) (implementors.Entry, error) {
	var re rawEntry
	if err := json.Unmarshal(data, &re); err != nil {
		return implementors.Entry{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if re.Text == nil {
		return implementors.Entry{}, fmt.Errorf("%w: missing text", ErrMalformed)
	}
	if len(re.Types) == 0 || re.Types[0] == "" {
		return implementors.Entry{}, fmt.Errorf("%w: missing types", ErrMalformed)
	}
	e := implementors.Entry{
		DisplayText: *re.Text,
		TargetUnit:  unit,
		TypePath:    re.Types[0],
		Synthetic:   re.Synthetic,
	}
	if err := e.Validate(); err != nil {
		return implementors.Entry{}, errors.Join(ErrMalformed, err)
	}
	return e, nil
}

// TraitNameFromPath derives the trait path from a fragment location such as
// "implementors/clap/derive/trait.CommandFactory.js".
func TraitNameFromPath(p string) (string, error) {
	p = path.Clean(strings.ReplaceAll(p, `\`, "/"))
	if i := strings.LastIndex(p, ImplementorsDir+"/"); i >= 0 {
		p = p[i+len(ImplementorsDir)+1:]
	}
	segments := strings.Split(p, "/")
	last := segments[len(segments)-1]
	name, ok := strings.CutPrefix(last, "trait.")
	if !ok {
		return "", fmt.Errorf("%w: %s is not a trait fragment", ErrMalformed, p)
	}
	name, ok = strings.CutSuffix(name, ".js")
	if !ok || name == "" {
		return "", fmt.Errorf("%w: %s is not a trait fragment", ErrMalformed, p)
	}
	segments[len(segments)-1] = name
	for _, s := range segments {
		if s == "" || s == "." || s == ".." {
			return "", fmt.Errorf("%w: bad segment in %s", ErrMalformed, p)
		}
	}
	return strings.Join(segments, "::"), nil
}

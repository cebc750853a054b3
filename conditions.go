package stitch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path/filepath"
	"strings"

	"github.com/dpotapov/go-stitch/dom"
	"github.com/spf13/afero"
)

// ConditionsFile is the name of the file in the output directory that maps template names to
// their conditions. Every compilation into the directory updates its own entry.
const ConditionsFile = "conditions.json"

// extractConditions stores the conditions of all when elements in the conditions file and
// removes the elements. Later conditions win over earlier ones with the same name.
func extractConditions(b *build, doc *dom.Document) (*dom.Document, error) {
	whens := doc.Nodes("when")
	if len(whens) == 0 {
		return doc, nil
	}

	conds := make(map[string]string)
	for _, n := range whens {
		c, err := conditionsOf(n)
		if err != nil {
			return nil, err
		}
		maps.Copy(conds, c)
	}

	path := filepath.Join(b.outDir, ConditionsFile)
	all, err := readConditions(b.fs, path)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(conds)
	if err != nil {
		return nil, err
	}
	all[b.name] = data

	out, err := json.Marshal(all)
	if err != nil {
		return nil, err
	}
	b.emit(path, out)
	b.conditions = conds

	for _, n := range whens {
		dom.Detach(n)
	}
	return doc, nil
}

// readConditions loads the conditions file. Entries of other templates are kept as they are.
func readConditions(fsys afero.Fs, path string) (map[string]json.RawMessage, error) {
	all := make(map[string]json.RawMessage)

	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return all, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read conditions: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return all, nil
	}

	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if all == nil {
		all = make(map[string]json.RawMessage)
	}
	return all, nil
}

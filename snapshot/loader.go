package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Load reads a document. A missing file is an empty exchange, not an error.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Empty(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read snapshot %s", path)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(err, "decode snapshot %s", path)
	}
	doc.normalize()
	return &doc, nil
}

// LoadDir loads the current document of a snapshot directory.
func LoadDir(dir string) (*Document, error) {
	return Load(filepath.Join(dir, FileName))
}

// sortOutcomeIDs orders numeric ids numerically, the rest lexically after.
func sortOutcomeIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, aerr := strconv.Atoi(ids[i])
		b, berr := strconv.Atoi(ids[j])
		switch {
		case aerr == nil && berr == nil:
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		}
		return ids[i] < ids[j]
	})
}

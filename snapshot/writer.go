package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	FileName     = "market_data.json"
	backupPrefix = "market_data-"
	backupLayout = "20060102T150405.000000000Z"
)

type Writer struct {
	Dir string
	// Keep is the number of timestamped backups retained. Zero keeps none.
	Keep int

	now func() time.Time
}

func NewWriter(dir string, keep int) *Writer {
	return &Writer{Dir: dir, Keep: keep, now: time.Now}
}

// Write replaces market_data.json atomically, then stores a backup copy
// and prunes old ones. It returns the path of the current document.
func (w *Writer) Write(doc *Document) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", errors.Wrap(err, "snapshot dir")
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encode snapshot")
	}

	path := filepath.Join(w.Dir, FileName)
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}

	if w.Keep > 0 {
		now := time.Now
		if w.now != nil {
			now = w.now
		}
		backup := filepath.Join(w.Dir, backupPrefix+now().UTC().Format(backupLayout)+".json")
		if err := writeAtomic(backup, data); err != nil {
			return "", err
		}
	}
	if err := w.prune(); err != nil {
		return "", err
	}
	return path, nil
}

// Backups lists backup files oldest first.
func (w *Writer) Backups() ([]string, error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		out = append(out, filepath.Join(w.Dir, name))
	}
	sort.Strings(out)
	return out, nil
}

func (w *Writer) prune() error {
	backups, err := w.Backups()
	if err != nil {
		return err
	}
	for len(backups) > w.Keep {
		if err := os.Remove(backups[0]); err != nil {
			return errors.Wrap(err, "prune snapshot")
		}
		backups = backups[1:]
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return errors.Wrap(err, "snapshot temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write snapshot")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync snapshot")
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "install snapshot")
}

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilePersister keeps one JSON file per key inside Dir.
type FilePersister struct {
	Dir string
}

func NewFilePersister(dir string) (*FilePersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FilePersister{Dir: dir}, nil
}

func fileName(key string) string {
	return strings.NewReplacer(":", "_", "/", "_").Replace(key) + ".json"
}

func (p *FilePersister) path(key string) string {
	return filepath.Join(p.Dir, fileName(key))
}

func (p *FilePersister) Load(ctx context.Context, key string) (Entry, bool, error) {
	data, err := os.ReadFile(p.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// a corrupt file is treated as a miss and rewritten on the next save
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (p *FilePersister) Save(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(p.Dir, ".entry-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p.path(key))
}

func (p *FilePersister) Prune(ctx context.Context, prefix, keep string) (int, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	filePrefix := strings.TrimSuffix(fileName(prefix), ".json")
	keepName := fileName(keep)
	removed := 0
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || name == keepName || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(p.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

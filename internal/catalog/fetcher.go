package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"drumkits/internal/backend"
	"drumkits/internal/kit"
)

// SourceFetcher lists the whole catalog from a backend source.
type SourceFetcher struct {
	Source backend.Source
}

func (f SourceFetcher) Fetch(ctx context.Context) ([]kit.Row, error) {
	if f.Source == nil {
		return nil, backend.ErrNotConfigured
	}
	return f.Source.List(ctx, backend.Query{})
}

// EndpointFetcher reads the catalog from a read endpoint returning
// {"data": [...]}.
type EndpointFetcher struct {
	URL    string
	Client *http.Client
}

func NewEndpointFetcher(url string, timeout time.Duration) *EndpointFetcher {
	return &EndpointFetcher{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (f *EndpointFetcher) Fetch(ctx context.Context) ([]kit.Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("failed to load kits (%d)", resp.StatusCode)
	}
	var payload struct {
		Data []kit.Row `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode kits: %w", err)
	}
	if payload.Data == nil {
		payload.Data = []kit.Row{}
	}
	return payload.Data, nil
}

// SnapshotFile reads rows from a JSON array on disk.
type SnapshotFile struct {
	Path string
}

func (f SnapshotFile) Fetch(ctx context.Context) ([]kit.Row, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var rows []kit.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if rows == nil {
		rows = []kit.Row{}
	}
	return rows, nil
}

// WriteSnapshot stores rows as an indented JSON array, replacing path
// atomically.
func WriteSnapshot(path string, rows []kit.Row) error {
	if rows == nil {
		rows = []kit.Row{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

type fallbackFetcher struct {
	primary  Fetcher
	fallback Fetcher
	log      zerolog.Logger
}

// WithSnapshotFallback reads the snapshot file when primary fails. It is only
// meant for local development.
func WithSnapshotFallback(primary Fetcher, path string, log zerolog.Logger) Fetcher {
	return &fallbackFetcher{primary: primary, fallback: SnapshotFile{Path: path}, log: log}
}

func (f *fallbackFetcher) Fetch(ctx context.Context) ([]kit.Row, error) {
	rows, err := f.primary.Fetch(ctx)
	if err == nil {
		return rows, nil
	}
	f.log.Warn().Err(err).Msg("catalog fetch failed, using snapshot")
	rows, ferr := f.fallback.Fetch(ctx)
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	return rows, nil
}

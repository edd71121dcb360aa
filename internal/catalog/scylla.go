package catalog

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gocql/gocql"

	"drumkits/internal/db"
)

// ScyllaPersister stores the catalog entry in the cache_entries table.
type ScyllaPersister struct {
	session  *gocql.Session
	keyspace string
}

func NewScyllaPersister(session *gocql.Session, keyspace string) *ScyllaPersister {
	return &ScyllaPersister{session: session, keyspace: keyspace}
}

func (p *ScyllaPersister) Load(ctx context.Context, key string) (Entry, bool, error) {
	raw, ok, err := db.GetCacheEntry(ctx, p.session, p.keyspace, key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw.Payload, &e); err != nil {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (p *ScyllaPersister) Save(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return db.PutCacheEntry(ctx, p.session, p.keyspace, key, data)
}

func (p *ScyllaPersister) Prune(ctx context.Context, prefix, keep string) (int, error) {
	keys, err := db.ListCacheKeys(ctx, p.session, p.keyspace)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, k := range keys {
		if k == keep || !strings.HasPrefix(k, prefix) {
			continue
		}
		if err := db.DeleteCacheEntry(ctx, p.session, p.keyspace, k); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

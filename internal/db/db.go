package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog"
)

type ClusterConfig struct {
	Hosts       []string
	Port        int
	Keyspace    string
	Consistency string
	Replication int
}

// CacheEntry is a raw persisted cache payload.
type CacheEntry struct {
	Key       string
	Payload   []byte
	UpdatedAt time.Time
}

func EnsureKeyspace(session *gocql.Session, keyspace string, replicationFactor int) error {
	if replicationFactor <= 0 {
		replicationFactor = 3
	}
	stmt := fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}", keyspace, replicationFactor)
	return session.Query(stmt).Exec()
}

func EnsureSchema(session *gocql.Session, keyspace string) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.cache_entries (
			cache_key text PRIMARY KEY,
			payload blob,
			updated_at timestamp
		)`, keyspace),
	}
	for _, stmt := range stmts {
		if err := session.Query(stmt).Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Connect creates the keyspace and schema and returns a session bound to the
// keyspace, retrying while the cluster comes up.
func Connect(ctx context.Context, cfg ClusterConfig, log zerolog.Logger) (*gocql.Session, error) {
	if len(cfg.Hosts) == 0 {
		return nil, errors.New("SCYLLA_HOSTS is required")
	}
	for i := 0; i < 20; i++ {
		s, err := connect(cfg, log)
		if err == nil {
			err = EnsureSchema(s, cfg.Keyspace)
			if err == nil {
				return s, nil
			}
			s.Close()
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("scylla connect retry")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	return nil, errors.New("scylla not ready after retries")
}

func connect(cfg ClusterConfig, log zerolog.Logger) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	if cfg.Port > 0 {
		cluster.Port = cfg.Port
	}
	cluster.Timeout = 5 * time.Second
	cluster.Consistency = ParseConsistency(cfg.Consistency)

	tmpSession, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	defer tmpSession.Close()

	created := false
	for i := 0; i < 10; i++ {
		if err := EnsureKeyspace(tmpSession, cfg.Keyspace, cfg.Replication); err != nil {
			log.Warn().Err(err).Int("attempt", i+1).Msg("ensure keyspace retry")
			time.Sleep(3 * time.Second)
			continue
		}
		created = true
		break
	}
	if !created {
		return nil, fmt.Errorf("unable to ensure keyspace %s", cfg.Keyspace)
	}

	cluster.Keyspace = cfg.Keyspace
	return cluster.CreateSession()
}

func ParseConsistency(c string) gocql.Consistency {
	switch strings.ToUpper(strings.TrimSpace(c)) {
	case "ONE":
		return gocql.One
	case "LOCAL_ONE":
		return gocql.LocalOne
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "ALL":
		return gocql.All
	default:
		return gocql.Quorum
	}
}

func GetCacheEntry(ctx context.Context, session *gocql.Session, keyspace, key string) (CacheEntry, bool, error) {
	e := CacheEntry{Key: key}
	err := session.Query(fmt.Sprintf(`SELECT payload,updated_at FROM %s.cache_entries WHERE cache_key=?`, keyspace), key).
		WithContext(ctx).
		Scan(&e.Payload, &e.UpdatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, err
	}
	return e, true, nil
}

func PutCacheEntry(ctx context.Context, session *gocql.Session, keyspace, key string, payload []byte) error {
	return session.Query(fmt.Sprintf(`INSERT INTO %s.cache_entries (cache_key,payload,updated_at) VALUES (?,?,?)`, keyspace),
		key, payload, time.Now()).WithContext(ctx).Exec()
}

func ListCacheKeys(ctx context.Context, session *gocql.Session, keyspace string) ([]string, error) {
	var keys []string
	iter := session.Query(fmt.Sprintf(`SELECT cache_key FROM %s.cache_entries`, keyspace)).
		WithContext(ctx).Iter()
	var k string
	for iter.Scan(&k) {
		keys = append(keys, k)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return keys, nil
}

func DeleteCacheEntry(ctx context.Context, session *gocql.Session, keyspace, key string) error {
	return session.Query(fmt.Sprintf(`DELETE FROM %s.cache_entries WHERE cache_key=?`, keyspace), key).WithContext(ctx).Exec()
}

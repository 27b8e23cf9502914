package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "aktis-analytics-jira/internal/common"
	. "aktis-analytics-jira/internal/interfaces"

	bolt "go.etcd.io/bbolt"
)

const (
	snapshotsBucket = "snapshots"
	metadataBucket  = "metadata"
	lastUpdateKey   = "last_update"
	saveCountKey    = "save_count"
)

type snapshotStore struct {
	db     *bolt.DB
	config *StorageConfig
}

// NewSnapshotStore opens (creating if needed) the bbolt file that holds one
// last-known-good snapshot per query.
func NewSnapshotStore(config *StorageConfig) (SnapshotStore, error) {
	if config.SnapshotPath == "" {
		return nil, NewStorageError("SNAPSHOT_PATH", "snapshot path is not configured")
	}

	dbDir := filepath.Dir(config.SnapshotPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, WrapError(err, ErrorTypeStorage, "SNAPSHOT_DIR", "failed to create snapshot directory")
	}

	db, err := bolt.Open(config.SnapshotPath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, WrapError(err, ErrorTypeStorage, "SNAPSHOT_OPEN", "failed to open snapshot database")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(snapshotsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(metadataBucket)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, WrapError(err, ErrorTypeStorage, "SNAPSHOT_BUCKETS", "failed to create buckets")
	}

	return &snapshotStore{
		db:     db,
		config: config,
	}, nil
}

func (s *snapshotStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSnapshot replaces the stored snapshot for the query wholesale
func (s *snapshotStore) SaveSnapshot(snapshot *Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotsBucket))
		if err := bucket.Put([]byte(snapshot.Query), data); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}

		metaBucket := tx.Bucket([]byte(metadataBucket))
		lastUpdateData, _ := snapshot.FetchedAt.MarshalBinary()
		if err := metaBucket.Put(metaKey(snapshot.Query, lastUpdateKey), lastUpdateData); err != nil {
			return err
		}

		countKey := metaKey(snapshot.Query, saveCountKey)
		count := 0
		if existing := metaBucket.Get(countKey); existing != nil {
			_ = json.Unmarshal(existing, &count)
		}
		countData, _ := json.Marshal(count + 1)
		return metaBucket.Put(countKey, countData)
	})
}

// LoadSnapshot returns nil without error when the query was never saved
func (s *snapshotStore) LoadSnapshot(query string) (*Snapshot, error) {
	var snapshot *Snapshot

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(snapshotsBucket)).Get([]byte(query))
		if data == nil {
			return nil
		}

		snapshot = &Snapshot{}
		if err := json.Unmarshal(data, snapshot); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, WrapError(err, ErrorTypeStorage, "SNAPSHOT_LOAD", "failed to load snapshot").
			WithContext("query", query)
	}

	return snapshot, nil
}

func (s *snapshotStore) DeleteSnapshot(query string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(snapshotsBucket)).Delete([]byte(query)); err != nil {
			return err
		}
		metaBucket := tx.Bucket([]byte(metadataBucket))
		if err := metaBucket.Delete(metaKey(query, lastUpdateKey)); err != nil {
			return err
		}
		return metaBucket.Delete(metaKey(query, saveCountKey))
	})
}

// ListSnapshots summarizes every stored snapshot without keeping the issues
func (s *snapshotStore) ListSnapshots() ([]SnapshotInfo, error) {
	var infos []SnapshotInfo

	err := s.db.View(func(tx *bolt.Tx) error {
		metaBucket := tx.Bucket([]byte(metadataBucket))
		c := tx.Bucket([]byte(snapshotsBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var snapshot Snapshot
			if err := json.Unmarshal(v, &snapshot); err != nil {
				continue
			}
			info := SnapshotInfo{
				Query:     string(k),
				FetchedAt: snapshot.FetchedAt,
				Issues:    len(snapshot.Issues),
			}
			if countData := metaBucket.Get(metaKey(info.Query, saveCountKey)); countData != nil {
				_ = json.Unmarshal(countData, &info.Saves)
			}
			infos = append(infos, info)
		}
		return nil
	})

	return infos, err
}

func metaKey(query, name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", query, name))
}

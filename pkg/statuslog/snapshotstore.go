package statuslog

import (
	"encoding/json"
	"fmt"

	"github.com/majordodo/corebroker/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketBrokerSnapshot = []byte("broker_snapshot")
	snapshotKey          = []byte("latest")
)

// snapshotStore persists the single most recent broker status snapshot
// in its own bbolt bucket, via a bucket-CRUD-via-JSON pattern. It is a
// different artifact from Raft's own log/stable/snapshot stores: this
// one is read by RaftLog.LoadBrokerStatusSnapshot and written by
// RaftLog.Checkpoint, and its compaction policy is driven by the
// broker's own checkpoint schedule, not by Raft's SnapshotThreshold.
type snapshotStore struct {
	db *bolt.DB
}

func newSnapshotStore(path string) (*snapshotStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("statuslog: open snapshot store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBrokerSnapshot)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("statuslog: create snapshot bucket: %w", err)
	}

	return &snapshotStore{db: db}, nil
}

func (s *snapshotStore) Save(snapshot types.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("statuslog: marshal snapshot: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBrokerSnapshot).Put(snapshotKey, data)
	})
}

// Load returns the zero Snapshot, not an error, when none has ever been
// saved — mirrors MemoryLog's LoadBrokerStatusSnapshot.
func (s *snapshotStore) Load() (types.Snapshot, error) {
	var snapshot types.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBrokerSnapshot).Get(snapshotKey)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &snapshot)
	})
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("statuslog: load snapshot: %w", err)
	}
	return snapshot, nil
}

func (s *snapshotStore) Close() error {
	return s.db.Close()
}

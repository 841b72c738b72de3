package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"github.com/boltdb/bolt"

	"github.com/quorumkv/raftkv/pkg/raft"
)

var (
	metaBucket = []byte("meta")
	logBucket  = []byte("log")

	termKey     = []byte("term")
	votedForKey = []byte("votedFor")
)

// Bolt is a durable Storage implementation: term, voted_for, and the log
// survive a process restart. A replica wired with Bolt instead of Memory
// gets durability without any change to the consensus logic in pkg/raft,
// which only ever sees the Storage interface.
type Bolt struct {
	db *bolt.DB
}

func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(metaBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(logBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) SaveState(term uint64, votedFor string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		var termBuf [8]byte
		binary.BigEndian.PutUint64(termBuf[:], term)
		if err := meta.Put(termKey, termBuf[:]); err != nil {
			return err
		}
		return meta.Put(votedForKey, []byte(votedFor))
	})
}

func (b *Bolt) AppendEntry(e raft.LogEntry) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(logBucket)
		// Keys are log indices: the next key follows the current last one,
		// so an append after TruncateLog continues right after the kept prefix.
		var index uint64
		if k, _ := bucket.Cursor().Last(); k != nil {
			index = binary.BigEndian.Uint64(k) + 1
		}
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(e); err != nil {
			return err
		}
		return bucket.Put(indexKey(index), buf.Bytes())
	})
}

// TruncateLog drops every entry at index >= keep, used by divergence
// repair (§4.3 step 6) to overwrite a follower's tail.
func (b *Bolt) TruncateLog(keep int) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(logBucket)
		c := bucket.Cursor()
		var toDelete [][]byte
		for k, _ := c.Seek(indexKey(uint64(keep))); k != nil; k, _ = c.Next() {
			toDelete = append(toDelete, append([]byte{}, k...))
		}
		for _, k := range toDelete {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) Load() (uint64, string, []raft.LogEntry, error) {
	var term uint64
	var votedFor string
	var log []raft.LogEntry
	err := b.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if v := meta.Get(termKey); v != nil {
			term = binary.BigEndian.Uint64(v)
		}
		if v := meta.Get(votedForKey); v != nil {
			votedFor = string(v)
		}
		bucket := tx.Bucket(logBucket)
		return bucket.ForEach(func(_, v []byte) error {
			var e raft.LogEntry
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&e); err != nil {
				return err
			}
			log = append(log, e)
			return nil
		})
	})
	return term, votedFor, log, err
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

func indexKey(i uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], i)
	return k[:]
}

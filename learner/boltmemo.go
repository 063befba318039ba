package learner

import (
	"encoding/binary"
	"fmt"
	"math"

	bolt "go.etcd.io/bbolt"
)

var memoBucket = []byte("model_cost_memo")

// BoltMemo is a Memo that persists model-cost memoization to a bbolt file
// instead of an in-process map, so its entries survive process restarts.
// Learn does not take a Memo argument and always uses NewMapMemo.
type BoltMemo struct {
	db *bolt.DB
}

// OpenBoltMemo opens (creating if needed) a bbolt-backed memo at path.
func OpenBoltMemo(path string) (*BoltMemo, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("learner: open bolt memo: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(memoBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("learner: init bolt memo bucket: %w", err)
	}
	return &BoltMemo{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (b *BoltMemo) Close() error { return b.db.Close() }

func (b *BoltMemo) Get(key string) (float64, bool) {
	var cost float64
	var found bool
	_ = b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(memoBucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		bits := binary.BigEndian.Uint64(v)
		cost = math.Float64frombits(bits)
		found = true
		return nil
	})
	return cost, found
}

func (b *BoltMemo) Put(key string, cost float64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(cost))
	_ = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(memoBucket).Put([]byte(key), buf[:])
	})
}

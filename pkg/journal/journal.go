// Package journal persists candidate sightings to a bbolt database so
// a confirmed encoding can later be calibrated against the raw bytes
// seen on the bench. The live history table stays volatile; only
// candidate reports are written here, explicitly, by the caller.
package journal

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"cantemp/pkg/analyze"
)

const bucketKey = "sightings"

// Entry is one journaled candidate sighting.
type Entry struct {
	ID      uint32            `json:"id"`
	Time    time.Time         `json:"time"`
	Data    string            `json:"data"` // payload as hex
	Changed []int             `json:"changed"`
	Values  map[int][]float64 `json:"values,omitempty"` // byte index -> plausible decodings
	Names   map[int][]string  `json:"names,omitempty"`  // byte index -> hypothesis names
}

type Journal struct {
	db *bolt.DB
}

// Open opens (or creates) the journal database and ensures the bucket
// exists.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketKey))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one candidate sighting. The key is identifier plus
// timestamp so repeated sightings of the same identifier all survive.
func (j *Journal) Record(rep analyze.Report, data []byte, ts time.Time) error {
	entry := Entry{
		ID:      rep.ID,
		Time:    ts,
		Data:    hex.EncodeToString(data),
		Changed: rep.Changed,
	}
	if len(rep.Values) > 0 {
		entry.Values = make(map[int][]float64, len(rep.Values))
		entry.Names = make(map[int][]string, len(rep.Values))
		for i, vals := range rep.Values {
			for _, v := range vals {
				entry.Values[i] = append(entry.Values[i], v.Value)
				entry.Names[i] = append(entry.Names[i], v.Name)
			}
		}
	}

	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := []byte(fmt.Sprintf("%08X:%d", rep.ID, ts.UnixNano()))
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketKey)).Put(key, value)
	})
}

// Entries returns all journaled sightings in key order (identifier,
// then time).
func (j *Journal) Entries() ([]Entry, error) {
	var out []Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketKey)).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("corrupt entry %q: %w", k, err)
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

// Clear drops all journaled sightings.
func (j *Journal) Clear() error {
	return j.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketKey)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketKey))
		return err
	})
}

package train

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/herohde/stax/pkg/eval"
)

const keyLatest = "latest"

// Checkpoint captures the best individual of a completed generation.
type Checkpoint struct {
	Generation int          `json:"generation"`
	Weights    eval.Weights `json:"weights"`
	Fitness    float64      `json:"fitness"`
	Games      uint64       `json:"games"`
	When       time.Time    `json:"when"`
}

func (c Checkpoint) String() string {
	return fmt.Sprintf("{gen=%v, fitness=%.2f, games=%v}", c.Generation, c.Fitness, c.Games)
}

// Store persists training checkpoints in a badger database, so interrupted
// training runs can resume where they left off. It stores one entry per
// generation plus a latest pointer.
type Store struct {
	db *badger.DB
}

// OpenStore opens (or creates) the checkpoint database in the given
// directory.
func OpenStore(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store %v: %v", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveCheckpoint stores the checkpoint under its generation key and advances
// the latest pointer.
func (s *Store) SaveCheckpoint(cp Checkpoint) error {
	cp.When = time.Now()

	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(genKey(cp.Generation), data); err != nil {
			return err
		}
		return txn.Set([]byte(keyLatest), data)
	})
}

// Checkpoint returns the checkpoint of the given generation, if present.
func (s *Store) Checkpoint(gen int) (Checkpoint, bool, error) {
	return s.read(genKey(gen))
}

// Latest returns the most recent checkpoint, if any.
func (s *Store) Latest() (Checkpoint, bool, error) {
	return s.read([]byte(keyLatest))
}

func (s *Store) read(key []byte) (Checkpoint, bool, error) {
	var cp Checkpoint
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cp)
		})
	})
	return cp, found, err
}

func genKey(gen int) []byte {
	return []byte(fmt.Sprintf("gen/%06d", gen))
}

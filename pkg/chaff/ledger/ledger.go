// Package ledger persists what each run wrote, including the secrets of
// encrypted and archived files, so a later decode or clean can find them.
package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a run or file is not in the ledger.
var ErrNotFound = errors.New("ledger entry not found")

// Store wraps Badger.
type Store struct {
	db *badger.DB
}

// Open opens or creates a ledger at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a run and its files in one batch.
func (s *Store) Record(run Run, files []File) error {
	run.Version = Version
	run.Files = len(files)
	run.Bytes = 0
	for _, f := range files {
		run.Bytes += f.Size
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	value, err := encode(&run)
	if err != nil {
		return err
	}
	if err := wb.Set(makeKey(runPrefix, run.ID), value); err != nil {
		return err
	}
	for _, f := range files {
		f.RunID = run.ID
		value, err := encode(&f)
		if err != nil {
			return err
		}
		if err := wb.Set(makeKey(filePrefix, run.ID, f.Name), value); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Run returns the run with id.
func (s *Store) Run(id string) (*Run, error) {
	var run Run
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(runPrefix, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: run %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(decode(&run))
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Runs lists every run, newest first.
func (s *Store) Runs() ([]Run, error) {
	var runs []Run
	err := s.scan(makePrefix(runPrefix), func(data []byte) error {
		var r Run
		if err := decode(&r)(data); err != nil {
			return err
		}
		runs = append(runs, r)
		return nil
	})
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs, err
}

// Files lists the files of a run in name order.
func (s *Store) Files(runID string) ([]File, error) {
	var files []File
	err := s.scan(makePrefix(filePrefix, runID), func(data []byte) error {
		var f File
		if err := decode(&f)(data); err != nil {
			return err
		}
		files = append(files, f)
		return nil
	})
	return files, err
}

// File returns one file of a run.
func (s *Store) File(runID, name string) (*File, error) {
	var f File
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(filePrefix, runID, name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s in run %s", ErrNotFound, name, runID)
		}
		if err != nil {
			return err
		}
		return item.Value(decode(&f))
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// FindPath returns the record of the file written at path.
func (s *Store) FindPath(path string) (*File, error) {
	var found *File
	err := s.scan(makePrefix(filePrefix), func(data []byte) error {
		var f File
		if err := decode(&f)(data); err != nil {
			return err
		}
		if f.Path == path {
			found = &f
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return found, nil
}

// Delete removes a run and all its files.
func (s *Store) Delete(runID string) error {
	if _, err := s.Run(runID); err != nil {
		return err
	}
	prefix := makePrefix(filePrefix, runID)
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return txn.Delete(makeKey(runPrefix, runID))
	})
}

func (s *Store) scan(prefix []byte, fn func([]byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

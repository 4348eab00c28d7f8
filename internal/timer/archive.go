package timer

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/segmentio/ksuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/multierr"
)

const (
	archivePrefix = "TIMER/"
	sequenceKey   = "!timer/seq"
)

// Line is one raw timer line as captured.
type Line struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	Raw        string    `json:"raw"`
}

// Archive keeps every raw timer line. Keys carry a persistent sequence so
// iteration is in capture order.
type Archive struct {
	db  *badger.DB
	seq *badger.Sequence
}

// OpenArchive opens the archive at dir, or an in-memory one when dir is empty.
func OpenArchive(dir string) (*Archive, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open timer archive: %w", err)
	}
	seq, err := db.GetSequence([]byte(sequenceKey), 64)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open timer archive sequence: %w", err)
	}
	return &Archive{db: db, seq: seq}, nil
}

// Append stores raw and returns the captured line with a fresh id.
func (a *Archive) Append(raw string, at time.Time) (Line, error) {
	id, err := ksuid.NewRandomWithTime(at)
	if err != nil {
		return Line{}, fmt.Errorf("failed to generate line id: %w", err)
	}
	l := Line{ID: id.String(), CapturedAt: at, Raw: raw}
	buf, err := msgpack.Marshal(l)
	if err != nil {
		return Line{}, fmt.Errorf("failed to marshal timer line: %w", err)
	}
	n, err := a.seq.Next()
	if err != nil {
		return Line{}, fmt.Errorf("failed to number timer line: %w", err)
	}
	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(archiveKey(n, l.ID), buf)
	})
	if err != nil {
		return Line{}, fmt.Errorf("failed to write timer line: %w", err)
	}
	return l, nil
}

// Lines returns every archived line in capture order.
func (a *Archive) Lines() ([]Line, error) {
	var out []Line
	prefix := []byte(archivePrefix)
	err := a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var l Line
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &l)
			}); err != nil {
				return err
			}
			out = append(out, l)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list timer lines: %w", err)
	}
	return out, nil
}

func archiveKey(n uint64, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", archivePrefix, n, id))
}

func (a *Archive) Close() error {
	return multierr.Append(a.seq.Release(), a.db.Close())
}

// The sequencer owns the ordered in-memory view of change records and
// assigns their ids. It is the single piece of shared mutable state on the
// ingestion side: every mutation happens under its lock, and the durable
// journal append happens inside the critical section so that a record is
// never visible in memory (or broadcastable) before it is on disk.
package changesequencer

import (
	"log"
	"sync"
	"time"

	"github.com/function61/hitsync/pkg/changejournal"
	"github.com/function61/hitsync/pkg/hittypes"
)

// what the sequencer needs from the journal. satisfied by
// *changejournal.Journal.
type recordAppender interface {
	Append(record *hittypes.ChangeRecord) error
	Close() error
}

type Sequencer struct {
	mu       sync.Mutex
	poisoned bool
	records  []hittypes.ChangeRecord
	journal  recordAppender // nil = memory only (tests, ephemeral servers)
	now      func() time.Time
}

// memory-only sequencer without durability
func New() *Sequencer {
	return &Sequencer{
		records: []hittypes.ChangeRecord{},
		now:     time.Now,
	}
}

// sequencer backed by a journal at the given path. history is replayed so
// id assignment continues where the previous process left off.
func NewWithJournal(path string, logger *log.Logger) (*Sequencer, error) {
	journal, records, err := changejournal.Open(path, logger)
	if err != nil {
		return nil, err
	}

	return &Sequencer{
		records: records,
		journal: journal,
		now:     time.Now,
	}, nil
}

// wraps the single change in a new record with the next id and appends it.
// the journal append is the commit point: if it fails, the in-memory view
// is left untouched and the error is propagated.
func (s *Sequencer) Add(change hittypes.ChangeNotice) (*hittypes.ChangeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return nil, hittypes.ErrLockPoisoned
	}

	// an abnormal exit below (panic in the journal layer, for example) leaves
	// the flag set, failing every later call instead of risking a view that
	// disagrees with the journal. recovery is constructing a fresh sequencer.
	s.poisoned = true

	id := uint64(1)
	if len(s.records) > 0 {
		id = s.records[len(s.records)-1].ID + 1
	}

	record := hittypes.ChangeRecord{
		ID:        id,
		Changes:   []hittypes.ChangeNotice{change},
		Timestamp: uint64(s.now().Unix()),
	}

	if s.journal != nil {
		if err := s.journal.Append(&record); err != nil {
			s.poisoned = false // orderly failure - state still consistent
			return nil, err
		}
	}

	s.records = append(s.records, record)
	s.poisoned = false

	recordCopy := record
	return &recordCopy, nil
}

// consistent snapshot of all records in id order
func (s *Sequencer) All() ([]hittypes.ChangeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return nil, hittypes.ErrLockPoisoned
	}

	snapshot := make([]hittypes.ChangeRecord, len(s.records))
	copy(snapshot, s.records)
	return snapshot, nil
}

// most recently appended record, or nil if the journal is empty
func (s *Sequencer) Latest() (*hittypes.ChangeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return nil, hittypes.ErrLockPoisoned
	}

	if len(s.records) == 0 {
		return nil, nil
	}

	latest := s.records[len(s.records)-1]
	return &latest, nil
}

func (s *Sequencer) Close() error {
	if s.journal != nil {
		return s.journal.Close()
	}

	return nil
}

package changesequencer

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/function61/gokit/assert"
	"github.com/function61/hitsync/pkg/hittypes"
)

func notice(hash string) hittypes.ChangeNotice {
	return hittypes.ChangeNotice{Hash: hash, Path: "f.txt", Timestamp: 1}
}

func TestIdsAreGaplessFromOne(t *testing.T) {
	seq := New()

	for i := 0; i < 5; i++ {
		record, err := seq.Add(notice(fmt.Sprintf("h%d", i)))
		assert.Ok(t, err)
		assert.Assert(t, record.ID == uint64(i+1))
	}

	all, err := seq.All()
	assert.Ok(t, err)
	assert.Assert(t, len(all) == 5)
	for i, record := range all {
		assert.Assert(t, record.ID == uint64(i+1))
	}

	latest, err := seq.Latest()
	assert.Ok(t, err)
	assert.Assert(t, latest.ID == 5)
}

func TestLatestOnEmpty(t *testing.T) {
	latest, err := New().Latest()
	assert.Ok(t, err)
	assert.Assert(t, latest == nil)
}

func TestRecordWrapsSingleChange(t *testing.T) {
	seq := New()
	seq.now = func() time.Time { return time.Unix(1234, 0) }

	record, err := seq.Add(notice("abc"))
	assert.Ok(t, err)
	assert.Assert(t, len(record.Changes) == 1)
	assert.EqualString(t, record.Changes[0].Hash, "abc")
	assert.Assert(t, record.Timestamp == 1234)
}

func TestIdAssignmentResumesFromJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")

	seq, err := NewWithJournal(path, nil)
	assert.Ok(t, err)
	_, err = seq.Add(notice("h1"))
	assert.Ok(t, err)
	_, err = seq.Add(notice("h2"))
	assert.Ok(t, err)
	assert.Ok(t, seq.Close())

	reopened, err := NewWithJournal(path, nil)
	assert.Ok(t, err)
	defer reopened.Close()

	record, err := reopened.Add(notice("h3"))
	assert.Ok(t, err)
	assert.Assert(t, record.ID == 3)
}

type failingJournal struct{}

func (f *failingJournal) Append(record *hittypes.ChangeRecord) error {
	return errors.New("no space left on device")
}

func (f *failingJournal) Close() error { return nil }

func TestNoMemoryMutationOnJournalFailure(t *testing.T) {
	seq := New()
	seq.journal = &failingJournal{}

	_, err := seq.Add(notice("h1"))
	assert.Assert(t, err != nil)

	all, err := seq.All()
	assert.Ok(t, err)
	assert.Assert(t, len(all) == 0)

	// a failed append is an orderly failure, not poisoning: the sequencer
	// keeps serving
	latest, err := seq.Latest()
	assert.Ok(t, err)
	assert.Assert(t, latest == nil)
}

func TestPoisonedSequencerFailsEveryCall(t *testing.T) {
	seq := New()
	seq.poisoned = true // what an abnormal exit mid-mutation leaves behind

	_, err := seq.Add(notice("h1"))
	assert.Assert(t, err == hittypes.ErrLockPoisoned)

	_, err = seq.All()
	assert.Assert(t, err == hittypes.ErrLockPoisoned)

	_, err = seq.Latest()
	assert.Assert(t, err == hittypes.ErrLockPoisoned)
}

func TestDuplicateNoticesGetDistinctRecords(t *testing.T) {
	// record ids number acceptance events, not contents: submitting the same
	// notice twice yields two records (content dedup is the object store's job)
	seq := New()

	first, err := seq.Add(notice("same"))
	assert.Ok(t, err)
	second, err := seq.Add(notice("same"))
	assert.Ok(t, err)

	assert.Assert(t, first.ID == 1)
	assert.Assert(t, second.ID == 2)
}

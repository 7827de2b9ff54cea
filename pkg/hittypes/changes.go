package hittypes

// a report that the given path now has the given content. produced by a
// change producer (the watcher), consumed by the server's ingestion endpoint.
type ChangeNotice struct {
	Hash      string `json:"hash"`
	Path      string `json:"path"`
	Timestamp uint64 `json:"timestamp"` // seconds since epoch
}

func (c *ChangeNotice) Validate() error {
	if c.Hash == "" || c.Path == "" {
		return ErrIncompleteChangeNotice
	}

	if _, err := ParseHashHex(c.Hash); err != nil {
		return err
	}

	return nil
}

// durably sequenced journal entry. ids are assigned by the sequencer, start
// at 1 and are gapless and strictly increasing for the journal's lifetime.
// Changes is non-empty; the current design wraps exactly one notice each.
type ChangeRecord struct {
	ID        uint64         `json:"id"`
	Changes   []ChangeNotice `json:"changes"`
	Timestamp uint64         `json:"timestamp"`
}

// broadcast payload pairing a notice with its record id. ephemeral - only
// delivered to subscribers live at publish time, never persisted.
type ChangeEvent struct {
	Change   ChangeNotice `json:"change"`
	CommitID uint64       `json:"commit_id"`
}

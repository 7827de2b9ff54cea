package hittypes

import (
	"errors"
)

var (
	ErrBadContentHash         = errors.New("bad content hash")
	ErrIncompleteChangeNotice = errors.New("change notice missing hash or path")
	ErrObjectNotFound         = errors.New("object not found")
	ErrObjectCorrupt          = errors.New("stored object corrupt")
	ErrLockPoisoned           = errors.New("sequencer state poisoned by earlier failure")
	ErrNonBlobObject          = errors.New("expected blob object")
	ErrPathEscapesRepo        = errors.New("path outside repository")
)

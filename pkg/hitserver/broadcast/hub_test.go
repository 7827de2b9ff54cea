package broadcast

import (
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/function61/hitsync/pkg/hittypes"
)

func event(id uint64) hittypes.ChangeEvent {
	return hittypes.ChangeEvent{
		Change:   hittypes.ChangeNotice{Hash: "h", Path: "f.txt", Timestamp: id},
		CommitID: id,
	}
}

func TestFanOutToAllSubscribers(t *testing.T) {
	hub := NewHub(nil)

	first := hub.Subscribe()
	second := hub.Subscribe()
	assert.Assert(t, hub.SubscriberCount() == 2)

	hub.Publish(event(1))

	assert.Assert(t, (<-first.C).CommitID == 1)
	assert.Assert(t, (<-second.C).CommitID == 1)
}

func TestLateSubscriberMissesEarlierEvents(t *testing.T) {
	hub := NewHub(nil)

	hub.Publish(event(1))

	late := hub.Subscribe()
	hub.Publish(event(2))

	assert.Assert(t, (<-late.C).CommitID == 2)
	assert.Assert(t, len(late.C) == 0)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(nil)

	slow := hub.Subscribe()

	// overfill the buffer; Publish must return anyway
	for i := 0; i < subscriberBufferSize+5; i++ {
		hub.Publish(event(uint64(i + 1)))
	}

	assert.Assert(t, len(slow.C) == subscriberBufferSize)
	assert.Assert(t, (<-slow.C).CommitID == 1)
}

func TestCloseIsIdempotent(t *testing.T) {
	hub := NewHub(nil)

	sub := hub.Subscribe()
	sub.Close()
	sub.Close()

	assert.Assert(t, hub.SubscriberCount() == 0)

	// publishing after unsubscribe must not panic on the closed channel
	hub.Publish(event(1))
}

package hitclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/function61/gokit/logex"
	"github.com/function61/hitsync/pkg/hittypes"
	"github.com/function61/hitsync/pkg/objectstore"
)

type syncState struct {
	conf     *ClientConfig
	store    *objectstore.Store
	repoRoot string
	logl     *logex.Leveled
}

// the sync loop: connect to the server's event stream, apply each change as
// it arrives, reconnect with doubling backoff (1s..30s, reset on success)
// when the stream fails, and stop cleanly when ctx is cancelled.
func Sync(
	ctx context.Context,
	conf *ClientConfig,
	store *objectstore.Store,
	repoRoot string,
	logger *log.Logger,
) error {
	s := &syncState{
		conf:     conf,
		store:    store,
		repoRoot: repoRoot,
		logl:     logex.Levels(logex.NonNil(logger)),
	}

	reconnectBackoff := newReconnectBackoff()

	for {
		err := s.streamOnce(ctx, func() {
			s.logl.Info.Printf("connected to %s", s.conf.ServerAddr)
			reconnectBackoff.Reset()
		})

		if ctx.Err() != nil { // cancellation, not a stream failure
			return nil
		}

		delay := reconnectBackoff.NextBackOff()
		s.logl.Error.Printf("stream: %v; reconnecting in %s", err, delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func newReconnectBackoff() *backoff.ExponentialBackOff {
	reconnectBackoff := backoff.NewExponentialBackOff()
	reconnectBackoff.InitialInterval = 1 * time.Second
	reconnectBackoff.Multiplier = 2
	reconnectBackoff.MaxInterval = 30 * time.Second
	reconnectBackoff.RandomizationFactor = 0 // deterministic 1, 2, 4, .. 30
	reconnectBackoff.MaxElapsedTime = 0      // retry forever (until cancelled)

	// the constructor seeds the current interval from the library default
	// before our fields are set; Reset() re-seeds it from InitialInterval
	reconnectBackoff.Reset()

	return reconnectBackoff
}

// one Connecting -> Streaming episode. returns when the stream errors or the
// server closes it; ctx cancellation closes the connection immediately
// because the request carries ctx.
func (s *syncState) streamOnce(ctx context.Context, connected func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.conf.ApiPath("/events"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server responded with status %d", resp.StatusCode)
	}

	connected()

	// server-sent events: "data:" lines accumulate until a blank line
	// delimits the event; ":" lines are keep-alive comments
	scanner := bufio.NewScanner(resp.Body)
	data := ""

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if data != "" {
				s.handleEvent(ctx, data)
				data = ""
			}
		case strings.HasPrefix(line, ":"): // keep-alive comment
		case strings.HasPrefix(line, "data:"):
			if data != "" { // multiple "data:" lines join with a newline
				data += "\n"
			}
			data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	return fmt.Errorf("server closed connection")
}

// a bad event is logged and skipped - it must not tear down the stream,
// and there is no per-event retry (reconnects happen at stream level only)
func (s *syncState) handleEvent(ctx context.Context, data string) {
	event := hittypes.ChangeEvent{}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		s.logl.Error.Printf("parse event: %v", err)
		return
	}

	if err := s.applyChange(ctx, event.Change); err != nil {
		s.logl.Error.Printf("apply change (record %d): %v", event.CommitID, err)
	}
}

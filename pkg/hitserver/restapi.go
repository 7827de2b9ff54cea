package hitserver

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"log"
	"net/http"
	"time"

	"github.com/function61/gokit/hashverifyreader"
	"github.com/function61/gokit/logex"
	"github.com/function61/hitsync/pkg/changesequencer"
	"github.com/function61/hitsync/pkg/hitserver/broadcast"
	"github.com/function61/hitsync/pkg/hittypes"
	"github.com/function61/hitsync/pkg/objectstore"
	"github.com/gorilla/mux"
	sha256 "github.com/minio/sha256-simd"
)

// an object PUT can't be larger than one canonically serialized file blob
// plus framing; this bound just keeps a broken client from ballooning memory
const maxObjectSize = 64 * 1024 * 1024

type handlers struct {
	sequencer         *changesequencer.Sequencer
	store             *objectstore.Store
	hub               *broadcast.Hub
	metrics           *metricsController
	keepAliveInterval time.Duration
	logl              *logex.Leveled
}

func defineRestApi(
	router *mux.Router,
	sequencer *changesequencer.Sequencer,
	store *objectstore.Store,
	hub *broadcast.Hub,
	metrics *metricsController,
	logger *log.Logger,
) {
	han := &handlers{
		sequencer:         sequencer,
		store:             store,
		hub:               hub,
		metrics:           metrics,
		keepAliveInterval: 15 * time.Second,
		logl:              logex.Levels(logex.NonNil(logger)),
	}

	router.HandleFunc("/changes", han.submitChange).Methods(http.MethodPost)
	router.HandleFunc("/changes", han.listChanges).Methods(http.MethodGet)
	router.HandleFunc("/changes/latest", han.latestChange).Methods(http.MethodGet)
	router.HandleFunc("/objects/{hash}", han.storeObject).Methods(http.MethodPut)
	router.HandleFunc("/objects/{hash}", han.fetchObject).Methods(http.MethodGet)
	router.HandleFunc("/events", han.eventStream).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.httpHandler()).Methods(http.MethodGet)
}

// a notice must carry exactly the three known fields - anything missing or
// extra means a producer/server version mismatch and gets a client error
func (h *handlers) submitChange(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Hash      *string `json:"hash"`
		Path      *string `json:"path"`
		Timestamp *uint64 `json:"timestamp"`
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if payload.Hash == nil || payload.Path == nil || payload.Timestamp == nil {
		http.Error(w, "change notice requires hash, path and timestamp", http.StatusBadRequest)
		return
	}

	change := hittypes.ChangeNotice{
		Hash:      *payload.Hash,
		Path:      *payload.Path,
		Timestamp: *payload.Timestamp,
	}

	record, err := h.sequencer.Add(change)
	if err != nil {
		h.logl.Error.Printf("sequence change: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.logl.Info.Printf("change accepted: %s -> record %d", change.Path, record.ID)
	h.metrics.changesAccepted.Inc()

	// record is durable by now, so subscribers can act on it
	h.hub.Publish(hittypes.ChangeEvent{Change: change, CommitID: record.ID})

	h.outJson(w, map[string]interface{}{
		"accepted":  true,
		"commit_id": record.ID,
	})
}

func (h *handlers) listChanges(w http.ResponseWriter, r *http.Request) {
	records, err := h.sequencer.All()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.outJson(w, records)
}

func (h *handlers) latestChange(w http.ResponseWriter, r *http.Request) {
	record, err := h.sequencer.Latest()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if record == nil {
		http.Error(w, "no changes recorded", http.StatusNotFound)
		return
	}

	h.outJson(w, record)
}

// integrity gate: the body is read through a hash-verifying reader, so a
// payload whose digest doesn't match the requested hash never reaches the
// store. this prevents poisoning the store under a hash the content doesn't
// have.
func (h *handlers) storeObject(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	expectedSum, err := hittypes.ParseHashHex(hash)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	verifiedBody := hashverifyreader.New(
		http.MaxBytesReader(w, r.Body, maxObjectSize),
		sha256.New(),
		expectedSum)

	content, err := ioutil.ReadAll(verifiedBody)
	if err != nil { // hash mismatch or read error
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := hittypes.ParseContentObject(content); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.PutRaw(hash, content); err != nil {
		h.logl.Error.Printf("store object %s: %v", hash, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.metrics.objectsStored.Inc()

	h.outJson(w, map[string]interface{}{"stored": true})
}

func (h *handlers) fetchObject(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	content, err := h.store.GetRaw(hash)
	if err != nil {
		// absence is an expected outcome (client probing before upload)
		if errors.Is(err, hittypes.ErrObjectNotFound) || errors.Is(err, hittypes.ErrBadContentHash) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			h.logl.Error.Printf("fetch object %s: %v", hash, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.metrics.objectsFetched.Inc()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(content) //nolint:errcheck
}

func (h *handlers) outJson(w http.ResponseWriter, out interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(out); err != nil {
		h.logl.Error.Printf("outJson: %v", err)
	}
}

package hitwatcher

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/function61/hitsync/pkg/hitclient"
	"github.com/function61/hitsync/pkg/hittypes"
	"github.com/function61/hitsync/pkg/objectstore"
)

func TestShouldIgnore(t *testing.T) {
	w := New(".", nil, nil, nil)

	assert.Assert(t, w.shouldIgnore(".hit/objects/abc"))
	assert.Assert(t, w.shouldIgnore("sub/.hit/journal.log"))
	assert.Assert(t, w.shouldIgnore("notes.txt~"))
	assert.Assert(t, w.shouldIgnore(".main.go.swp"))
	assert.Assert(t, w.shouldIgnore("build/output.tmp"))

	assert.Assert(t, !w.shouldIgnore("main.go"))
	assert.Assert(t, !w.shouldIgnore("docs/hitchhiker.md")) // contains "hit" but not the repo dir
}

func TestStoreAndReport(t *testing.T) {
	var mu sync.Mutex
	uploadedObjects := map[string][]byte{}
	reported := []hittypes.ChangeNotice{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case r.Method == http.MethodPut:
			content, _ := ioutil.ReadAll(r.Body)
			uploadedObjects[filepath.Base(r.URL.Path)] = content
			w.Write([]byte(`{"stored":true}`)) //nolint:errcheck
		case r.Method == http.MethodPost:
			notice := hittypes.ChangeNotice{}
			if err := json.NewDecoder(r.Body).Decode(&notice); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			reported = append(reported, notice)
			w.Write([]byte(`{"accepted":true,"commit_id":1}`)) //nolint:errcheck
		}
	}))
	defer srv.Close()

	root := t.TempDir()
	store := objectstore.New(filepath.Join(root, ".hit", "objects"), nil)

	assert.Ok(t, ioutil.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0644))

	w := New(root, store, &hitclient.ClientConfig{ServerAddr: srv.URL}, nil)

	assert.Ok(t, w.storeAndReport(context.Background(), filepath.Join(root, "main.go")))

	expectedHash, err := hittypes.NewBlobObject([]byte("package main")).Hash()
	assert.Ok(t, err)

	// stored locally
	cached, err := store.Has(expectedHash)
	assert.Ok(t, err)
	assert.Assert(t, cached)

	mu.Lock()
	defer mu.Unlock()

	// uploaded to the server under its hash
	_, uploaded := uploadedObjects[expectedHash]
	assert.Assert(t, uploaded)

	// and reported with a repo-relative path
	assert.Assert(t, len(reported) == 1)
	assert.EqualString(t, reported[0].Hash, expectedHash)
	assert.EqualString(t, reported[0].Path, "main.go")
}

func TestStoreOnlyWhenNotReporting(t *testing.T) {
	root := t.TempDir()
	store := objectstore.New(filepath.Join(root, ".hit", "objects"), nil)

	assert.Ok(t, ioutil.WriteFile(filepath.Join(root, "f.txt"), []byte("content"), 0644))

	// nil config = local-only mode; would panic/fail if it tried to report
	w := New(root, store, nil, nil)

	assert.Ok(t, w.storeAndReport(context.Background(), filepath.Join(root, "f.txt")))

	expectedHash, err := hittypes.NewBlobObject([]byte("content")).Hash()
	assert.Ok(t, err)

	cached, err := store.Has(expectedHash)
	assert.Ok(t, err)
	assert.Assert(t, cached)
}

// Watches the working tree for file changes, hashes changed files into blob
// objects in the local object store and reports them to the server, where
// they get sequenced and broadcast to sync clients.
package hitwatcher

import (
	"context"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/function61/gokit/logex"
	"github.com/function61/hitsync/pkg/hitclient"
	"github.com/function61/hitsync/pkg/hitrepo"
	"github.com/function61/hitsync/pkg/hittypes"
	"github.com/function61/hitsync/pkg/objectstore"
)

// editor scratch files that would flood the change stream
var ignoredSuffixes = []string{"~", ".swp", ".tmp"}

type Watcher struct {
	root   string
	store  *objectstore.Store
	conf   *hitclient.ClientConfig
	report bool
	logl   *logex.Leveled
}

func New(root string, store *objectstore.Store, conf *hitclient.ClientConfig, logger *log.Logger) *Watcher {
	return &Watcher{
		root:   root,
		store:  store,
		conf:   conf,
		report: conf != nil,
		logl:   logex.Levels(logex.NonNil(logger)),
	}
}

// blocks watching the tree rooted at root until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsWatcher.Close()

	if err := w.watchRecursively(fsWatcher, w.root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, open := <-fsWatcher.Events:
			if !open {
				return nil
			}

			if err := w.handleEvent(ctx, fsWatcher, event); err != nil {
				w.logl.Error.Printf("handle %s: %v", event.Name, err)
			}
		case err, open := <-fsWatcher.Errors:
			if !open {
				return nil
			}

			w.logl.Error.Printf("watch: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsWatcher *fsnotify.Watcher, event fsnotify.Event) error {
	if w.shouldIgnore(event.Name) {
		return nil
	}

	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return nil
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		if os.IsNotExist(err) { // deleted between event and stat
			return nil
		}

		return err
	}

	// start covering directories as they appear
	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			return w.watchRecursively(fsWatcher, event.Name)
		}

		return nil
	}

	return w.storeAndReport(ctx, event.Name)
}

func (w *Watcher) storeAndReport(ctx context.Context, path string) error {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}

	obj := hittypes.NewBlobObject(content)

	hash, err := obj.Hash()
	if err != nil {
		return err
	}

	alreadyStored, err := w.store.Has(hash)
	if err != nil {
		return err
	}

	if alreadyStored {
		w.logl.Debug.Printf("%s -> %s (unchanged, already stored)", path, hash)
	} else {
		if _, err := w.store.Put(obj); err != nil {
			return err
		}

		w.logl.Info.Printf("%s -> stored as %s", path, hash)
	}

	if !w.report {
		return nil
	}

	relativePath, err := filepath.Rel(w.root, path)
	if err != nil {
		return err
	}

	if _, err := hitclient.UploadObject(ctx, w.conf, obj); err != nil {
		return err
	}

	return hitclient.ReportChange(ctx, w.conf, hittypes.ChangeNotice{
		Hash:      hash,
		Path:      filepath.ToSlash(relativePath),
		Timestamp: uint64(time.Now().Unix()),
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	for _, component := range strings.Split(filepath.ToSlash(path), "/") {
		if component == hitrepo.RepoDirName {
			return true
		}
	}

	for _, suffix := range ignoredSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}

	return false
}

func (w *Watcher) watchRecursively(fsWatcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			return nil
		}

		if w.shouldIgnore(path) {
			return filepath.SkipDir
		}

		return fsWatcher.Add(path)
	})
}

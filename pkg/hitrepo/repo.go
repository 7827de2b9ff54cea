// Repository directory bootstrapping and the fixed on-disk layout under
// ".hit/" that the other components share.
package hitrepo

import (
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/function61/gokit/fileexists"
	"github.com/function61/gokit/logex"
)

const (
	RepoDirName = ".hit"

	objectsDirName = "objects"
	journalName    = "journal.log"
)

// object storage directory: one file per content hash
func ObjectsDir(root string) string {
	return filepath.Join(root, RepoDirName, objectsDirName)
}

// the change journal file
func JournalPath(root string) string {
	return filepath.Join(root, RepoDirName, journalName)
}

// creates the .hit directory structure under root. re-initializing an
// existing repository is not an error - existing files are left alone.
func Init(root string, logger *log.Logger) error {
	logl := logex.Levels(logex.NonNil(logger))

	repoDir := filepath.Join(root, RepoDirName)

	alreadyExisted, err := fileexists.Exists(repoDir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(ObjectsDir(root), 0755); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(repoDir, "refs", "heads"), 0755); err != nil {
		return err
	}

	if err := createIfMissing(filepath.Join(repoDir, "config"), nil); err != nil {
		return err
	}

	if err := createIfMissing(filepath.Join(repoDir, "HEAD"), []byte("refs/heads/main")); err != nil {
		return err
	}

	if err := createIfMissing(filepath.Join(repoDir, "refs", "heads", "main"), nil); err != nil {
		return err
	}

	if alreadyExisted {
		logl.Info.Printf("reinitialized existing repository in %s", repoDir)
	} else {
		logl.Info.Printf("initialized empty repository in %s", repoDir)
	}

	return nil
}

func createIfMissing(path string, content []byte) error {
	exists, err := fileexists.Exists(path)
	if err != nil || exists {
		return err
	}

	return ioutil.WriteFile(path, content, 0644)
}

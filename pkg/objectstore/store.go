// Content-addressed object storage on a local filesystem tree: one file per
// object, named by its content hash. Writes are atomic and idempotent.
package objectstore

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/function61/gokit/atomicfilewrite"
	"github.com/function61/gokit/fileexists"
	"github.com/function61/gokit/logex"
	"github.com/function61/hitsync/pkg/hittypes"
)

type Store struct {
	dir string
	log *logex.Leveled
}

func New(dir string, logger *log.Logger) *Store {
	return &Store{
		dir: dir,
		log: logex.Levels(logex.NonNil(logger)),
	}
}

// computes the object's content hash and writes its canonical bytes if no
// object with that hash exists yet. writing an already-stored object is a
// successful no-op. returns the hash either way.
func (s *Store) Put(obj *hittypes.ContentObject) (string, error) {
	canonical, err := obj.MarshalCanonical()
	if err != nil {
		return "", err
	}

	hash, err := obj.Hash()
	if err != nil {
		return "", err
	}

	if err := s.PutRaw(hash, canonical); err != nil {
		return "", err
	}

	return hash, nil
}

// stores pre-serialized object bytes under the given hash. the caller is
// responsible for having verified that hash actually covers content
// (the server does this with a hash-verifying reader before calling us).
func (s *Store) PutRaw(hash string, content []byte) error {
	if _, err := hittypes.ParseHashHex(hash); err != nil {
		return err
	}

	// backing directory is created lazily on first write
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	filename := s.objectPath(hash)

	exists, err := fileexists.Exists(filename)
	if err != nil {
		return err
	}

	if exists {
		// write-once: identical content is already there
		return nil
	}

	return atomicfilewrite.Write(filename, func(writer io.Writer) error {
		_, err := writer.Write(content)
		return err
	})
}

// fails with ErrObjectNotFound if nothing is stored under the hash, and with
// ErrObjectCorrupt if the stored bytes don't deserialize into a valid object
func (s *Store) Get(hash string) (*hittypes.ContentObject, error) {
	content, err := s.GetRaw(hash)
	if err != nil {
		return nil, err
	}

	obj, err := hittypes.ParseContentObject(content)
	if err != nil {
		s.log.Error.Printf("object %s: %v", hash, err)
		return nil, fmt.Errorf("%w: %v", hittypes.ErrObjectCorrupt, err)
	}

	return obj, nil
}

// serialized object bytes exactly as stored
func (s *Store) GetRaw(hash string) ([]byte, error) {
	if _, err := hittypes.ParseHashHex(hash); err != nil {
		return nil, err
	}

	content, err := ioutil.ReadFile(s.objectPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, hittypes.ErrObjectNotFound
		}

		return nil, err
	}

	return content, nil
}

func (s *Store) Has(hash string) (bool, error) {
	if _, err := hittypes.ParseHashHex(hash); err != nil {
		return false, err
	}

	return fileexists.Exists(s.objectPath(hash))
}

func (s *Store) objectPath(hash string) string {
	return filepath.Join(s.dir, hash)
}

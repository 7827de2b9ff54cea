package hitclient

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/function61/gokit/ezhttp"
	"github.com/function61/gokit/fileexists"
	"github.com/function61/gokit/hashverifyreader"
	"github.com/function61/hitsync/pkg/hittypes"
	sha256 "github.com/minio/sha256-simd"
)

const backupSuffix = ".bak"

// security boundary: the server (or anyone impersonating it) must not be
// able to direct writes outside the repository root. absolute paths and any
// parent-directory component are rejected before touching the filesystem.
func resolveRepoPath(root string, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", hittypes.ErrPathEscapesRepo
	}

	for _, component := range strings.Split(filepath.ToSlash(rel), "/") {
		if component == ".." {
			return "", hittypes.ErrPathEscapesRepo
		}
	}

	return filepath.Join(root, rel), nil
}

// fetches the object referenced by the change, caches it in the local object
// store and writes the blob's bytes to the change's path. existing content is
// first copied to a ".bak" sibling so nothing is silently lost.
func (s *syncState) applyChange(ctx context.Context, change hittypes.ChangeNotice) error {
	if err := change.Validate(); err != nil {
		return err
	}

	targetPath, err := resolveRepoPath(s.repoRoot, change.Path)
	if err != nil {
		return err
	}

	content, err := s.fetchObject(ctx, change.Hash)
	if err != nil {
		return err
	}

	obj, err := hittypes.ParseContentObject(content)
	if err != nil {
		return fmt.Errorf("object %s: %v", change.Hash, err)
	}

	// caching locally is idempotent; re-fetching a known object is harmless
	if err := s.store.PutRaw(change.Hash, content); err != nil {
		return err
	}

	if obj.Kind != hittypes.ObjectKindBlob {
		// only blobs are valid in the apply position
		return fmt.Errorf("%w, got %s (hash %s)", hittypes.ErrNonBlobObject, obj.Kind, change.Hash)
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return err
	}

	exists, err := fileexists.Exists(targetPath)
	if err != nil {
		return err
	}

	if exists {
		s.logl.Info.Printf("overwriting %s (backup at %s%s)", change.Path, change.Path, backupSuffix)

		if err := copyFile(targetPath, targetPath+backupSuffix); err != nil {
			return err
		}
	}

	if err := ioutil.WriteFile(targetPath, obj.Blob.Content, 0644); err != nil {
		return err
	}

	s.logl.Info.Printf("applied %s -> %s", change.Hash, change.Path)

	return nil
}

// downloads and hash-verifies the object's canonical bytes
func (s *syncState) fetchObject(ctx context.Context, hash string) ([]byte, error) {
	expectedSum, err := hittypes.ParseHashHex(hash)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ezhttp.DefaultTimeout10s)
	defer cancel()

	resp, err := ezhttp.Get(ctx, s.conf.ApiPath("/objects/"+hash))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	content, err := ioutil.ReadAll(hashverifyreader.New(resp.Body, sha256.New(), expectedSum))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %v", hash, err)
	}

	return content, nil
}

func copyFile(from string, to string) error {
	source, err := os.Open(from)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(to)
	if err != nil {
		return err
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return err
	}

	return destination.Close()
}

package hittypes

import (
	"testing"

	"github.com/function61/gokit/assert"
)

func TestBlobHashIsContentDetermined(t *testing.T) {
	a, err := NewBlobObject([]byte("hello")).Hash()
	assert.Ok(t, err)

	b, err := NewBlobObject([]byte("hello")).Hash()
	assert.Ok(t, err)

	c, err := NewBlobObject([]byte("hello!")).Hash()
	assert.Ok(t, err)

	assert.EqualString(t, a, b)
	assert.Assert(t, a != c)
	assert.Assert(t, len(a) == 64)
}

func TestKindsHashDifferently(t *testing.T) {
	blob, err := NewBlobObject(nil).Hash()
	assert.Ok(t, err)

	tree, err := NewTreeObject(Tree{}).Hash()
	assert.Ok(t, err)

	snapshot, err := NewSnapshotObject(Tree{}, "").Hash()
	assert.Ok(t, err)

	assert.Assert(t, blob != tree)
	assert.Assert(t, tree != snapshot)
}

func TestCanonicalRoundtrip(t *testing.T) {
	obj := NewSnapshotObject(Tree{Entries: []TreeEntry{
		{Name: "readme.md", Blob: &Blob{Content: []byte("# hi")}},
		{Name: "docs", Tree: &Tree{Entries: []TreeEntry{
			{Name: "guide.md", Blob: &Blob{Content: []byte("...")}},
		}}},
	}}, "initial import")

	canonical, err := obj.MarshalCanonical()
	assert.Ok(t, err)

	parsed, err := ParseContentObject(canonical)
	assert.Ok(t, err)

	hashBefore, err := obj.Hash()
	assert.Ok(t, err)
	hashAfter, err := parsed.Hash()
	assert.Ok(t, err)

	assert.EqualString(t, hashBefore, hashAfter)
	assert.EqualString(t, parsed.Snapshot.Message, "initial import")
}

func TestValidateRejectsMixedVariants(t *testing.T) {
	obj := &ContentObject{Kind: ObjectKindBlob, Blob: &Blob{}, Tree: &Tree{}}
	assert.Assert(t, obj.Validate() != nil)

	obj = &ContentObject{Kind: "symlink"}
	assert.Assert(t, obj.Validate() != nil)
}

func TestParseContentObjectRejectsGarbage(t *testing.T) {
	_, err := ParseContentObject([]byte("not json at all"))
	assert.Assert(t, err != nil)

	_, err = ParseContentObject([]byte(`{"kind":"tree"}`))
	assert.Assert(t, err != nil)
}

func TestChangeNoticeValidate(t *testing.T) {
	valid := ChangeNotice{
		Hash:      "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Path:      "f.txt",
		Timestamp: 1,
	}
	assert.Ok(t, valid.Validate())

	missingPath := valid
	missingPath.Path = ""
	assert.Assert(t, missingPath.Validate() == ErrIncompleteChangeNotice)

	badHash := valid
	badHash.Hash = "abc"
	assert.Assert(t, badHash.Validate() == ErrBadContentHash)
}

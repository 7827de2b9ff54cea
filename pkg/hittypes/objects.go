// Shared types for hitsync: the content object model and the change types
// that flow between the watcher, the server and sync clients.
package hittypes

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	sha256 "github.com/minio/sha256-simd"
)

type ObjectKind string

const (
	ObjectKindBlob     ObjectKind = "blob"
	ObjectKindTree     ObjectKind = "tree"
	ObjectKindSnapshot ObjectKind = "snapshot"
)

// raw byte payload of one file's contents. immutable once created.
type Blob struct {
	Content []byte `json:"content"`
}

// either a nested Tree or a Blob, owned by value so a Tree fully describes
// its subtree. exactly one of Blob/Tree is set.
type TreeEntry struct {
	Name string `json:"name"`
	Blob *Blob  `json:"blob,omitempty"`
	Tree *Tree  `json:"tree,omitempty"`
}

// ordered list of named entries, representing one directory level
type Tree struct {
	Entries []TreeEntry `json:"entries"`
}

// a Tree plus a human-readable message - a point-in-time commit of content.
// (not to be confused with ChangeRecord, which is the replication log entry)
type Snapshot struct {
	Tree    Tree   `json:"tree"`
	Message string `json:"message"`
}

// tagged union over {Blob, Tree, Snapshot}. exactly one variant is non-nil,
// matching Kind. identity is the SHA-256 of the canonical serialized bytes.
type ContentObject struct {
	Kind     ObjectKind `json:"kind"`
	Blob     *Blob      `json:"blob,omitempty"`
	Tree     *Tree      `json:"tree,omitempty"`
	Snapshot *Snapshot  `json:"snapshot,omitempty"`
}

func NewBlobObject(content []byte) *ContentObject {
	return &ContentObject{Kind: ObjectKindBlob, Blob: &Blob{Content: content}}
}

func NewTreeObject(tree Tree) *ContentObject {
	return &ContentObject{Kind: ObjectKindTree, Tree: &tree}
}

func NewSnapshotObject(tree Tree, message string) *ContentObject {
	return &ContentObject{Kind: ObjectKindSnapshot, Snapshot: &Snapshot{Tree: tree, Message: message}}
}

// checks the variant pointers against Kind. the switch is the exhaustiveness
// site: a new kind doesn't serialize until it's handled here.
func (o *ContentObject) Validate() error {
	switch o.Kind {
	case ObjectKindBlob:
		if o.Blob == nil || o.Tree != nil || o.Snapshot != nil {
			return fmt.Errorf("object kind %q: wrong variant set", o.Kind)
		}
	case ObjectKindTree:
		if o.Tree == nil || o.Blob != nil || o.Snapshot != nil {
			return fmt.Errorf("object kind %q: wrong variant set", o.Kind)
		}
	case ObjectKindSnapshot:
		if o.Snapshot == nil || o.Blob != nil || o.Tree != nil {
			return fmt.Errorf("object kind %q: wrong variant set", o.Kind)
		}
	default:
		return fmt.Errorf("unknown object kind: %q", o.Kind)
	}

	return nil
}

// canonical serialized form: JSON with fields in declaration order (which
// encoding/json guarantees), so equal objects always yield equal bytes
func (o *ContentObject) MarshalCanonical() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	return json.Marshal(o)
}

func ParseContentObject(data []byte) (*ContentObject, error) {
	obj := &ContentObject{}
	if err := json.Unmarshal(data, obj); err != nil {
		return nil, err
	}

	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return obj, nil
}

// content hash of the canonical bytes, as lowercase hex
func (o *ContentObject) Hash() (string, error) {
	canonical, err := o.MarshalCanonical()
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// validates a lowercase-hex SHA-256 content hash given by an untrusted party
func ParseHashHex(serialized string) ([]byte, error) {
	sum, err := hex.DecodeString(serialized)
	if err != nil || len(sum) != sha256.Size {
		return nil, ErrBadContentHash
	}

	return sum, nil
}

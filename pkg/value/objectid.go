package value

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// ObjectID is a 12-byte identifier: a 4-byte seconds-since-epoch prefix, a
// 5-byte machine/process salt generated once per run, and a 3-byte
// monotonic counter, in the BSON ObjectId tradition the teacher's document
// layer (pkg/json) never needed but spec.md §3.1 names as a leaf variant.
type ObjectID [12]byte

var (
	processSalt  [5]byte
	objectCounter uint32
)

func init() {
	_, _ = rand.Read(processSalt[:])
}

// GenerateObjectID generates a fresh, non-deterministic ObjectID. It is
// part of the non-immutable function set (spec.md §4.3): OBJECTID() with
// no arguments must not be cached across calls.
func GenerateObjectID() ObjectID {
	var id ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	copy(id[4:9], processSalt[:])
	n := atomic.AddUint32(&objectCounter, 1)
	id[9] = byte(n >> 16)
	id[10] = byte(n >> 8)
	id[11] = byte(n)
	return id
}

// ParseObjectID parses the 24-character hex representation.
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 12 {
		return id, fmt.Errorf("invalid ObjectId: %q", s)
	}
	copy(id[:], b)
	return id, nil
}

func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

func (id ObjectID) Compare(other ObjectID) int {
	for i := range id {
		if id[i] != other[i] {
			if id[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

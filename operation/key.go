package operation

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Key is the opaque token that identifies one scrape attempt. A caller
// captures it when dispatching a request and presents it again on
// completion; only uniqueness is relied upon.
type Key string

var generation atomic.Uint64

// NewKey returns a fresh key built from a process-wide generation counter
// and a random uuid.
func NewKey() Key {
	return Key(fmt.Sprintf("%d-%s", generation.Add(1), uuid.NewString()))
}

func (k Key) String() string { return string(k) }

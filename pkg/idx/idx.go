// Package idx generates ULID based identifiers. They sort by creation
// time, which keeps request ids and emulator rows in a useful order.
package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
)

type ID string

// Zero is the empty ID.
const Zero ID = ""

var ErrInvalid = errors.New("idx: invalid ulid")

// Generator hands out monotonic IDs. Two IDs from the same generator in
// the same millisecond still sort in the order they were made.
type Generator struct {
	clock clockwork.Clock

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewGenerator stamps IDs with clock; nil means the real clock.
func NewGenerator(clock clockwork.Clock) *Generator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Generator{clock: clock, entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *Generator) New() ID {
	return g.NewAt(g.clock.Now())
}

func (g *Generator) NewAt(t time.Time) ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ID(ulid.MustNew(ulid.Timestamp(t.UTC()), g.entropy).String())
}

var (
	globalOnce sync.Once
	global     *Generator
)

func defaultGenerator() *Generator {
	globalOnce.Do(func() { global = NewGenerator(nil) })
	return global
}

// New returns an ID for the current time.
func New() ID { return defaultGenerator().New() }

// NewAt returns an ID stamped with t.
func NewAt(t time.Time) ID { return defaultGenerator().NewAt(t) }

// Parse validates s as a ULID.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalid
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return Zero, ErrInvalid
	}
	return ID(s), nil
}

func (id ID) IsZero() bool   { return id == Zero }
func (id ID) String() string { return string(id) }

// Time is the millisecond timestamp embedded in id, zero for invalid IDs.
func (id ID) Time() time.Time {
	u, err := ulid.ParseStrict(id.String())
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time()).UTC()
}

// Compare orders IDs, which for valid ones is creation order.
func Compare(a, b ID) int {
	return strings.Compare(string(a), string(b))
}

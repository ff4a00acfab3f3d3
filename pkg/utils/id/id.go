// Package id 生成会话与请求 ID。ID 为 26 位 ULID，按生成时间字典序递增。
package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces unique identifiers.
type Generator interface {
	Generate() string
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() string

func (f GeneratorFunc) Generate() string { return f() }

// ULIDGenerator is safe for concurrent use. IDs from one generator are
// strictly increasing, even within the same millisecond.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	v := ulid.MustNew(ulid.Now(), g.entropy)
	g.mu.Unlock()
	return v.String()
}

var shared = sync.OnceValue(NewULIDGenerator)

// NewULID draws from a process-wide generator.
func NewULID() string { return shared().Generate() }

// IsULID reports whether s is a well-formed ULID.
func IsULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Time returns the creation time encoded in a ULID.
func Time(s string) (time.Time, error) {
	v, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(v.Time()), nil
}

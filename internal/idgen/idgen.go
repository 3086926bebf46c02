// Package idgen generates tweet identities. The store asks for one id per
// tweet before inserting its placeholder row.
package idgen

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Generator generates unique identifiers.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate() (uuid.UUID, error)
}

// Func adapts a plain function to Generator.
type Func func() (uuid.UUID, error)

func (f Func) Generate() (uuid.UUID, error) { return f() }

type v7Gen struct {
	maxRetries int
	rand       io.Reader
}

// Option configures the generator returned by NewV7.
type Option func(*v7Gen)

// WithRetries sets how many times a failed generation is retried.
// Negative values are ignored.
func WithRetries(n int) Option {
	return func(g *v7Gen) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// WithRand sets the source of the random bits. It defaults to crypto/rand.
func WithRand(r io.Reader) Option {
	return func(g *v7Gen) {
		if r != nil {
			g.rand = r
		}
	}
}

// NewV7 returns a Generator of UUID v7 values. They sort by creation time,
// which keeps tweet ids in publication order on ties.
func NewV7(opts ...Option) Generator {
	g := &v7Gen{maxRetries: 1, rand: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *v7Gen) Generate() (uuid.UUID, error) {
	var last error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		id, err := uuid.NewV7FromReader(g.rand)
		if err == nil {
			return id, nil
		}
		last = err
	}
	return uuid.Nil, fmt.Errorf("generate tweet id: %d attempts failed: %w", g.maxRetries+1, last)
}

package metrics

import (
	"context"
	"errors"
)

// Incrementer is anything that counts by name.
type Incrementer interface {
	Increment(ctx context.Context, name string) error
}

// Multi fans one increment out to several counters.
type Multi []Incrementer

// Increment calls every counter, even after one fails, and joins the errors.
func (m Multi) Increment(ctx context.Context, name string) error {
	var errs []error
	for _, c := range m {
		if err := c.Increment(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

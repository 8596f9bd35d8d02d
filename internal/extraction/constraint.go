package extraction

import (
	"fmt"
)

// CollectionConstraint bounds the length of a collection and, optionally,
// requires every element to carry the same discriminator value. It replaces
// generating a schema type per request: builders create constraints from
// the request and close over them.
type CollectionConstraint struct {
	Field         string
	Min           int
	Max           int // 0 = unbounded
	Discriminator string
}

// Exactly returns a constraint for exactly n elements
func Exactly(field string, n int) CollectionConstraint {
	return CollectionConstraint{Field: field, Min: n, Max: n}
}

// WithDiscriminator returns a copy requiring every element to match value
func (c CollectionConstraint) WithDiscriminator(value string) CollectionConstraint {
	c.Discriminator = value
	return c
}

// ConstrainCollection checks items against c. discriminate may be nil when
// the constraint has no discriminator.
func ConstrainCollection[T any](items []T, c CollectionConstraint, discriminate func(T) string) error {
	n := len(items)
	if n < c.Min {
		return fmt.Errorf("%s has %d items, at least %d required", c.Field, n, c.Min)
	}
	if c.Max > 0 && n > c.Max {
		return fmt.Errorf("%s has %d items, at most %d allowed", c.Field, n, c.Max)
	}
	if c.Discriminator == "" {
		return nil
	}
	if discriminate == nil {
		return fmt.Errorf("%s requires discriminator %q but no discriminator func was given", c.Field, c.Discriminator)
	}
	for i, item := range items {
		if got := discriminate(item); got != c.Discriminator {
			return fmt.Errorf("%s[%d] is %q, expected %q", c.Field, i, got, c.Discriminator)
		}
	}
	return nil
}

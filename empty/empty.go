// Package empty provides the zero-size unit type used as the payload of
// untyped sequencers.
package empty

// T is the unit type. It occupies no memory and every value equals every other.
//
//	var unit empty.T
//	seq := dispatch.NewSequencer(phases) // a dispatch.Machine[empty.T]
type T struct{}

// V is the single value of T.
var V = T{}

// Value returns the zero value of any type, which is handy in generic code
// that must return "nothing" alongside an error.
func Value[A any]() A {
	var zero A

	return zero
}

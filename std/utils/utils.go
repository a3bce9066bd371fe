// Package utils collects small generic helpers that don't warrant their
// own package; dhcp6's Trickle timer uses Clamp.
package utils

import "golang.org/x/exp/constraints"

// IdPtr is the pointer version of id: 'a->'a
func IdPtr[T any](value T) *T {
	return &value
}

// If is the ternary operator (eager evaluation)
func If[T any](cond bool, t, f T) T {
	if cond {
		return t
	}
	return f
}

// Clamp restricts v to [lo, hi], used by the Trickle timer's
// doubling interval.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

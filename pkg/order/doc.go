// Package order defines the immutable build-order value and its
// Pending -> Assigned -> Completed lifecycle. Transitions are pure: each
// returns a new Order, and invalid transitions return an OrderError.
package order

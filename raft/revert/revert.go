// Package revert provides a small helper for unwinding partially
// completed setup, reconstructed from the teacher's lxd/revert package
// (only its example test survived retrieval; the contract below is
// built to satisfy it exactly). No other package in this module
// currently uses it.
package revert

// Reverter accumulates a sequence of undo steps and runs them in
// reverse order on Fail, or discards them on Success.
type Reverter struct {
	fns []func()
}

// New returns an empty Reverter.
func New() *Reverter {
	return &Reverter{}
}

// Add appends an undo step, to be run (in reverse order relative to
// other added steps) if Fail is called before Success.
func (r *Reverter) Add(fn func()) {
	r.fns = append(r.fns, fn)
}

// Fail runs every added step in reverse order, then discards them.
// Calling Fail after Success is a no-op, so it is safe to defer Fail
// unconditionally and call Success explicitly on the happy path.
func (r *Reverter) Fail() {
	for i := len(r.fns) - 1; i >= 0; i-- {
		r.fns[i]()
	}

	r.fns = nil
}

// Success discards the added steps without running them.
func (r *Reverter) Success() {
	r.fns = nil
}

package repo

import "errors"

// ErrNotFound is returned when a lookup matches no row. Callers must treat it
// as a normal outcome, distinct from infrastructure failures which are
// returned wrapped.
var ErrNotFound = errors.New("not found")

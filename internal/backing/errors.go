package backing

import "fmt"

// ConnectivityError wraps a transport or auth failure reaching the store.
type ConnectivityError struct {
	Op    string
	Table string
	Err   error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("backing store unreachable: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// SchemaError reports that a required table or column is missing or
// inaccessible. Raised by the construction-time probe and always fatal.
type SchemaError struct {
	Table string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("backing store schema: table %q inaccessible: %v", e.Table, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// WriteAffectedZeroError reports a write that round-tripped successfully but
// touched no rows. A narrower failure than a transport error: it signals a
// key or identity mismatch rather than an unreachable store.
type WriteAffectedZeroError struct {
	Table string
	Op    string
	Key   string
}

func (e *WriteAffectedZeroError) Error() string {
	return fmt.Sprintf("%s on %s affected zero rows (key %q)", e.Op, e.Table, e.Key)
}

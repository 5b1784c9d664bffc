package frame

// Status is the state of a contextual read.
type Status uint8

const (
	Resolved Status = iota
	Deferred
	Failed
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Deferred:
		return "deferred"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Result is the outcome of a contextual read.
type Result[T any] struct {
	Status Status
	Value  T
	Err    error
}

// Resolve wraps a known value.
func Resolve[T any](v T) Result[T] {
	return Result[T]{Status: Resolved, Value: v}
}

// Defer marks a value that cannot be known in the current pass.
func Defer[T any]() Result[T] {
	return Result[T]{Status: Deferred}
}

// Fail wraps a genuine error.
func Fail[T any](err error) Result[T] {
	return Result[T]{Status: Failed, Err: err}
}

// Map transforms a resolved value and carries Deferred and Failed through.
func Map[T, U any](r Result[T], fn func(T) (U, error)) Result[U] {
	switch r.Status {
	case Deferred:
		return Defer[U]()
	case Failed:
		return Fail[U](r.Err)
	}
	v, err := fn(r.Value)
	if err != nil {
		return Fail[U](err)
	}
	return Resolve(v)
}

package render

import "fmt"

// Kind classifies the errors Render can return.
type Kind string

const (
	// KindSurfaceAllocation means no drawing surface could be created.
	KindSurfaceAllocation Kind = "SURFACE_ALLOCATION"
	// KindInvalidInput means the entries and RenderConfig disagree or are
	// out of range.
	KindInvalidInput Kind = "INVALID_INPUT"
	// KindEncode means the finished surface could not be serialized.
	KindEncode Kind = "ENCODE"
)

// Sentinels for errors.Is.
var (
	ErrSurfaceAllocation = &Error{Kind: KindSurfaceAllocation}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrEncode            = &Error{Kind: KindEncode}
)

// Error is the only error type that escapes Render.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("render: %s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("render: %s: %v", e.Kind, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("render: %s: %s", e.Kind, e.Msg)
	default:
		return fmt.Sprintf("render: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the package sentinels work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

package ops

import "github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"

// Error pairs a POSIX errno with the underlying Go error that produced
// it, so handlers can both log a cause and answer the client with the
// matching wire errno.
type Error struct {
	Errno wire.Errno
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Errno.String() + ": " + e.Err.Error()
	}
	return e.Errno.String()
}

func (e *Error) Unwrap() error { return e.Err }

// errno builds an *Error with no underlying cause.
func errno(code wire.Errno) *Error { return &Error{Errno: code} }

// wrap builds an *Error from an underlying Go error.
func wrap(code wire.Errno, err error) *Error { return &Error{Errno: code, Err: err} }

// split reports the (result, errno) pair the wire response carries for
// err, which may be nil, an *Error, or a plain error (mapped to EIO).
func split(err error) (int32, wire.Errno) {
	if err == nil {
		return 0, wire.EOK
	}
	var opsErr *Error
	if e, ok := err.(*Error); ok {
		opsErr = e
	} else {
		opsErr = wrap(wire.EIO, err)
	}
	return -1, opsErr.Errno
}

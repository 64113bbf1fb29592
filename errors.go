package validity

import "errors"

// ErrInvalidArgument is returned when a required argument is missing,
// such as a nil source or a nil handler.
var ErrInvalidArgument = errors.New("validity: invalid argument")

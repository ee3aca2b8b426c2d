package images

import "fmt"

// DecodeError reports that a source image could not be read or decoded.
// Processing of that one file stops; nothing partial is returned.
type DecodeError struct {
	// Filename is the file (or label) the bytes came from.
	Filename string
	// Err is the underlying read or decode failure.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Filename, e.Err)
}

// Unwrap returns the underlying failure.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ResourceError reports that a letterbox canvas could not be allocated.
type ResourceError struct {
	// Width and Height are the requested canvas dimensions, when they could be computed.
	Width, Height int
	// Err describes why the allocation was refused or failed.
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("allocate %dx%d canvas: %v", e.Width, e.Height, e.Err)
}

// Unwrap returns the underlying failure.
func (e *ResourceError) Unwrap() error {
	return e.Err
}

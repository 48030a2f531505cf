package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad matches every *LoadError
	ErrLoad = errors.New("load failed")
	// ErrUnsupportedFormat is returned when neither name nor content type identifies a format
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// LoadError is a terminal failure of one load attempt
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrLoad) match any LoadError
func (e *LoadError) Is(target error) bool {
	return target == ErrLoad
}

// Remote reports whether the failed source was fetched over HTTP
func (e *LoadError) Remote() bool {
	return IsURL(e.Source)
}

func fail(source string, err error) error {
	return &LoadError{Source: source, Err: err}
}

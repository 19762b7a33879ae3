package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

// StreamError is a pipeline spawn or I/O failure.
type StreamError struct {
	Stage string // fetch, transcode
	Err   error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// isBrokenPipe reports errors caused by the other end of a pipe going away.
func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed)
}

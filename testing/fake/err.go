package fake

import "golang.org/x/xerrors"

var fakeErr = xerrors.New("fake error")

// GetError returns the error used by the fakes.
func GetError() error {
	return fakeErr
}

// Err returns the message of a failure wrapping the fake error.
func Err(msg string) string {
	return msg + ": " + fakeErr.Error()
}

// Package fake provides the doubles used by the tests of the module: loggers
// that can be inspected, a fake Stacks node and common errors.
package fake

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// WaitLog returns a logger and a wait function. The function blocks until the
// message is printed, or fails the test after the timeout.
func WaitLog(msg string, timeout time.Duration) (zerolog.Logger, func(t *testing.T)) {
	reader, writer := io.Pipe()
	done := make(chan struct{})
	found := false

	buffer := new(bytes.Buffer)
	tee := io.TeeReader(reader, buffer)

	go func() {
		select {
		case <-done:
		case <-time.After(timeout):
			writer.Close()
		}
	}()

	go func() {
		defer close(done)

		var seen strings.Builder
		data := make([]byte, 1024)

		for {
			n, err := tee.Read(data)
			if err != nil {
				return
			}

			seen.Write(data[:n])

			if strings.Contains(seen.String(), quote(msg)) {
				found = true
				// Keep draining so that the writers never block.
				go io.Copy(io.Discard, reader)
				return
			}
		}
	}()

	wait := func(t *testing.T) {
		<-done
		if !found {
			t.Fatalf("log %q not found in %s", msg, buffer.String())
		}
	}

	return zerolog.New(writer), wait
}

// CheckLog returns a logger and a check function. When called, the function
// verifies that the logger has printed the message.
func CheckLog(msg string) (zerolog.Logger, func(t *testing.T)) {
	buffer := &syncBuffer{}

	check := func(t *testing.T) {
		require.Contains(t, buffer.String(), quote(msg))
	}

	return zerolog.New(buffer), check
}

// CheckNoLog is the opposite of CheckLog and verifies that the message has
// never been printed.
func CheckNoLog(msg string) (zerolog.Logger, func(t *testing.T)) {
	buffer := &syncBuffer{}

	check := func(t *testing.T) {
		require.NotContains(t, buffer.String(), quote(msg))
	}

	return zerolog.New(buffer), check
}

func quote(msg string) string {
	return fmt.Sprintf(`"%s"`, msg)
}

// syncBuffer is a buffer that can be written by several goroutines.
type syncBuffer struct {
	sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.Lock()
	defer b.Unlock()

	return b.buf.String()
}

package dbtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

const (
	QueryTimeout        = 10 * time.Second
	NotificationTimeout = 100 * time.Millisecond
	GraceWindow         = 50 * time.Millisecond
)

// Session is the state shared by all test modules of one run: the
// connection, the notification queue and the done flag.
type Session struct {
	conn   Conn
	queue  queue
	out    io.Writer
	logger *slog.Logger

	mu     sync.Mutex
	done   bool
	closed bool
	cbErr  error
}

// NewSession creates a session that writes diagnostics to out.
func NewSession(out io.Writer, logger *slog.Logger) *Session {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{out: out, logger: logger}
}

// Handlers returns the callbacks to register on the session's connection.
func (s *Session) Handlers() Handlers {
	return Handlers{
		OnNotification: s.onNotification,
		OnNotice:       s.onNotice,
		OnClose:        s.onClose,
	}
}

// Attach binds the session to conn, which must have been dialed with
// s.Handlers().
func (s *Session) Attach(conn Conn) {
	s.conn = conn
}

// Close marks the session as done and closes the connection. Only the
// first call closes.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.done = true
	s.closed = true
	s.mu.Unlock()

	if closed || s.conn == nil {
		return nil
	}
	return s.conn.Close(ctx)
}

// Done reports whether the session was shut down on purpose.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns the first failure raised inside a connection callback.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cbErr
}

// Out is where the session writes its user-visible output.
func (s *Session) Out() io.Writer { return s.out }

// fail prints the test error line and returns it.
func (s *Session) fail(typ, format string, args ...any) error {
	err := &TestError{Type: typ, Message: fmt.Sprintf(format, args...)}
	fmt.Fprintf(s.out, "%stest error%s %s\n", red, normal, err.Message)
	return err
}

// record keeps the first callback failure; the next harness call returns it.
func (s *Session) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cbErr == nil {
		s.cbErr = err
	}
}

// fromOwnConnection checks that a callback fired for the session's connection.
func (s *Session) fromOwnConnection(source any, callback string) bool {
	if equal(IdenticalTo(s.conn), source) {
		return true
	}
	s.record(s.fail("callback", "%s callback fired for connection %v, expected %v", callback, source, s.conn))
	return false
}

// Expect checks that actual equals expected and returns actual.
// If both are ordered sequences, the first differing index is reported.
func (s *Session) Expect(actual, expected any) (any, error) {
	if msg := mismatch(actual, expected); msg != "" {
		return actual, s.fail("expect", "%s", msg)
	}
	return actual, nil
}

func mismatch(actual, expected any) string {
	if equal(expected, actual) {
		return ""
	}

	exp, eok := sequence(expected)
	act, aok := sequence(actual)
	if eok && aok {
		for i := 0; i < len(exp) && i < len(act); i++ {
			if !equal(exp[i], act[i]) {
				return fmt.Sprintf("when comparing index %d, expected %s, but got %s", i, repr(exp[i]), repr(act[i]))
			}
		}
		return fmt.Sprintf("expected %d items %s, but got %d items %s", len(exp), repr(expected), len(act), repr(actual))
	}

	return fmt.Sprintf("expected %s, but got %s", repr(expected), repr(actual))
}

// ExpectRandom checks that every expected item is found in actual, in any
// order. Each expected item claims one position in actual, so duplicated
// expected values need duplicated actual values.
func (s *Session) ExpectRandom(actual, expected any) error {
	act, ok := sequence(actual)
	if !ok {
		return s.fail("expect_random", "expected a sequence, but got %s", repr(actual))
	}
	exp, ok := sequence(expected)
	if !ok {
		return s.fail("expect_random", "expected items must be a sequence, got %s", repr(expected))
	}

	claimed := make([]bool, len(act))
	for _, want := range exp {
		found, alreadyClaimed := false, false
		for i, got := range act {
			if !equal(want, got) {
				continue
			}
			if claimed[i] {
				alreadyClaimed = true
				continue
			}
			claimed[i] = true
			found = true
			break
		}

		if found {
			continue
		}
		if alreadyClaimed {
			return s.fail("expect_random",
				"could not find another instance of %s in %s: every match is taken by an earlier expected item",
				repr(want), repr(actual))
		}
		return s.fail("expect_random", "could not find expected %s in %s", repr(want), repr(actual))
	}
	return nil
}

package dbtest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Listen subscribes the connection to channel. Notifications on it end up
// in the session's queue.
func (s *Session) Listen(ctx context.Context, channel string) error {
	if err := s.Err(); err != nil {
		return err
	}
	return s.conn.Listen(ctx, channel)
}

// Unlisten stops delivery for channel.
func (s *Session) Unlisten(ctx context.Context, channel string) error {
	if err := s.Err(); err != nil {
		return err
	}
	return s.conn.Unlisten(ctx, channel)
}

func (s *Session) onNotification(source any, pid uint32, channel, payload string) {
	if !s.fromOwnConnection(source, "notification") {
		return
	}

	var decoded any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		fmt.Fprintf(s.out, "notification on %q: invalid json: %q\n", channel, payload)
		s.record(fmt.Errorf("notification on %q from pid %d: invalid json payload: %w", channel, pid, err))
		return
	}

	s.logger.Info("notification", "channel", channel, "pid", pid, "payload", payload)
	s.queue.Push(Notification{Channel: channel, Payload: decoded})
}

func (s *Session) onNotice(source any, message string) {
	if s.conn == nil || !s.fromOwnConnection(source, "log") {
		return
	}
	s.logger.Info("psql log message", "pid", s.conn.PID(), "message", message)
}

func (s *Session) onClose(source any) {
	if !s.fromOwnConnection(source, "termination") {
		return
	}
	if !s.Done() {
		s.record(s.fail("connection", "psql connection closed unexpectedly"))
	}
}

// NotificationCount returns how many notifications are waiting.
func (s *Session) NotificationCount() int {
	return s.queue.Len()
}

// GetNotification returns the next notification, waiting up to
// NotificationTimeout. With ensureSingle, nothing else may arrive within
// the grace window.
func (s *Session) GetNotification(ctx context.Context, ensureSingle bool) (Notification, error) {
	ok, err := s.await(ctx, 1)
	if err != nil {
		return Notification{}, err
	}
	if !ok {
		return Notification{}, s.fail("notification", "expected a notification but did not receive it")
	}

	got, _ := s.queue.Take(1)
	if ensureSingle {
		if err := s.expectNone(ctx, GraceWindow, got); err != nil {
			return got[0], err
		}
	}
	return got[0], nil
}

// GetNotifications returns exactly count notifications. Each must arrive
// within NotificationTimeout of the previous one, and no further
// notification may follow within the grace window. The queue is left
// untouched when fewer than count arrive.
func (s *Session) GetNotifications(ctx context.Context, count int) ([]Notification, error) {
	if count < 0 {
		return nil, s.fail("notification", "cannot wait for %d notifications", count)
	}
	ok, err := s.await(ctx, count)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.fail("notification", "expected %d notifications, but only %d arrived within %s of each other",
			count, s.queue.Len(), NotificationTimeout)
	}

	got, _ := s.queue.Take(count)
	if err := s.expectNone(ctx, GraceWindow, got); err != nil {
		return got, err
	}
	return got, nil
}

// ExpectNoNotification lets in-flight notifications arrive for wait, then
// fails listing everything that is queued.
func (s *Session) ExpectNoNotification(ctx context.Context, wait time.Duration) error {
	return s.expectNone(ctx, wait, nil)
}

func (s *Session) expectNone(ctx context.Context, wait time.Duration, received []Notification) error {
	if err := s.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(wait)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := s.pump(ctx, remaining); err != nil {
			return err
		}
	}

	extra := s.queue.Drain()
	if len(extra) == 0 {
		return nil
	}

	lines := make([]string, len(extra))
	for i, n := range extra {
		lines[i] = n.String()
	}
	if len(received) > 0 {
		return s.fail("notification", "expected only %d notification(s), but after %s got:\n%s",
			len(received), received[len(received)-1], strings.Join(lines, "\n"))
	}
	return s.fail("notification", "expected no further notifications, but got:\n%s", strings.Join(lines, "\n"))
}

// await pumps the connection until count notifications are queued. The
// deadline restarts whenever a notification arrives.
func (s *Session) await(ctx context.Context, count int) (bool, error) {
	if err := s.Err(); err != nil {
		return false, err
	}

	deadline := time.Now().Add(NotificationTimeout)
	for s.queue.Len() < count {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}

		before := s.queue.Len()
		if err := s.pump(ctx, remaining); err != nil {
			return false, err
		}
		if s.queue.Len() > before {
			deadline = time.Now().Add(NotificationTimeout)
		}
	}
	return true, nil
}

// pump reads from the connection for at most d so that pushes reach the
// notification callback.
func (s *Session) pump(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	if err := s.conn.WaitForNotification(wctx); err != nil {
		return fmt.Errorf("waiting for notifications: %w", err)
	}
	if err := s.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

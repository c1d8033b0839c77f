//go:build linux

package notify

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsDest  = "org.freedesktop.Notifications"
	notificationsPath  = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsCall  = "org.freedesktop.Notifications.Notify"
	defaultExpireMilli = int32(-1)
)

// dbusSink posts to the freedesktop notification service on the
// session bus.
type dbusSink struct {
	conn *dbus.Conn
}

// Desktop returns the freedesktop notification sink.
func Desktop() (Sink, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus unavailable: %w", err)
	}
	return &dbusSink{conn: conn}, nil
}

// Send implements Sink.
func (s *dbusSink) Send(ctx context.Context, msg Message) error {
	obj := s.conn.Object(notificationsDest, notificationsPath)
	call := obj.CallWithContext(ctx, notificationsCall, 0,
		AppName,
		uint32(0),
		"",
		msg.Title,
		msg.Body,
		[]string{},
		map[string]dbus.Variant{},
		defaultExpireMilli,
	)
	if call.Err != nil {
		return fmt.Errorf("notify call failed: %w", call.Err)
	}
	return nil
}

//go:build darwin

package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// osascriptSink posts through Notification Center via osascript.
type osascriptSink struct {
	path string
}

// Desktop returns the Notification Center sink.
func Desktop() (Sink, error) {
	path, err := exec.LookPath("osascript")
	if err != nil {
		return nil, fmt.Errorf("osascript not found: %w", err)
	}
	return &osascriptSink{path: path}, nil
}

// Send implements Sink.
func (s *osascriptSink) Send(ctx context.Context, msg Message) error {
	out, err := exec.CommandContext(ctx, s.path, "-e", appleScript(msg)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("osascript failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func appleScript(msg Message) string {
	return fmt.Sprintf("display notification %s with title %s", quoteAppleScript(msg.Body), quoteAppleScript(msg.Title))
}

func quoteAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

//go:build unix

package ipc

import (
	"strings"
	"testing"
)

func TestValidateSocketPath_Limit(t *testing.T) {
	limit := socketPathLimit - 1
	if limit <= 0 {
		t.Fatalf("invalid socket path limit: %d", limit)
	}

	validPath := "/" + strings.Repeat("a", limit-1)
	if err := validateSocketPath(validPath); err != nil {
		t.Fatalf("validateSocketPath() error: %v", err)
	}

	invalidPath := "/" + strings.Repeat("a", limit)
	if err := validateSocketPath(invalidPath); err == nil {
		t.Fatalf("validateSocketPath() expected error for long path")
	}
}

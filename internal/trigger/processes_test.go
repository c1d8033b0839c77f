//go:build linux

package trigger

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func TestRunningProcessesKeepsLongNames(t *testing.T) {
	src, err := os.ReadFile("/bin/sleep")
	if err != nil {
		t.Skipf("no /bin/sleep: %v", err)
	}
	const name = "zoom-meeting-client"
	bin := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(bin, src, 0o755); err != nil {
		t.Fatal(err)
	}

	cmd := exec.Command(bin, "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start %s: %v", name, err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		running, err := RunningProcesses()
		if err != nil {
			t.Fatalf("RunningProcesses: %v", err)
		}
		if running.Has(name) {
			if _, ok := Match(running, []Rule{{Key: name, Label: "Zoom", Enabled: true}}, true); !ok {
				t.Fatal("rule keyed by the full name should match")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%q not listed; truncated key present = %v", name, running.Has(name[:15]))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

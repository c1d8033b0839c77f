//go:build darwin

package keepawake

import (
	"bufio"
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// pmsetTimeout bounds one `pmset -g batt` call.
const pmsetTimeout = 3 * time.Second

var (
	drawingFromRe = regexp.MustCompile(`drawing from '([^']+)'`)
	cellPercentRe = regexp.MustCompile(`\t(\d{1,3})%;`)
)

type pmsetPowerProvider struct {
	run func(ctx context.Context) ([]byte, error)
}

// NewDefaultPowerProvider returns a provider backed by `pmset -g batt`.
func NewDefaultPowerProvider() PowerProvider {
	return &pmsetPowerProvider{run: func(ctx context.Context) ([]byte, error) {
		return exec.CommandContext(ctx, "pmset", "-g", "batt").Output()
	}}
}

func (p *pmsetPowerProvider) Snapshot() PowerSnapshot {
	ctx, cancel := context.WithTimeout(context.Background(), pmsetTimeout)
	defer cancel()
	out, err := p.run(ctx)
	if err != nil {
		return PowerSnapshot{}
	}
	return readPmsetBatt(string(out))
}

// readPmsetBatt reads the power source header and the first internal
// battery line. Fields that cannot be read stay nil.
func readPmsetBatt(output string) PowerSnapshot {
	var snap PowerSnapshot
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := sc.Text()
		if m := drawingFromRe.FindStringSubmatch(line); m != nil && snap.OnBattery == nil {
			onBattery := m[1] == "Battery Power"
			external := !onBattery
			snap.OnBattery = &onBattery
			snap.ExternalPower = &external
			continue
		}
		if !strings.Contains(line, "InternalBattery") || snap.BatteryPercent != nil {
			continue
		}
		if m := cellPercentRe.FindStringSubmatch(line); m != nil {
			if pct, err := strconv.Atoi(m[1]); err == nil && pct <= 100 {
				snap.BatteryPercent = &pct
			}
		}
	}
	return snap
}

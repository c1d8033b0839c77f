package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/awake/host/internal/config"
	hostErrors "github.com/awake/host/internal/errors"
	"github.com/awake/host/internal/ipc"
	"github.com/awake/host/internal/keepawake"
)

// clientFlags are shared by every command that talks to the daemon.
type clientFlags struct {
	Config string
	Socket string
	JSON   bool
}

func (f *clientFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.Config, "config", "", "Path to config file used to find the socket")
	fs.StringVar(&f.Socket, "socket", "", "Control socket path (default: from config, else ~/.awake/awake.sock)")
	fs.BoolVar(&f.JSON, "json", false, "Output in JSON format")
}

// socketPath resolves --socket, then the config file, then the default.
func (f *clientFlags) socketPath() (string, error) {
	if f.Socket != "" {
		return f.Socket, nil
	}
	cfg, err := config.Load(f.Config)
	if err != nil {
		return "", err
	}
	if cfg.Socket != "" {
		return cfg.Socket, nil
	}
	return config.DefaultSocketPath()
}

// Testability seam.
var newControlClient = func(path string) *ipc.Client {
	return ipc.NewClient(path)
}

// parseClientFlags parses args and returns a connected client. ok is
// false when the command should exit with code.
func parseClientFlags(name string, fs *pflag.FlagSet, flags *clientFlags, args []string, stderr io.Writer) (client *ipc.Client, code int, ok bool) {
	flags.register(fs)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: awake %s [options]\n\nOptions:\n", name)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, 0, false
		}
		return nil, 1, false
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected argument %q\n", fs.Arg(0))
		return nil, 1, false
	}
	path, err := flags.socketPath()
	if err != nil {
		printError(stderr, err)
		return nil, 1, false
	}
	return newControlClient(path), 0, true
}

func runStatus(args []string, stdout, stderr io.Writer) int {
	var flags clientFlags
	client, code, ok := parseClientFlags("status", pflag.NewFlagSet("status", pflag.ContinueOnError), &flags, args, stderr)
	if !ok {
		return code
	}

	ctx, cancel := context.WithTimeout(context.Background(), ipc.DefaultClientTimeout)
	defer cancel()
	status, err := client.Status(ctx)
	if err != nil {
		printError(stderr, err)
		return 1
	}

	if flags.JSON {
		writeJSON(stdout, status)
		return 0
	}
	printStatus(stdout, status)
	return 0
}

func runOn(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("on", pflag.ContinueOnError)
	var duration string
	var allowDisplaySleep bool
	fs.StringVarP(&duration, "duration", "d", "", "Session length such as 45m or 2h; 0 = indefinite (default: config default_duration)")
	fs.BoolVar(&allowDisplaySleep, "allow-display-sleep", false, "Keep only the system awake and let the display sleep")

	var flags clientFlags
	client, code, ok := parseClientFlags("on", fs, &flags, args, stderr)
	if !ok {
		return code
	}

	req := ipc.ActivateRequest{}
	if fs.Changed("duration") {
		d, err := config.ParseSessionDuration(duration)
		if err != nil {
			fmt.Fprintf(stderr, "Error: invalid --duration: %v\n", err)
			return 1
		}
		req.Duration = d.String()
	}
	if fs.Changed("allow-display-sleep") {
		req.AllowDisplaySleep = &allowDisplaySleep
	}

	ctx, cancel := context.WithTimeout(context.Background(), ipc.DefaultClientTimeout)
	defer cancel()
	resp, err := client.Activate(ctx, req)
	if err != nil {
		printError(stderr, err)
		return 1
	}
	return printChange(stdout, flags.JSON, resp)
}

func runOff(args []string, stdout, stderr io.Writer) int {
	var flags clientFlags
	client, code, ok := parseClientFlags("off", pflag.NewFlagSet("off", pflag.ContinueOnError), &flags, args, stderr)
	if !ok {
		return code
	}

	ctx, cancel := context.WithTimeout(context.Background(), ipc.DefaultClientTimeout)
	defer cancel()
	resp, err := client.Deactivate(ctx)
	if err != nil {
		printError(stderr, err)
		return 1
	}
	return printChange(stdout, flags.JSON, resp)
}

func runToggle(args []string, stdout, stderr io.Writer) int {
	var flags clientFlags
	client, code, ok := parseClientFlags("toggle", pflag.NewFlagSet("toggle", pflag.ContinueOnError), &flags, args, stderr)
	if !ok {
		return code
	}

	ctx, cancel := context.WithTimeout(context.Background(), ipc.DefaultClientTimeout)
	defer cancel()
	resp, err := client.Toggle(ctx)
	if err != nil {
		printError(stderr, err)
		return 1
	}
	return printChange(stdout, flags.JSON, resp)
}

func runWatch(args []string, stdout, stderr io.Writer) int {
	var flags clientFlags
	client, code, ok := parseClientFlags("watch", pflag.NewFlagSet("watch", pflag.ContinueOnError), &flags, args, stderr)
	if !ok {
		return code
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := client.Watch(ctx, func(st keepawake.State) error {
		if flags.JSON {
			data, err := json.Marshal(st)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, string(data))
			return nil
		}
		fmt.Fprintf(stdout, "%s  %s\n", st.UpdatedAt.Local().Format(time.TimeOnly), describeState(st, time.Now()))
		return nil
	})
	if err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

func printChange(w io.Writer, asJSON bool, resp *ipc.ChangeResponse) int {
	if asJSON {
		writeJSON(w, resp)
		return 0
	}
	if !resp.Changed {
		fmt.Fprintln(w, "No change: "+describeState(resp.State, time.Now()))
		return 0
	}
	fmt.Fprintln(w, describeState(resp.State, time.Now()))
	return 0
}

// describeState renders a one-line summary of st.
func describeState(st keepawake.State, now time.Time) string {
	if !st.Active {
		if st.StoppedByBattery {
			return "Inactive (stopped by battery guard)"
		}
		return "Inactive"
	}
	line := fmt.Sprintf("Active: %s, %s", st.Source, policyLabel(st.Policy))
	if st.Deadline != nil {
		line += fmt.Sprintf(", %s remaining", st.Remaining(now).Round(time.Second))
	} else {
		line += ", indefinite"
	}
	return line
}

func policyLabel(p keepawake.DisplaySleepPolicy) string {
	if p == keepawake.PolicySystemOnly {
		return "display may sleep"
	}
	return "display stays on"
}

func printStatus(w io.Writer, status *ipc.StatusResponse) {
	st := status.State
	if st.Active {
		fmt.Fprintln(w, "State:      active")
		fmt.Fprintf(w, "Source:     %s\n", st.Source)
		fmt.Fprintf(w, "Policy:     %s\n", policyLabel(st.Policy))
		fmt.Fprintf(w, "Started:    %s\n", st.StartedAt.Local().Format(time.DateTime))
		if st.Deadline != nil {
			fmt.Fprintf(w, "Remaining:  %s\n", time.Duration(status.RemainingSeconds)*time.Second)
		} else {
			fmt.Fprintln(w, "Remaining:  indefinite")
		}
	} else {
		fmt.Fprintln(w, "State:      inactive")
		if st.StoppedByBattery {
			fmt.Fprintln(w, "Note:       last session was stopped by the battery guard")
		}
	}
	if b := status.Battery; b != nil {
		power := "on AC power"
		if b.OnBattery {
			power = "on battery"
		}
		guard := "guard off"
		if b.GuardEnabled {
			guard = fmt.Sprintf("guard at %d%%", b.ThresholdPercent)
		}
		fmt.Fprintf(w, "Battery:    %d%% (%s, %s)\n", b.Percent, power, guard)
	}
	f := status.Features
	fmt.Fprintf(w, "Automation: schedules=%s apps=%s hardware=%s shortcut=%s\n",
		onOff(f.Schedules), onOff(f.AppTriggers), onOff(f.HardwareTriggers), onOff(f.KeyboardShortcut))
	if st.LastError != "" {
		fmt.Fprintf(w, "Last error: %s\n", st.LastError)
	}
	fmt.Fprintf(w, "Daemon:     %s, up %s\n", status.Version, time.Duration(status.UptimeSeconds)*time.Second)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// printError prints a coded error and its recovery hint.
func printError(w io.Writer, err error) {
	code, message := hostErrors.ToCodeAndMessage(err)
	fmt.Fprintf(w, "Error: %s\n", message)
	if next := hostErrors.GetNextAction(code); next != "" {
		fmt.Fprintf(w, "Next: %s\n", next)
	}
}

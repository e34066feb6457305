package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/guiagent-mcp/internal/executor"
)

func testRoot() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{stdout: io.Discard, stderr: io.Discard}
	return newRootCmd(opts), opts
}

func findCommand(t *testing.T, root *cobra.Command, name string) *cobra.Command {
	t.Helper()
	for _, c := range root.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func TestRootRegistersSubcommands(t *testing.T) {
	root, _ := testRoot()

	want := []string{"execute", "continue", "tap", "status", "devices", "sessions", "providers", "serve"}
	for _, name := range want {
		if findCommand(t, root, name) == nil {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestCommandAliases(t *testing.T) {
	root, _ := testRoot()

	tests := []struct {
		command string
		alias   string
	}{
		{command: "execute", alias: "exec"},
		{command: "execute", alias: "run"},
		{command: "continue", alias: "cont"},
		{command: "tap", alias: "click"},
	}
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.alias, func(t *testing.T) {
			cmd := findCommand(t, root, tt.command)
			if cmd == nil {
				t.Fatalf("command %q not registered", tt.command)
			}
			if !cmd.HasAlias(tt.alias) {
				t.Errorf("command %q missing alias %q", tt.command, tt.alias)
			}
		})
	}
}

func TestFlagSurface(t *testing.T) {
	root, _ := testRoot()

	tests := []struct {
		command   string
		flag      string
		shorthand string
		defValue  string
	}{
		{"execute", "task", "t", ""},
		{"execute", "provider", "p", ""},
		{"execute", "device-id", "d", ""},
		{"execute", "max-steps", "m", "0"},
		{"execute", "timeout-sec", "", "0"},
		{"execute", "stateless", "", "false"},
		{"execute", "extra-info", "e", ""},
		{"continue", "session-id", "s", ""},
		{"continue", "reply", "r", ""},
		{"continue", "task", "t", ""},
		{"continue", "max-steps", "m", "0"},
		{"tap", "x", "", "0"},
		{"tap", "y", "", "0"},
		{"tap", "coord-space", "", "auto"},
		{"tap", "post-delay-ms", "", "350"},
		{"tap", "timeout-sec", "", "0"},
		{"status", "device-id", "d", ""},
		{"sessions", "device-id", "d", ""},
		{"serve", "http", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			cmd := findCommand(t, root, tt.command)
			if cmd == nil {
				t.Fatalf("command %q not registered", tt.command)
			}
			f := cmd.Flags().Lookup(tt.flag)
			if f == nil {
				t.Fatalf("flag --%s not registered on %s", tt.flag, tt.command)
			}
			if f.Shorthand != tt.shorthand {
				t.Errorf("shorthand = %q, want %q", f.Shorthand, tt.shorthand)
			}
			if f.DefValue != tt.defValue {
				t.Errorf("default = %q, want %q", f.DefValue, tt.defValue)
			}
		})
	}
}

func TestRequiredFlags(t *testing.T) {
	root, _ := testRoot()

	tests := []struct {
		command string
		flag    string
	}{
		{command: "execute", flag: "task"},
		{command: "tap", flag: "x"},
		{command: "tap", flag: "y"},
	}
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			cmd := findCommand(t, root, tt.command)
			if cmd == nil {
				t.Fatalf("command %q not registered", tt.command)
			}
			f := cmd.Flags().Lookup(tt.flag)
			if f == nil {
				t.Fatalf("flag --%s not registered", tt.flag)
			}
			if len(f.Annotations[cobra.BashCompOneRequiredFlag]) == 0 {
				t.Errorf("flag --%s on %s not marked required", tt.flag, tt.command)
			}
		})
	}
}

func TestPersistentFlags(t *testing.T) {
	root, _ := testRoot()

	for _, name := range []string{"config", "json", "text", "debug"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag --%s not registered", name)
		}
	}
	if f := root.PersistentFlags().Lookup("json"); f != nil && f.DefValue != "true" {
		t.Errorf("--json default = %q, want true", f.DefValue)
	}
}

func TestRejectBadBudgets(t *testing.T) {
	tests := []struct {
		name       string
		flag       string
		value      string
		wantReject bool
	}{
		{name: "explicit zero timeout", flag: "timeout-sec", value: "0", wantReject: true},
		{name: "negative timeout", flag: "timeout-sec", value: "-5", wantReject: true},
		{name: "explicit zero steps", flag: "max-steps", value: "0", wantReject: true},
		{name: "positive timeout", flag: "timeout-sec", value: "30", wantReject: false},
		{name: "untouched flags", wantReject: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "probe"}
			cmd.Flags().Int("timeout-sec", 0, "")
			cmd.Flags().Int("max-steps", 0, "")
			if tt.flag != "" {
				if err := cmd.Flags().Set(tt.flag, tt.value); err != nil {
					t.Fatalf("Set(%s, %s) error = %v", tt.flag, tt.value, err)
				}
			}

			res := rejectBadBudgets(cmd, "execute")
			if (res != nil) != tt.wantReject {
				t.Fatalf("rejectBadBudgets() = %+v, want rejection %v", res, tt.wantReject)
			}
			if res == nil {
				return
			}
			if res.Error != "invalid_input" {
				t.Errorf("Error = %q, want invalid_input", res.Error)
			}
			if !strings.Contains(res.Message, "--"+tt.flag) {
				t.Errorf("Message = %q, want the flag named", res.Message)
			}
		})
	}
}

func TestInterruptedResultKeepsPids(t *testing.T) {
	res := interruptedResult(&executor.Result{
		Operation:              "execute",
		Error:                  "timeout",
		TerminatedSubprocesses: []int{4242},
	})

	if res.Success {
		t.Error("Success = true, want false")
	}
	if res.Operation != "execute" {
		t.Errorf("Operation = %q, want execute", res.Operation)
	}
	if res.Error != "execution interrupted" {
		t.Errorf("Error = %q, want execution interrupted", res.Error)
	}
	if res.Message != "Execution interrupted by user; task stopped." {
		t.Errorf("Message = %q", res.Message)
	}
	if len(res.TerminatedSubprocesses) != 1 || res.TerminatedSubprocesses[0] != 4242 {
		t.Errorf("TerminatedSubprocesses = %v, want [4242]", res.TerminatedSubprocesses)
	}
}

func TestBareInvocationFailsAfterHelp(t *testing.T) {
	var out bytes.Buffer
	opts := &rootOptions{stdout: &out, stderr: &out}
	root := newRootCmd(opts)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{})

	err := root.Execute()
	if !errors.Is(err, errOperationFailed) {
		t.Fatalf("Execute() error = %v, want errOperationFailed", err)
	}
	if !strings.Contains(out.String(), "Available Commands") {
		t.Errorf("help output missing command list:\n%s", out.String())
	}
}

// TestDevicesCommandEndToEnd runs the real command path with a config
// pointing at a nonexistent adb binary: the result payload must land on
// stdout as JSON and the failure must map to the exit-code sentinel.
func TestDevicesCommandEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := fmt.Sprintf(
		"session:\n  storage_dir: %s\noutput:\n  dir: %s\ndevice:\n  adb_path: %s\n",
		filepath.Join(dir, "sessions"),
		filepath.Join(dir, "outputs"),
		filepath.Join(dir, "missing-adb"),
	)
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	opts := &rootOptions{stdout: &stdout, stderr: &stderr}
	root := newRootCmd(opts)
	root.SetOut(&stderr)
	root.SetErr(&stderr)
	root.SetArgs([]string{"devices", "--config", cfgPath})

	err := root.Execute()
	if !errors.Is(err, errOperationFailed) {
		t.Fatalf("Execute() error = %v, want errOperationFailed", err)
	}

	var res executor.Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("stdout is not a JSON result: %v\n%s", err, stdout.String())
	}
	if res.Success {
		t.Error("Success = true, want false")
	}
	if res.Operation != "devices" {
		t.Errorf("Operation = %q, want devices", res.Operation)
	}
	if res.Error != "device_call_failure" {
		t.Errorf("Error = %q, want device_call_failure", res.Error)
	}
}

func TestConstants(t *testing.T) {
	if exitOK != 0 || exitFailure != 1 {
		t.Errorf("exit codes = %d/%d, want 0/1", exitOK, exitFailure)
	}
	if exitOrphaned != 130 {
		t.Errorf("exitOrphaned = %d, want 130", exitOrphaned)
	}
	if defaultPostDelayMS != 350 {
		t.Errorf("defaultPostDelayMS = %d, want 350", defaultPostDelayMS)
	}
	if pruneInterval.Minutes() != 5 {
		t.Errorf("pruneInterval = %v, want 5 minutes", pruneInterval)
	}
}

package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/AltairaLabs/guiagent-mcp/internal/coords"
)

// ErrUnreachable indicates the device (or adb itself) could not be
// reached.
var ErrUnreachable = errors.New("device unreachable")

// Notification is one entry from the device notification shade
type Notification struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Screenshot is a captured frame plus the geometry embedded in its header.
// Size is zero when the header could not be parsed.
type Screenshot struct {
	PNG  []byte
	Size coords.Size
}

// ADB drives Android devices through the adb binary
type ADB struct {
	path   string
	runner Runner
	logger *slog.Logger
}

// NewADB creates an adb-backed device facade. path of "" means adb from
// PATH.
func NewADB(path string, runner Runner, logger *slog.Logger) *ADB {
	if path == "" {
		path = "adb"
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ADB{path: path, runner: runner, logger: logger}
}

// ListDevices returns the serials of attached devices in the ready state.
func (a *ADB) ListDevices(ctx context.Context) ([]string, error) {
	out, err := a.runner.Run(ctx, a.path, "devices")
	if err != nil {
		return nil, fmt.Errorf("%w: adb devices: %v", ErrUnreachable, err)
	}
	return parseDeviceList(string(out)), nil
}

// QueryScreenSize asks the device for its active display geometry.
func (a *ADB) QueryScreenSize(ctx context.Context, deviceID string) (coords.Size, error) {
	out, err := a.shell(ctx, deviceID, "wm", "size")
	if err != nil {
		return coords.Size{}, err
	}
	size, ok := parseWMSize(string(out))
	if !ok {
		return coords.Size{}, fmt.Errorf("%w: unparseable wm size output", ErrUnreachable)
	}
	return size, nil
}

// CaptureScreen grabs a PNG screenshot. The embedded header size is parsed
// best effort; callers fall back to QueryScreenSize when it is zero.
func (a *ADB) CaptureScreen(ctx context.Context, deviceID string) (*Screenshot, error) {
	out, err := a.runner.Run(ctx, a.path, "-s", deviceID, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, fmt.Errorf("%w: screencap: %v", ErrUnreachable, err)
	}
	shot := &Screenshot{PNG: out}
	if size, ok := PNGSize(out); ok {
		shot.Size = size
	} else {
		a.logger.Debug("screenshot header unparseable", "device", deviceID, "bytes", len(out))
	}
	return shot, nil
}

// Tap issues an input tap at the given device pixel.
func (a *ADB) Tap(ctx context.Context, deviceID string, p coords.Point) error {
	_, err := a.shell(ctx, deviceID, "input", "tap", strconv.Itoa(p.X), strconv.Itoa(p.Y))
	return err
}

// CurrentApp returns the focused package/activity token, best effort.
func (a *ADB) CurrentApp(ctx context.Context, deviceID string) (string, error) {
	out, err := a.shell(ctx, deviceID, "dumpsys", "activity", "activities")
	if err != nil {
		return "", err
	}
	if app := parseCurrentApp(string(out)); app != "" {
		return app, nil
	}
	out, err = a.shell(ctx, deviceID, "dumpsys", "window")
	if err != nil {
		return "", err
	}
	return parseCurrentApp(string(out)), nil
}

// Notifications returns the current notification shade entries.
func (a *ADB) Notifications(ctx context.Context, deviceID string) ([]Notification, error) {
	out, err := a.shell(ctx, deviceID, "dumpsys", "notification", "--noredact")
	if err != nil {
		return nil, err
	}
	return parseNotifications(string(out)), nil
}

func (a *ADB) shell(ctx context.Context, deviceID string, args ...string) ([]byte, error) {
	full := append([]string{"-s", deviceID, "shell"}, args...)
	out, err := a.runner.Run(ctx, a.path, full...)
	if err != nil {
		return nil, fmt.Errorf("%w: adb shell %s: %v", ErrUnreachable, args[0], err)
	}
	return out, nil
}

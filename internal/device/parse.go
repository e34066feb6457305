package device

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/AltairaLabs/guiagent-mcp/internal/coords"
)

var (
	// wm size reports the override size only when one is set; it reflects
	// the active geometry and wins over the physical panel size.
	overrideSizeRe = regexp.MustCompile(`Override size:\s*(\d+)x(\d+)`)
	physicalSizeRe = regexp.MustCompile(`Physical size:\s*(\d+)x(\d+)`)

	currentAppRes = []*regexp.Regexp{
		regexp.MustCompile(`topResumedActivity[^{]*\{[^}]*\s([\w.]+/[\w.$]+)`),
		regexp.MustCompile(`mResumedActivity[^{]*\{[^}]*\s([\w.]+/[\w.$]+)`),
		regexp.MustCompile(`mCurrentFocus[^{]*\{[^}]*\s([\w.]+/[\w.$]+)`),
	}

	notifTitleRe = regexp.MustCompile(`android\.title=(?:String\s*\()?([^)\r\n]+?)\)?\s*$`)
	notifTextRe  = regexp.MustCompile(`android\.text=(?:String\s*\()?([^)\r\n]+?)\)?\s*$`)
)

// parseDeviceList extracts serials in the "device" state from adb devices
// output, skipping offline and unauthorized entries.
func parseDeviceList(out string) []string {
	var devices []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "device" {
			devices = append(devices, fields[0])
		}
	}
	return devices
}

// parseWMSize extracts the screen geometry from wm size output.
func parseWMSize(out string) (coords.Size, bool) {
	for _, re := range []*regexp.Regexp{overrideSizeRe, physicalSizeRe} {
		if m := re.FindStringSubmatch(out); m != nil {
			w, errW := strconv.Atoi(m[1])
			h, errH := strconv.Atoi(m[2])
			if errW == nil && errH == nil && w > 0 && h > 0 {
				return coords.Size{Width: w, Height: h}, true
			}
		}
	}
	return coords.Size{}, false
}

// parseCurrentApp extracts the focused package/activity token from dumpsys
// output. Empty when nothing matched.
func parseCurrentApp(out string) string {
	for _, re := range currentAppRes {
		if m := re.FindStringSubmatch(out); m != nil {
			return m[1]
		}
	}
	return ""
}

// parseNotifications extracts title/text pairs from dumpsys notification
// output. Titles open a new entry; a text line fills the most recent one.
func parseNotifications(out string) []Notification {
	var notifs []Notification
	for _, line := range strings.Split(out, "\n") {
		if m := notifTitleRe.FindStringSubmatch(line); m != nil {
			title := strings.TrimSpace(m[1])
			if title != "" && title != "null" {
				notifs = append(notifs, Notification{Title: title})
			}
			continue
		}
		if m := notifTextRe.FindStringSubmatch(line); m != nil {
			text := strings.TrimSpace(m[1])
			if text == "" || text == "null" || len(notifs) == 0 {
				continue
			}
			if last := &notifs[len(notifs)-1]; last.Text == "" {
				last.Text = text
			}
		}
	}
	return notifs
}

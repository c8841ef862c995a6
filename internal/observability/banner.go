package observability

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorCyan     = "\033[36m"
	colorBlue     = "\033[34m"
	colorBold     = "\033[1m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

var radarFrames = []string{"◜", "◝", "◞", "◟"}

// termMu synchronizes ALL terminal output so that the cursor
// save/restore in PrintLiveStatus can never be interrupted by a log write.
var termMu sync.Mutex

// ------------------------------------------------------------
// Utility
// ------------------------------------------------------------

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ------------------------------------------------------------
// TermWriter – a mutex-guarded io.Writer for log output.
// Every log.Println call will go through this writer, ensuring
// the cursor is safely inside the scroll region before writing.
// ------------------------------------------------------------

type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput().
// It serialises writes with PrintLiveStatus via termMu.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

// ------------------------------------------------------------
// Banner
// ------------------------------------------------------------

func PrintBanner() {
	fmt.Print("\033[2J\033[H")

	banner := `
  ____          _ _       _     _                         _
 / ___|_      _(_) |_ ___| |__ | |__   ___   __ _ _ __ __| |
 \___ \ \ /\ / / | __/ __| '_ \| '_ \ / _ \ / _' | '__/ _' |
  ___) \ V  V /| | || (__| | | | |_) | (_) | (_| | | | (_| |
 |____/ \_/\_/ |_|\__\___|_| |_|_.__/ \___/ \__,_|_|  \__,_|

        >> WAVEFRONT AGENT SWITCHBOARD <<
`

	width := termWidth()
	lines := strings.Split(banner, "\n")

	for _, l := range lines {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

func InitializeTerminal() {
	// Header/Logo area: 1-9
	// Dashboard/Status: 10
	// Gap: 11
	// Scrolling Logs: 12+
	fmt.Print("\033[12;r")  // Set scrolling region from line 12 to the bottom
	fmt.Print("\033[12;1H") // Move cursor to the start of the scrolling region
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// ------------------------------------------------------------
// Live Status
// ------------------------------------------------------------

// PrintLiveStatus redraws the dashboard line from st.
func PrintLiveStatus(st *Status) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	line := statusLine(st.Snapshot(), time.Now(), m.Alloc, m.Sys)

	termMu.Lock()
	fmt.Print("\033[s\033[10;1H\033[K" + line + "\033[u")
	termMu.Unlock()
}

func pulse(since time.Duration) (icon, text, color string) {
	switch {
	case since < 40*time.Second:
		return "🟢", "HEALTHY", colorNeonCyan
	case since < 90*time.Second:
		return "🟡", "LAGGING", colorPurple
	default:
		return "🔴", "OFFLINE", colorNeonMag
	}
}

func roleBadge(r Role) (icon, color string) {
	switch r {
	case RolePlanner:
		return "🛰️", colorNeonCyan
	case RoleRunning:
		return "⚙️", colorNeonMag
	}
	return "💤", colorReset
}

// waveLabel is "w<index>:<in flight>" while a plan runs.
func waveLabel(snap StatusSnapshot) string {
	if snap.Role != RoleRunning {
		return "-"
	}
	return fmt.Sprintf("w%d:%d", snap.Wave, snap.InFlight)
}

func shorten(s string, max int) string {
	if s == "" {
		return "Waiting..."
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func memBar(alloc, sys uint64, width int) (string, string) {
	ratio := 0.0
	if sys > 0 {
		ratio = float64(alloc) / float64(sys)
	}
	filled := clamp(int(ratio*float64(width)), 0, width)
	color := colorNeonCyan
	if ratio > 0.7 {
		color = colorNeonMag
	}
	return strings.Repeat("█", filled) + strings.Repeat("▒", width-filled), color
}

func statusLine(snap StatusSnapshot, now time.Time, alloc, sys uint64) string {
	pulseIcon, pulseText, pulseColor := pulse(now.Sub(snap.LastHeartbeat))
	icon, roleColor := roleBadge(snap.Role)

	radar := " "
	if snap.Role != RoleIdle {
		radar = radarFrames[int(now.Unix())%len(radarFrames)]
	}
	bar, barColor := memBar(alloc, sys, 20)

	return fmt.Sprintf(
		"%s[%s] %s%s %-10s%s | %s%s %-7s%s [%s] [%s] %s%s%s [%v] [%s%s %.1fMB%s]",
		colorReset, snap.LastHeartbeat.Format("15:04:05"),
		pulseColor, pulseIcon, pulseText, colorReset,
		roleColor, icon, snap.Role, colorReset,
		shorten(snap.ActiveTask, 25),
		waveLabel(snap),
		colorPurple, radar, colorReset,
		now.Sub(startTime).Round(time.Second),
		barColor, bar, float64(alloc)/1024/1024, colorReset,
	)
}

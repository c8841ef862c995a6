package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusLine(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	running := StatusSnapshot{Role: RoleRunning, ActiveTask: "compare weather", Wave: 2, InFlight: 3, LastHeartbeat: now.Add(-5 * time.Second)}
	line := statusLine(running, now, 10<<20, 20<<20)
	assert.Contains(t, line, "HEALTHY")
	assert.Contains(t, line, "RUNNING")
	assert.Contains(t, line, "[w2:3]")
	assert.Contains(t, line, "compare weather")
	assert.Contains(t, line, "10.0MB")

	idle := StatusSnapshot{Role: RoleIdle, LastHeartbeat: now.Add(-2 * time.Minute)}
	line = statusLine(idle, now, 0, 0)
	assert.Contains(t, line, "OFFLINE")
	assert.Contains(t, line, "Waiting...")
	assert.Contains(t, line, "[-]")
}

func TestShortenAndMemBar(t *testing.T) {
	assert.Equal(t, "short", shorten("short", 25))
	long := strings.Repeat("é", 30)
	got := shorten(long, 25)
	assert.Equal(t, 25, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))

	bar, color := memBar(9, 10, 10)
	assert.Equal(t, strings.Repeat("█", 9)+"▒", bar)
	assert.Equal(t, colorNeonMag, color)

	bar, _ = memBar(1, 0, 4)
	assert.Equal(t, "▒▒▒▒", bar)
}

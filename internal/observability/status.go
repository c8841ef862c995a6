package observability

import (
	"sync"
	"time"
)

type Role string

const (
	RoleIdle    Role = "IDLE"
	RolePlanner Role = "PLANNER"
	RoleRunning Role = "RUNNING"
)

// Status is the live state shown on the terminal dashboard.
type Status struct {
	mu            sync.RWMutex
	role          Role
	activeTask    string
	wave          int
	inFlight      int
	lastHeartbeat time.Time
}

// StatusSnapshot is a copy of Status safe to read without locks.
type StatusSnapshot struct {
	Role          Role
	ActiveTask    string
	Wave          int
	InFlight      int
	LastHeartbeat time.Time
}

func NewStatus() *Status {
	return &Status{role: RoleIdle, lastHeartbeat: time.Now()}
}

// Set updates the role and the task being worked on.
func (s *Status) Set(role Role, task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = role
	s.activeTask = task
	if role == RoleIdle {
		s.wave = 0
		s.inFlight = 0
	}
}

func (s *Status) waveStarted(index, size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = RoleRunning
	s.wave = index
	s.inFlight = size
}

func (s *Status) stepFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight > 0 {
		s.inFlight--
	}
}

// Snapshot returns a copy of the current status.
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatusSnapshot{
		Role:          s.role,
		ActiveTask:    s.activeTask,
		Wave:          s.wave,
		InFlight:      s.inFlight,
		LastHeartbeat: s.lastHeartbeat,
	}
}

// Heartbeat updates the last heartbeat time.
func (s *Status) Heartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeartbeat = time.Now()
}

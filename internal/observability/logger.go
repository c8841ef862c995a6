package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan        EventType = "plan"
	EventTypeWave        EventType = "wave"
	EventTypeStep        EventType = "step"
	EventTypeOperation   EventType = "operation"
	EventTypeRun         EventType = "run"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeHeartbeat   EventType = "heartbeat"
	EventTypeLLM         EventType = "llm"
	EventTypeReActStep   EventType = "react_step"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	ChatID    string    `json:"chat_id,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger writes events as JSON lines to an output stream and appends them to a
// size-rotated trace file.
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	tracePath string
	maxSize   int64
}

// NewLogger creates a logger. A nil out disables the stream; an empty tracePath
// disables the file.
func NewLogger(out io.Writer, tracePath string) *Logger {
	return &Logger{
		out:       out,
		tracePath: tracePath,
		maxSize:   10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"type":%q,"error":"failed to marshal event: %v"}`, evt.Type, err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out != nil {
		l.out.Write(append(data, '\n'))
	}
	if l.tracePath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.tracePath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.tracePath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.tracePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.tracePath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.tracePath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(chatID, request string, plan any) {
	l.Log(Event{
		Type:   EventTypePlan,
		ChatID: chatID,
		Data: map[string]any{
			"request": request,
			"plan":    plan,
		},
	})
}

func (l *Logger) LogPolicy(chatID, worker, effect, reason string) {
	l.Log(Event{
		Type:   EventTypePolicyCheck,
		ChatID: chatID,
		Data: map[string]string{
			"worker": worker,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(chatID, taskID string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:   EventTypeLLM,
		ChatID: chatID,
		TaskID: taskID,
		Data: map[string]any{
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}

// LogReActStep records one reason-act-reflect iteration.
func (l *Logger) LogReActStep(chatID string, step any) {
	l.Log(Event{
		Type:   EventTypeReActStep,
		ChatID: chatID,
		Data:   step,
	})
}

// Package types defines the event payloads published on the event stream.
package types

import (
	"encoding/json"
	"time"
)

// Event is anything the emitter can publish. Type selects the subtopic and
// the QoS class.
type Event interface {
	Type() string
	ToJSON() ([]byte, error)
}

// TransitionEvent reports one session state change
type TransitionEvent struct {
	InstanceID string `json:"instance_id"`
	BenchID    string `json:"bench_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	StudentID  string `json:"student_id,omitempty"`
	RollNumber string `json:"roll_number,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// Type implements Event
func (e TransitionEvent) Type() string { return "session" }

// ToJSON implements Event
func (e TransitionEvent) ToJSON() ([]byte, error) {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(e)
}

// UploadEvent reports the outcome of a finished batch
type UploadEvent struct {
	InstanceID    string `json:"instance_id"`
	BenchID       string `json:"bench_id"`
	StudentID     string `json:"student_id"`
	RollNumber    string `json:"roll_number"`
	Pages         int    `json:"pages"`
	UploadedCount int    `json:"uploaded_count"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// Type implements Event
func (e UploadEvent) Type() string { return "upload" }

// ToJSON implements Event
func (e UploadEvent) ToJSON() ([]byte, error) {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(e)
}

// HealthEvent is the periodic liveness snapshot
type HealthEvent struct {
	InstanceID string                 `json:"instance_id"`
	BenchID    string                 `json:"bench_id"`
	State      string                 `json:"state"`
	Session    map[string]interface{} `json:"session,omitempty"`
	UptimeS    int64                  `json:"uptime_s"`
	Timestamp  string                 `json:"timestamp"`
}

// Type implements Event
func (e HealthEvent) Type() string { return "health" }

// ToJSON implements Event
func (e HealthEvent) ToJSON() ([]byte, error) {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(e)
}

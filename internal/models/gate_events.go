package models

import (
	"time"

	"github.com/google/uuid"
)

type GateEventType string

const (
	EventRateLimited  GateEventType = "rate_limited"
	EventUnauthorized GateEventType = "unauthorized"
	EventRedirected   GateEventType = "redirected"
)

// GateEvent records a request turned away by one of the gates.
type GateEvent struct {
	ID        uuid.UUID     `json:"id"`
	Type      GateEventType `json:"type"`
	Key       string        `json:"key"`
	Method    string        `json:"method"`
	Path      string        `json:"path"`
	RequestID string        `json:"request_id,omitempty"`
	Time      time.Time     `json:"time"`
}

func NewGateEvent(eventType GateEventType, key, method, path, requestID string) GateEvent {
	return GateEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Key:       key,
		Method:    method,
		Path:      path,
		RequestID: requestID,
		Time:      time.Now().UTC(),
	}
}

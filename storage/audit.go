package storage

import (
	"context"
	"log"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	goccy "github.com/goccy/go-json"
)

type contextKey int

const (
	sessionIDKey contextKey = iota
)

// SetSessionID tags ctx so audit entries can be correlated per connection.
func SetSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok
}

const defaultAuditMaxSizeMB = 10

// AuditLogger writes operator events as JSON lines to a size rotated file.
type AuditLogger struct {
	mu  sync.Mutex
	out *lumberjack.Logger
	enc *goccy.Encoder
}

// AuditRef identifies who performed an action.
type AuditRef struct {
	Name string `json:"name"`
}

func Ref(name string) AuditRef {
	return AuditRef{Name: name}
}

// SystemRef is the caller for actions taken without a player, like the control socket.
func SystemRef() AuditRef {
	return AuditRef{Name: "system"}
}

// AuditData is the interface for typed audit event data.
type AuditData interface {
	auditData()
}

type AuditEntry struct {
	Time      string    `json:"time"`
	SessionID string    `json:"session_id,omitempty"`
	Event     string    `json:"event"`
	Data      AuditData `json:"data"`
}

// AuditPlayerCreate is logged when a node connects for the first time.
type AuditPlayerCreate struct {
	Player AuditRef `json:"player"`
	Remote string   `json:"remote"`
}

func (AuditPlayerCreate) auditData() {}

type AuditTriggerDisable struct {
	Caller AuditRef `json:"caller"`
	Object string   `json:"object"`
}

func (AuditTriggerDisable) auditData() {}

type AuditTriggerEnable struct {
	Caller      AuditRef `json:"caller"`
	Object      string   `json:"object"`
	WasDisabled bool     `json:"was_disabled"`
}

func (AuditTriggerEnable) auditData() {}

type AuditTriggerGlobal struct {
	Caller  AuditRef `json:"caller"`
	Enabled bool     `json:"enabled"`
}

func (AuditTriggerGlobal) auditData() {}

type AuditTriggerClear struct {
	Caller AuditRef `json:"caller"`
}

func (AuditTriggerClear) auditData() {}

// AuditScriptSet is logged when a builder replaces or removes an object script.
type AuditScriptSet struct {
	Caller AuditRef `json:"caller"`
	Object string   `json:"object"`
	Kind   string   `json:"kind"`
	Length int      `json:"length"`
}

func (AuditScriptSet) auditData() {}

func NewAuditLogger(path string, maxSizeMB int) *AuditLogger {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultAuditMaxSizeMB
	}
	out := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 5,
		Compress:   true,
	}
	return &AuditLogger{
		out: out,
		enc: goccy.NewEncoder(out),
	}
}

// Log writes a structured audit entry. Write failures are logged, never returned.
func (a *AuditLogger) Log(ctx context.Context, event string, data AuditData) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sessionID, _ := SessionID(ctx)
	if err := a.enc.Encode(AuditEntry{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: sessionID,
		Event:     event,
		Data:      data,
	}); err != nil {
		log.Printf("audit log write failed: %v", err)
	}
}

func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.out.Close()
}

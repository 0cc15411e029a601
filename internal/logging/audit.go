package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names one kind of account or data change.
type AuditEventType string

const (
	// Session lifecycle
	AuditLogin       AuditEventType = "login"
	AuditRegister    AuditEventType = "register"
	AuditLogout      AuditEventType = "logout"
	AuditForceLogout AuditEventType = "force_logout"
	AuditIdentitySet AuditEventType = "identity_set"

	// Person writes
	AuditPersonCreate AuditEventType = "person_create"
	AuditPersonUpdate AuditEventType = "person_update"
	AuditPersonDelete AuditEventType = "person_delete"
)

// AuditEvent is one line of the audit log.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"` // Unix milliseconds
	EventType  AuditEventType `json:"event"`
	User       string         `json:"user,omitempty"`
	RequestID  string         `json:"req,omitempty"`
	Target     string         `json:"target,omitempty"`
	Success    bool           `json:"success"`
	DurationMs int64          `json:"dur_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	Message    string         `json:"msg,omitempty"`
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile *os.File
	auditPath string
	auditMu   sync.Mutex
)

// AuditLogger writes audit events, optionally scoped to a user.
type AuditLogger struct {
	user string
}

// InitAudit opens <logs>/<date>_audit.log. It is a no-op outside debug mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		return nil
	}

	configMu.RLock()
	dir := logsDir
	configMu.RUnlock()

	path := filepath.Join(dir, fmt.Sprintf("%s_audit.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	auditPath = path
	return nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// AuditPath returns the open audit file, or "" when auditing is off.
func AuditPath() string {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return ""
	}
	return auditPath
}

// Audit returns an unscoped audit logger.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditAs returns an audit logger that stamps every event with user.
func AuditAs(user string) *AuditLogger {
	return &AuditLogger{user: user}
}

// Log writes event as one JSON line.
func (a *AuditLogger) Log(event AuditEvent) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.User == "" {
		event.User = a.user
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// =============================================================================
// CONVENIENCE METHODS
// =============================================================================

// Session records a login, register, logout or forced logout.
func (a *AuditLogger) Session(kind AuditEventType, username string, err error) {
	ev := AuditEvent{EventType: kind, User: username, Success: err == nil}
	if err != nil {
		ev.Error = err.Error()
	}
	a.Log(ev)
}

// IdentitySet records which person the account now represents.
func (a *AuditLogger) IdentitySet(personID int, name string) {
	a.Log(AuditEvent{
		EventType: AuditIdentitySet,
		Target:    fmt.Sprintf("pessoa/%d", personID),
		Success:   true,
		Message:   name,
	})
}

// PersonWrite records a create, update or delete against the API.
func (a *AuditLogger) PersonWrite(kind AuditEventType, requestID, target string, d time.Duration, err error) {
	ev := AuditEvent{
		EventType:  kind,
		RequestID:  requestID,
		Target:     target,
		Success:    err == nil,
		DurationMs: d.Milliseconds(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	a.Log(ev)
}

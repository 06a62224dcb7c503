package api

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const auditMaxSize = 100 * 1024 * 1024

// AuditLogger appends one JSON line per security relevant action. A nil or
// disabled logger drops events.
type AuditLogger struct {
	mu      sync.Mutex
	logDir  string
	logFile *os.File
	maxSize int64
}

// AuditEvent is one audit line.
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor,omitempty"`
	Resource  string    `json:"resource,omitempty"`
	Status    string    `json:"status"`
	Details   string    `json:"details,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// NewAuditLogger opens an audit log under logDir; an empty dir disables it.
func NewAuditLogger(logDir string) (*AuditLogger, error) {
	if logDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	al := &AuditLogger{logDir: logDir, maxSize: auditMaxSize}
	if err := al.rotate(); err != nil {
		return nil, err
	}
	return al, nil
}

// Log records event, filling in request metadata from c when present.
func (al *AuditLogger) Log(c *gin.Context, event AuditEvent) {
	if al == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if c != nil {
		event.IPAddress = c.ClientIP()
		event.RequestID = c.GetString(ctxKeyRequestID)
	}
	bz, err := json.Marshal(event)
	if err != nil {
		return
	}

	al.mu.Lock()
	defer al.mu.Unlock()
	if al.logFile == nil {
		return
	}
	if info, err := al.logFile.Stat(); err == nil && info.Size() >= al.maxSize {
		if err := al.rotate(); err != nil {
			return
		}
	}
	_, _ = al.logFile.Write(append(bz, '\n'))
}

func (al *AuditLogger) rotate() error {
	if al.logFile != nil {
		_ = al.logFile.Close()
	}
	name := fmt.Sprintf("audit_%s.log", time.Now().UTC().Format("2006-01-02_15-04-05.000"))
	file, err := os.OpenFile(filepath.Join(al.logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	al.logFile = file
	return nil
}

func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}
	al.mu.Lock()
	defer al.mu.Unlock()
	if al.logFile == nil {
		return nil
	}
	err := al.logFile.Close()
	al.logFile = nil
	return err
}

// Package audit writes a JSON-lines record of every mutating command the
// server executes (SET, DEL, ZADD, ZREM), with automatic log rotation.
// Adapted from storage/audit.go's AuditLogger: same lumberjack-backed
// rotating writer and json.Encoder pairing, narrowed to this server's
// single event shape.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry is one mutating-command record.
type Entry struct {
	Time  string `json:"time"`
	Event string `json:"event"`
	Key   string `json:"key"`
}

// Logger writes Entry records as JSON to a rotating log file.
type Logger struct {
	mu     sync.Mutex
	writer io.WriteCloser
	enc    *json.Encoder
}

// New creates a Logger writing to path, rotating at 100MB, keeping 10
// backups for up to 365 days, gzip-compressed.
func New(path string) *Logger {
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100,
		MaxBackups: 10,
		MaxAge:     365,
		Compress:   true,
	}
	return &Logger{
		writer: writer,
		enc:    json.NewEncoder(writer),
	}
}

// Log records one mutating command. Panics on encode failure: Entry's
// fields are always JSON-safe, so a failure means a programming error.
func (l *Logger) Log(event, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(Entry{
		Time:  time.Now().UTC().Format(time.RFC3339Nano),
		Event: event,
		Key:   key,
	}); err != nil {
		panic(fmt.Sprintf("audit log encode failed: %v", err))
	}
}

// Close closes the underlying rotating log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Close()
}

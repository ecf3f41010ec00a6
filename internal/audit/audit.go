// Package audit keeps the durable, append-only log of every record or group a
// batch run skipped or failed to write, with enough context (source, record
// id, reason) to reclassify it by hand later.
//
// Each entry is one JSON object per line. The file is opened with O_APPEND
// and never truncated, so consecutive runs accumulate in the same log and are
// told apart by run_id.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Kind classifies an audit entry.
type Kind string

const (
	KindMalformedRecord Kind = "malformed_record"
	KindCycleDetected   Kind = "cycle_detected"
	KindUnclassified    Kind = "unclassified"
	KindSinkWrite       Kind = "sink_write_failure"
	KindSkipped         Kind = "skipped"
)

// Entry is one line of the audit log.
type Entry struct {
	Kind     Kind
	Source   string // input file, bucket prefix, table, ...
	RecordID any    // row id / object key / course id; may be nil
	Row      int    // 1-based spreadsheet row when known
	Key      string // group key when the failure concerns a whole group
	Err      error
}

// Log appends entries to a file (or discards them when created with Discard).
type Log struct {
	runID  string
	logger *zap.Logger
	file   *os.File

	mu    sync.Mutex
	count map[Kind]int
}

// Open opens (creating if needed) path for appending and returns a Log
// stamped with a fresh run id.
func Open(path string) (*Log, error) {
	if path == "" {
		return Discard(), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("audit: mkdir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		MessageKey:     "kind",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.DebugLevel)

	l := newLog(zap.New(core))
	l.file = f
	return l, nil
}

// Discard returns a Log that only counts entries.
func Discard() *Log { return newLog(zap.NewNop()) }

func newLog(base *zap.Logger) *Log {
	id := uuid.NewString()
	return &Log{
		runID:  id,
		logger: base.With(zap.String("run_id", id)),
		count:  make(map[Kind]int),
	}
}

// RunID identifies this process's entries in a shared log.
func (l *Log) RunID() string { return l.runID }

// Append writes e. It is safe for concurrent use.
func (l *Log) Append(e Entry) {
	if l == nil {
		return
	}
	fields := make([]zap.Field, 0, 5)
	if e.Source != "" {
		fields = append(fields, zap.String("source", e.Source))
	}
	if e.RecordID != nil {
		fields = append(fields, zap.Any("record_id", e.RecordID))
	}
	if e.Row > 0 {
		fields = append(fields, zap.Int("row", e.Row))
	}
	if e.Key != "" {
		fields = append(fields, zap.String("key", e.Key))
	}
	if e.Err != nil {
		fields = append(fields, zap.String("reason", e.Err.Error()))
	}

	l.mu.Lock()
	l.count[e.Kind]++
	l.mu.Unlock()

	l.logger.Info(string(e.Kind), fields...)
}

// Count returns how many entries of kind were appended by this Log.
func (l *Log) Count(kind Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count[kind]
}

// Total returns how many entries were appended by this Log.
func (l *Log) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.count {
		n += c
	}
	return n
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.logger.Sync()
	return l.file.Close()
}

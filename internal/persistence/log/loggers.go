package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"sortbot.ai/internal/sim/catalogs"
	"sortbot.ai/internal/sim/grid"
	"sortbot.ai/internal/sim/world"
)

// JSONLZstdWriter appends JSON lines to zstd files rotated by UTC hour.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// FrameLogEntry is the persisted slice of a frame: enough to verify a replay
// and to redraw the agent without the full task list.
type FrameLogEntry struct {
	Seq       uint64            `json:"seq"`
	Tick      uint64            `json:"tick"`
	Kind      world.FrameKind   `json:"kind"`
	TaskID    string            `json:"task_id,omitempty"`
	Pos       grid.Pos          `json:"pos"`
	Payload   catalogs.Category `json:"payload,omitempty"`
	Remaining int               `json:"remaining"`
	Digest    string            `json:"digest"`
}

func EntryFromFrame(f world.Frame) FrameLogEntry {
	return FrameLogEntry{
		Seq:       f.Seq,
		Tick:      f.Tick,
		Kind:      f.Kind,
		TaskID:    f.TaskID,
		Pos:       f.Agent,
		Payload:   f.Payload,
		Remaining: len(f.Remaining),
		Digest:    f.Digest,
	}
}

// FrameLogger writes one JSONL entry per frame (compressed).
type FrameLogger struct{ w *JSONLZstdWriter }

func NewFrameLogger(runDir string) *FrameLogger {
	return &FrameLogger{w: NewJSONLZstdWriter(runDir, FramesPrefix)}
}

func (l *FrameLogger) WriteFrame(f world.Frame) error { return l.w.Write(EntryFromFrame(f)) }
func (l *FrameLogger) Close() error                   { return l.w.Close() }

package process

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/transq/internal/infrastructure/logger"
)

const maxLineBytes = 4096

// OpenLogFile opens (appending) the file receiving transform tool output.
func OpenLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open transform log: %w", err)
	}
	return f, nil
}

// lineWriter turns the raw byte stream of a child process into sanitised,
// timestamped lines. Progress bars redraw with \r, so both \r and \n end a
// line.
type lineWriter struct {
	mu  sync.Mutex
	out *log.Logger
	buf []byte
}

func newLineWriter(sink io.Writer, prefix string) *lineWriter {
	return &lineWriter{out: log.New(sink, prefix, log.Ldate|log.Ltime|log.LUTC)}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxLineBytes {
		w.emit(w.buf)
		w.buf = w.buf[:0]
	}
	return len(p), nil
}

// Flush writes any trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emit(w.buf)
	w.buf = nil
}

func (w *lineWriter) emit(line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	w.out.Println(logger.SanitizeLine(string(line), maxLineBytes))
}

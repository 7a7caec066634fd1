package logger

import (
	"io"
	"log"
	"os"
	"strings"
)

var (
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Warn  *log.Logger
)

const logFlags = log.Ldate | log.Ltime | log.LUTC | log.Lshortfile

func init() {
	Configure(os.Stdout, "info")
}

// Configure points every level at w. Debug output is discarded unless level
// is "debug"; "warn" and "error" silence the lower levels the same way.
func Configure(w io.Writer, level string) {
	level = strings.ToLower(strings.TrimSpace(level))

	Debug = log.New(io.Discard, "DEBUG: ", logFlags)
	Info = log.New(io.Discard, "INFO: ", logFlags)
	Warn = log.New(io.Discard, "WARN: ", logFlags)
	Error = log.New(w, "ERROR: ", logFlags)

	switch level {
	case "debug":
		Debug.SetOutput(w)
		fallthrough
	case "", "info":
		Info.SetOutput(w)
		fallthrough
	case "warn", "warning":
		Warn.SetOutput(w)
	}
}

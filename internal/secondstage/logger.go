package secondstage

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// Logger writes colored status lines to the console and, if a log file
// writer is given, mirrors each line there uncolored with a timestamp.
type Logger struct {
	console io.Writer
	file    io.Writer
}

// NewLogger builds a Logger. file may be nil if no log file could be
// opened; console output still proceeds.
func NewLogger(console, file io.Writer) *Logger {
	return &Logger{console: console, file: file}
}

func (l *Logger) Info(format string, args ...interface{})  { l.emit(color.FgGreen, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.emit(color.FgYellow, format, args...) }
func (l *Logger) Fatal(format string, args ...interface{}) { l.emit(color.FgRed, format, args...) }

func (l *Logger) emit(attr color.Attribute, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	color.New(attr).Fprintln(l.console, msg)
	if l.file != nil {
		fmt.Fprintf(l.file, "%s %s\n", time.Now().Format(time.RFC3339), msg)
	}
}

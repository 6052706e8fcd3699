// Package rlog provides the three severity-tiered loggers shared by every
// component of the render graph, following the per-file logging setup
// BaseCore used to do on its own in the teacher repo.
package rlog

import (
	"log"
	"os"
	"sync"
)

// Loggers bundles the info/warn/error writers a component needs.
type Loggers struct {
	Info  *log.Logger
	Warn  *log.Logger
	Error *log.Logger
}

var (
	once    sync.Once
	globals Loggers
)

// Global returns the process-wide loggers, opening the log files on first use.
func Global() *Loggers {
	once.Do(func() {
		globals = newFileLoggers("info_log.txt", "warn_log.txt", "error_log.txt")
	})
	return &globals
}

func newFileLoggers(infoPath, warnPath, errorPath string) Loggers {
	info := openOrStderr(infoPath)
	warn := openOrStderr(warnPath)
	errf := openOrStderr(errorPath)

	return Loggers{
		Info:  log.New(info, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile),
		Warn:  log.New(warn, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile),
		Error: log.New(errf, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

func openOrStderr(path string) *os.File {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return os.Stderr
	}
	return f
}

// Package logger wraps zap for structured logging.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.Mutex
	log     *zap.Logger
	once    sync.Once
	file    *os.File
	logFile = "gkgsynth.log" // Default log file
	level   = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// SetLogPath changes the JSON log file. Takes effect on the next InitLogger.
func SetLogPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	logFile = path
}

// SetLevel parses a level name ("debug", "info", "warn", "error") and applies
// it to the running logger.
func SetLevel(name string) error {
	l, err := zapcore.ParseLevel(name)
	if err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

// InitLogger initializes the Zap logger with structured logging.
func InitLogger() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()

		// Console logging goes to stderr; stdout carries command output.
		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores := []zapcore.Core{
			zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), level),
		}

		// File logging is skipped when the path is empty or cannot be opened.
		if logFile != "" {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
			if err == nil {
				file = f
				fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
				cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(f), level))
			}
		}

		log = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	})
}

// GetLogger provides access to the initialized logger.
func GetLogger() *zap.Logger {
	InitLogger()
	return log
}

// Sync ensures buffered logs are written before the application exits.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		_ = log.Sync()
	}
}

// ResetLogger closes the log file and allows InitLogger to run again.
func ResetLogger() {
	Sync()
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
		file = nil
	}
	log = nil
	once = sync.Once{}
	level.SetLevel(zap.InfoLevel)
}

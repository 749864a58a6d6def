package server

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging sends the standard logger to stderr, and to a rotated file if
// LogFile is set. The returned closer releases the file.
func SetupLogging(config Config) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if config.LogFile == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}
	rotated := &lumberjack.Logger{
		Filename:   config.LogFile,
		MaxSize:    config.LogMaxSizeMB,
		MaxBackups: config.LogMaxBackups,
		MaxAge:     config.LogMaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotated))
	return rotated
}

type nopCloser struct{}

func (nopCloser) Close() error {
	return nil
}

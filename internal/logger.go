package internal

import (
	"abcpay/entity"
	"abcpay/services"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

const (
	logWriteTimeout = 5 * time.Second
	logQueueSize    = 256
)

// Logger writes through slog and mirrors non-debug records to the database when one is set.
type Logger struct {
	category string
	debug    bool
	sink     *logSink
	log      *slog.Logger
}

// logSink feeds mirrored records to the database from a single goroutine,
// in the order they were logged. Records are dropped while the queue is full.
type logSink struct {
	database services.Database
	log      *slog.Logger
	records  chan *entity.LogMessage
	done     chan struct{}
	mutex    sync.RWMutex
	closed   bool
}

func newLogSink(database services.Database, log *slog.Logger) *logSink {
	sink := &logSink{
		database: database,
		log:      log,
		records:  make(chan *entity.LogMessage, logQueueSize),
		done:     make(chan struct{}),
	}
	go sink.run()
	return sink
}

func (s *logSink) run() {
	defer close(s.done)
	for message := range s.records {
		ctx, cancel := context.WithTimeout(context.Background(), logWriteTimeout)
		if err := s.database.WriteLogMessage(ctx, message); err != nil {
			s.log.Warn("write log message", slog.Any("error", err))
		}
		cancel()
	}
}

func (s *logSink) push(message *entity.LogMessage) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.records <- message:
	default:
		s.log.Warn("log message dropped: queue full", slog.String("text", message.Text))
	}
}

func (s *logSink) close() {
	s.mutex.Lock()
	if !s.closed {
		s.closed = true
		close(s.records)
	}
	s.mutex.Unlock()
	<-s.done
}

// NewLogger returns a text logger writing to stderr.
func NewLogger(category string, debug bool, database services.Database) *Logger {
	return NewLoggerTo(os.Stderr, "text", category, debug, database)
}

// NewLoggerTo returns a logger writing to w; format is "text" or "json".
func NewLoggerTo(w io.Writer, format, category string, debug bool, database services.Database) *Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	log := slog.New(handler)
	logger := &Logger{
		category: category,
		debug:    debug,
		log:      log.With(slog.String("category", category)),
	}
	if database != nil {
		logger.sink = newLogSink(database, log)
	}
	return logger
}

// Child shares the sink of l under another category.
func (l *Logger) Child(category string) *Logger {
	return &Logger{
		category: category,
		debug:    l.debug,
		sink:     l.sink,
		log:      l.log.With(slog.String("category", category)),
	}
}

// Close writes the queued records and stops mirroring for l and its children.
func (l *Logger) Close() {
	if l.sink != nil {
		l.sink.close()
	}
}

func (l *Logger) Debug(text string) {
	l.log.Debug(text)
}

func (l *Logger) Info(text string) {
	l.log.Info(text)
	l.mirror("info", text, nil)
}

func (l *Logger) Warn(text string) {
	l.log.Warn(text)
	l.mirror("warn", text, nil)
}

func (l *Logger) Error(text string, err error) {
	l.log.Error(text, slog.Any("error", err))
	l.mirror("error", text, err)
}

func (l *Logger) mirror(level, text string, err error) {
	if l.sink == nil {
		return
	}
	message := &entity.LogMessage{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Text:     text,
	}
	if err != nil {
		message.Error = err.Error()
	}
	l.sink.push(message)
}

// secret masks identifiers before they reach the log.
func secret(some string) string {
	if len(some) > 5 {
		return fmt.Sprintf("%s***", some[0:5])
	}
	if some == "" {
		return "?"
	}
	return "***"
}

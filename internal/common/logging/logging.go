package logging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Log levels
const (
	Debug = "DEBUG"
	Info  = "INFO"
	Warn  = "WARN"
	Error = "ERROR"
)

var (
	mu     sync.RWMutex
	level  = zerolog.InfoLevel
	logger = consoleLogger(os.Stdout)
)

func consoleLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05.000",
	}).With().Timestamp().Logger()
}

func parseLevel(l string) zerolog.Level {
	switch strings.ToUpper(l) {
	case Debug:
		return zerolog.DebugLevel
	case Warn:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLogLevel sets the current log level.
func SetLogLevel(l string) {
	mu.Lock()
	defer mu.Unlock()
	level = parseLevel(l)
	logger = logger.Level(level)
}

// SetOutput redirects log entries to w as newline delimited JSON.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = zerolog.New(zerolog.SyncWriter(w)).Level(level).With().Timestamp().Logger()
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	_, filename := filepath.Split(file)
	return fmt.Sprintf("%s:%d", filename, line)
}

// Log logs a message with file and line number information at the specified level.
func Log(l string, message string, args ...any) {
	l2 := current()
	l2.WithLevel(parseLevel(l)).Str("caller", caller(2)).Msgf(message, args...)
}

// NginxLog logs an outbound request in a combined access log style.
func NginxLog(l string, method string, url string, req *http.Request, resp *http.Response) {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	userAgent := "-"
	if req != nil && req.UserAgent() != "" {
		userAgent = req.UserAgent()
	}
	l2 := current()
	l2.WithLevel(parseLevel(l)).
		Str("caller", caller(2)).
		Str("method", method).
		Str("url", url).
		Int("status", status).
		Msgf("%s %s %d \"%s\"", method, url, status, userAgent)
}

type StatusRecorder struct {
	http.ResponseWriter
	StatusCode int
}

func (r *StatusRecorder) WriteHeader(statusCode int) {
	r.StatusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func RequestLogger(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &StatusRecorder{
			ResponseWriter: w,
			StatusCode:     http.StatusOK,
		}

		h.ServeHTTP(recorder, r)
		clientIP := strings.Split(r.RemoteAddr, ":")[0]
		referer := r.Referer()
		if referer == "" {
			referer = "-"
		}
		l := current()
		l.Info().
			Str("client", clientIP).
			Str("method", r.Method).
			Str("path", r.URL.RequestURI()).
			Int("status", recorder.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msgf("%s \"%s %s %s\" %d \"%s\" \"%s\"", clientIP, r.Method, r.URL.RequestURI(), r.Proto, recorder.StatusCode, referer, r.UserAgent())
	})
}

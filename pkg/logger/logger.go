// Package logger provides namespaced debug logging controlled by the DEBUG
// environment variable, in the style of the node debug package.
//
// Loggers are cheap to create and disabled by default. Setting DEBUG to a
// comma-separated list of patterns enables matching namespaces:
//
//	DEBUG=*                 enable everything
//	DEBUG=workflow:*        enable the workflow namespace
//	DEBUG=workflow:*,cli:*  enable multiple namespaces
//	DEBUG=*,-workflow:graph enable everything except one logger
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger writes debug messages for a single namespace.
type Logger struct {
	namespace string
	enabled   bool

	mu   sync.Mutex
	last time.Time
}

// New creates a logger for the given namespace. Whether it is enabled is
// decided from the DEBUG environment variable at creation time.
func New(namespace string) *Logger {
	return &Logger{namespace: namespace, enabled: matches(os.Getenv("DEBUG"), namespace)}
}

func matches(debug, namespace string) bool {
	enabled := false
	for _, pat := range strings.Split(debug, ",") {
		pat = strings.TrimSpace(pat)
		if pat == "" {
			continue
		}
		if negated := strings.HasPrefix(pat, "-"); negated {
			if match(pat[1:], namespace) {
				return false
			}
		} else if match(pat, namespace) {
			enabled = true
		}
	}
	return enabled
}

// match supports a single trailing wildcard, which is all the DEBUG
// convention requires.
func match(pattern, namespace string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(namespace, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == namespace
}

// Enabled reports whether messages from this logger will be written.
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Printf writes a formatted message to stderr when the logger is enabled.
func (l *Logger) Printf(format string, args ...any) {
	if !l.enabled {
		return
	}
	l.write(fmt.Sprintf(format, args...))
}

// Print concatenates its arguments like fmt.Sprint and writes the result to
// stderr when the logger is enabled.
func (l *Logger) Print(args ...any) {
	if !l.enabled {
		return
	}
	l.write(fmt.Sprint(args...))
}

func (l *Logger) write(msg string) {
	l.mu.Lock()
	now := time.Now()
	var elapsed time.Duration
	if !l.last.IsZero() {
		elapsed = now.Sub(l.last)
	}
	l.last = now
	l.mu.Unlock()

	fmt.Fprintf(os.Stderr, "%s %s +%s\n", l.namespace, msg, elapsed)
}

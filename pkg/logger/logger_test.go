//go:build !integration

package logger

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		namespace string
		want      bool
	}{
		{"star matches everything", "*", "workflow:graph", true},
		{"prefix wildcard matches namespace", "workflow:*", "workflow:graph", true},
		{"prefix wildcard rejects other namespace", "workflow:*", "cli:compile", false},
		{"exact match", "cli:compile", "cli:compile", true},
		{"exact mismatch", "cli:compile", "cli:watch", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := match(tt.pattern, tt.namespace); got != tt.want {
				t.Errorf("match(%q, %q) = %v, want %v", tt.pattern, tt.namespace, got, tt.want)
			}
		})
	}
}

func TestDisabledLoggerIsSilent(t *testing.T) {
	log := &Logger{namespace: "test:silent", enabled: false}
	// Must not panic or write; there is no output channel to assert on here,
	// the point is that the calls are safe on a disabled logger.
	log.Printf("value %d", 1)
	log.Print("value")
	if log.Enabled() {
		t.Error("logger should be disabled")
	}
}

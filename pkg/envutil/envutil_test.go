//go:build !integration

package envutil

import "testing"

func TestGetIntFromEnv(t *testing.T) {
	const key = "ARGOT_TEST_INT"

	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "unset uses default", value: "", want: 4},
		{name: "valid value", value: "8", want: 8},
		{name: "not a number", value: "eight", want: 4},
		{name: "below minimum", value: "0", want: 4},
		{name: "above maximum", value: "100", want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(key, tt.value)
			}
			got := GetIntFromEnv(key, 4, 1, 16, nil)
			if got != tt.want {
				t.Errorf("GetIntFromEnv() = %d, want %d", got, tt.want)
			}
		})
	}
}

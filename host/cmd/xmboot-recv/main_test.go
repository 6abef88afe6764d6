package main

import (
	"log/slog"
	"testing"
)

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		v1, v2 bool
		want   slog.Level
	}{
		{false, false, slog.LevelWarn},
		{true, false, slog.LevelInfo},
		{true, true, slog.LevelDebug},
	}

	for _, tt := range tests {
		if got := slogLevel(tt.v1, tt.v2); got != tt.want {
			t.Errorf("slogLevel(%v, %v) = %v, want %v", tt.v1, tt.v2, got, tt.want)
		}
	}

	if newLogger() == nil {
		t.Error("newLogger returned nil")
	}
}

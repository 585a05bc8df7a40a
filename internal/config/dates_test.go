package config

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2024, 3, 31, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"2024-01-15", "2024-01-15", false},
		{" 2024-01-15 ", "2024-01-15", false},
		{"2024-01-15T23:10:00Z", "2024-01-15", false},
		{"today", "2024-03-31", false},
		{"Today", "2024-03-31", false},
		{"yesterday", "2024-03-30", false},
		{"1 day ago", "2024-03-30", false},
		{"30 days ago", "2024-03-01", false},
		{"2 weeks ago", "2024-03-17", false},
		{"1 month ago", "2024-03-02", false}, // Feb 31 normalizes to Mar 2
		{"1 year ago", "2023-03-31", false},
		{"", "", true},
		{"2024-13-01", "", true},
		{"soon", "", true},
		{"days ago", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input, now)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDate(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tt.input, err)
			}
			if got.Format(DateLayout) != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.input, got.Format(DateLayout), tt.want)
			}
			if got.Hour() != 0 || got.Minute() != 0 {
				t.Errorf("ParseDate(%q) = %v, want midnight", tt.input, got)
			}
		})
	}
}

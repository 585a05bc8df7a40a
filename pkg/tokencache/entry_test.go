package tokencache

import (
	"testing"
	"time"
)

func TestEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  bool
	}{
		{
			name:  "expired token",
			entry: Entry{Expiry: time.Now().Add(-1 * time.Hour)},
			want:  true,
		},
		{
			name:  "valid token",
			entry: Entry{Expiry: time.Now().Add(1 * time.Hour)},
			want:  false,
		},
		{
			name:  "inside expiry skew",
			entry: Entry{Expiry: time.Now().Add(10 * time.Second)},
			want:  true,
		},
		{
			name:  "no expiry, cached recently",
			entry: Entry{CachedAt: time.Now().Add(-1 * time.Minute)},
			want:  false,
		},
		{
			name:  "no expiry, cached long ago",
			entry: Entry{CachedAt: time.Now().Add(-1 * time.Hour)},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantMin time.Duration
		wantMax time.Duration
	}{
		{
			name:    "one hour remaining",
			entry:   Entry{Expiry: time.Now().Add(1 * time.Hour)},
			wantMin: 59 * time.Minute,
			wantMax: 60 * time.Minute,
		},
		{
			name:    "already expired",
			entry:   Entry{Expiry: time.Now().Add(-1 * time.Hour)},
			wantMin: 0,
			wantMax: 0,
		},
		{
			name:    "no expiry uses default ttl",
			entry:   Entry{CachedAt: time.Now()},
			wantMin: DefaultTTL - time.Second,
			wantMax: DefaultTTL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.entry.TTL()
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("TTL() = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

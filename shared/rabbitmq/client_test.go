package rabbitmq

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newBackoffClient(cfg *Config) *Client {
	return &Client{
		config: cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestPublishBackoff(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		attempt int
		want    time.Duration
	}{
		{
			name:    "first retry uses base delay",
			config:  Config{PublishRetryDelay: 100 * time.Millisecond, PublishBackoffMult: 2.0},
			attempt: 0,
			want:    100 * time.Millisecond,
		},
		{
			name:    "doubling on second retry",
			config:  Config{PublishRetryDelay: 100 * time.Millisecond, PublishBackoffMult: 2.0},
			attempt: 1,
			want:    200 * time.Millisecond,
		},
		{
			name:    "configured multiplier applied",
			config:  Config{PublishRetryDelay: 100 * time.Millisecond, PublishBackoffMult: 3.0},
			attempt: 2,
			want:    900 * time.Millisecond,
		},
		{
			name:    "zero config falls back to 100ms doubling",
			config:  Config{},
			attempt: 2,
			want:    400 * time.Millisecond,
		},
		{
			name:    "multiplier below one falls back to doubling",
			config:  Config{PublishRetryDelay: 50 * time.Millisecond, PublishBackoffMult: 0.5},
			attempt: 1,
			want:    100 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newBackoffClient(&tt.config)
			assert.Equal(t, tt.want, c.publishBackoff(tt.attempt))
		})
	}
}

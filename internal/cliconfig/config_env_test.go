package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		changed map[string]bool
		check   func(t *testing.T, c Config)
		wantErr bool
	}{
		{
			name: "applies env vars",
			envVars: map[string]string{
				"SPIRE_BOT_COUNT":       "12",
				"SPIRE_GAME_HOST":       "env.local",
				"SPIRE_TRANSPORT":       "ws",
				"SPIRE_WRITE_TIMEOUT":   "750ms",
				"SPIRE_TLS":             "1",
				"SPIRE_BYTE_ORDER":      "little",
				"SPIRE_QUEUE_CAPACITY":  "32",
				"SPIRE_METRICS_ADDR":    ":9090",
				"SPIRE_SECURITY_MODE":   "production",
				"SPIRE_DURATION":        "30s",
				"SPIRE_STATE_DIR":       "/tmp/spire",
				"SPIRE_LOBBY_URL":       "http://env-lobby",
				"SPIRE_LOG_LEVEL":       "warn",
				"SPIRE_BOT_PREFIX":      "env",
				"SPIRE_GAME_PORT":       "7100",
				"SPIRE_CONNECT_TIMEOUT": "2s",
			},
			changed: map[string]bool{},
			check: func(t *testing.T, c Config) {
				if c.BotCount != 12 || c.GameHost != "env.local" || c.Transport != "ws" || c.GamePort != 7100 {
					t.Errorf("got %+v", c)
				}
				if c.WriteTimeout != 750*time.Millisecond || c.ConnectTimeout != 2*time.Second || c.Duration != 30*time.Second {
					t.Errorf("durations = %v %v %v", c.WriteTimeout, c.ConnectTimeout, c.Duration)
				}
				if !c.TLS || c.ByteOrder != "little" || c.QueueCapacity != 32 {
					t.Errorf("got tls=%v order=%q queue=%d", c.TLS, c.ByteOrder, c.QueueCapacity)
				}
				if c.MetricsAddr != ":9090" || c.SecurityMode != "production" || c.StateDir != "/tmp/spire" {
					t.Errorf("got metrics=%q mode=%q state=%q", c.MetricsAddr, c.SecurityMode, c.StateDir)
				}
				if c.LobbyURL != "http://env-lobby" || c.LogLevel != "warn" || c.BotPrefix != "env" {
					t.Errorf("got lobby=%q level=%q prefix=%q", c.LobbyURL, c.LogLevel, c.BotPrefix)
				}
			},
		},
		{
			name:    "respects changed flags",
			envVars: map[string]string{"SPIRE_GAME_HOST": "env.local", "SPIRE_BOT_COUNT": "5"},
			changed: map[string]bool{"game-host": true},
			check: func(t *testing.T, c Config) {
				if c.GameHost != DefaultConfig().GameHost {
					t.Errorf("GameHost = %q, want default", c.GameHost)
				}
				if c.BotCount != 5 {
					t.Errorf("BotCount = %d, want 5", c.BotCount)
				}
			},
		},
		{
			name:    "invalid duration",
			envVars: map[string]string{"SPIRE_READ_TIMEOUT": "not-a-duration"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "invalid int",
			envVars: map[string]string{"SPIRE_BOT_COUNT": "many"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			cfg := DefaultConfig()
			err := ApplyEnvConfig(&cfg, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnvConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

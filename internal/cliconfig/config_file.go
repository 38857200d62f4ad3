package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	BotCount           int    `toml:"bot_count"`
	BotPrefix          string `toml:"bot_prefix"`
	Duration           string `toml:"duration"`
	LobbyURL           string `toml:"lobby_url"`
	GameHost           string `toml:"game_host"`
	GamePort           int    `toml:"game_port"`
	Transport          string `toml:"transport"`
	SecurityMode       string `toml:"security_mode"`
	InsecureSkipVerify *bool  `toml:"insecure_skip_verify"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	ALPN               string `toml:"alpn"`
	TLS                *bool  `toml:"tls"`
	WSPath             string `toml:"ws_path"`
	ByteOrder          string `toml:"byte_order"`
	ConnectTimeout     string `toml:"connect_timeout"`
	ReadTimeout        string `toml:"read_timeout"`
	WriteTimeout       string `toml:"write_timeout"`
	QueueCapacity      int    `toml:"queue_capacity"`
	LogLevel           string `toml:"log_level"`
	MetricsAddr        string `toml:"metrics_addr"`
	StateDir           string `toml:"state_dir"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.spire/config.toml if the user home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".spire", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setInt("bot-count", fc.BotCount, &cfg.BotCount)
	s.setString("bot-prefix", fc.BotPrefix, &cfg.BotPrefix)
	s.setString("lobby-url", fc.LobbyURL, &cfg.LobbyURL)
	s.setString("game-host", fc.GameHost, &cfg.GameHost)
	s.setInt("game-port", fc.GamePort, &cfg.GamePort)
	s.setString("transport", fc.Transport, &cfg.Transport)
	s.setString("security-mode", fc.SecurityMode, &cfg.SecurityMode)
	s.setString("ca-file", fc.CAFile, &cfg.CAFile)
	s.setString("server-name", fc.ServerName, &cfg.ServerName)
	s.setString("alpn", fc.ALPN, &cfg.ALPN)
	s.setString("ws-path", fc.WSPath, &cfg.WSPath)
	s.setString("byte-order", fc.ByteOrder, &cfg.ByteOrder)
	s.setInt("queue-capacity", fc.QueueCapacity, &cfg.QueueCapacity)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)

	if err := s.setDuration("duration", fc.Duration, &cfg.Duration); err != nil {
		return err
	}
	if err := s.setDuration("connect-timeout", fc.ConnectTimeout, &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("read-timeout", fc.ReadTimeout, &cfg.ReadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("write-timeout", fc.WriteTimeout, &cfg.WriteTimeout); err != nil {
		return err
	}

	s.setBool("insecure-skip-verify", fc.InsecureSkipVerify, &cfg.InsecureSkipVerify)
	s.setBool("tls", fc.TLS, &cfg.TLS)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (SPIRE_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("bot-prefix", os.Getenv("SPIRE_BOT_PREFIX"), &cfg.BotPrefix)
	s.setString("lobby-url", os.Getenv("SPIRE_LOBBY_URL"), &cfg.LobbyURL)
	s.setString("game-host", os.Getenv("SPIRE_GAME_HOST"), &cfg.GameHost)
	s.setString("transport", os.Getenv("SPIRE_TRANSPORT"), &cfg.Transport)
	s.setString("security-mode", os.Getenv("SPIRE_SECURITY_MODE"), &cfg.SecurityMode)
	s.setString("ca-file", os.Getenv("SPIRE_CA_FILE"), &cfg.CAFile)
	s.setString("server-name", os.Getenv("SPIRE_SERVER_NAME"), &cfg.ServerName)
	s.setString("alpn", os.Getenv("SPIRE_ALPN"), &cfg.ALPN)
	s.setString("ws-path", os.Getenv("SPIRE_WS_PATH"), &cfg.WSPath)
	s.setString("byte-order", os.Getenv("SPIRE_BYTE_ORDER"), &cfg.ByteOrder)
	s.setString("log-level", os.Getenv("SPIRE_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("metrics-addr", os.Getenv("SPIRE_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("state-dir", os.Getenv("SPIRE_STATE_DIR"), &cfg.StateDir)

	if err := s.setIntFromString("bot-count", os.Getenv("SPIRE_BOT_COUNT"), &cfg.BotCount); err != nil {
		return err
	}
	if err := s.setIntFromString("game-port", os.Getenv("SPIRE_GAME_PORT"), &cfg.GamePort); err != nil {
		return err
	}
	if err := s.setIntFromString("queue-capacity", os.Getenv("SPIRE_QUEUE_CAPACITY"), &cfg.QueueCapacity); err != nil {
		return err
	}

	if err := s.setDuration("duration", os.Getenv("SPIRE_DURATION"), &cfg.Duration); err != nil {
		return err
	}
	if err := s.setDuration("connect-timeout", os.Getenv("SPIRE_CONNECT_TIMEOUT"), &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("read-timeout", os.Getenv("SPIRE_READ_TIMEOUT"), &cfg.ReadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("write-timeout", os.Getenv("SPIRE_WRITE_TIMEOUT"), &cfg.WriteTimeout); err != nil {
		return err
	}

	s.setBoolFromString("insecure-skip-verify", os.Getenv("SPIRE_INSECURE_SKIP_VERIFY"), &cfg.InsecureSkipVerify)
	s.setBoolFromString("tls", os.Getenv("SPIRE_TLS"), &cfg.TLS)

	return nil
}

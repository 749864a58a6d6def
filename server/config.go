package server

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/zond/meshmush/game"
)

// Config is the server configuration. Zero values of optional fields fall
// back to the values of DefaultConfig when loaded from a file.
type Config struct {
	// Dir holds the database, host key, control socket and logs.
	Dir           string   `toml:"dir"`
	SSHAddr       string   `toml:"ssh_addr"`
	ControlSocket string   `toml:"control_socket"`
	SpawnRoom     string   `toml:"spawn_room"`
	Wizards       []string `toml:"wizards"`

	LogFile       string `toml:"log_file"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	LogMaxAgeDays int    `toml:"log_max_age_days"`
	AuditLog      string `toml:"audit_log"`
}

func DefaultConfig() Config {
	return Config{
		Dir:           filepath.Join(os.Getenv("HOME"), ".meshmush"),
		SSHAddr:       "127.0.0.1:15000",
		SpawnRoom:     game.DefaultSpawnRoom,
		LogMaxSizeMB:  100,
		LogMaxBackups: 5,
		LogMaxAgeDays: 30,
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrapf(err, "reading config %q", path)
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrapf(err, "parsing config %q", path)
	}
	return config, nil
}

func (c Config) controlSocket() string {
	if c.ControlSocket != "" {
		return c.ControlSocket
	}
	return filepath.Join(c.Dir, "control.sock")
}

func (c Config) auditLog() string {
	if c.AuditLog != "" {
		return c.AuditLog
	}
	return filepath.Join(c.Dir, "audit.log")
}

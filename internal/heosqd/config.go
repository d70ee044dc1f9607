package heosqd

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for heosqd.
type Config struct {
	Server  ServerConfig   `toml:"server"`
	Modules ModulesConfig  `toml:"modules"`
	Devices []DeviceConfig `toml:"devices"`
}

// ServerConfig defines shared server settings.
type ServerConfig struct {
	Broker    string     `toml:"broker"`
	Identity  string     `toml:"identity"`
	TopicBase string     `toml:"topic_base"`
	LogLevel  string     `toml:"log_level"`
	LogFormat string     `toml:"log_format"`
	MQTTTrace bool       `toml:"mqtt_trace"`
	TLS       TLSConfig  `toml:"tls"`
	Auth      AuthConfig `toml:"auth"`
}

// TLSConfig holds TLS paths for MQTT.
type TLSConfig struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// AuthConfig holds MQTT auth credentials.
type AuthConfig struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// DeviceConfig describes one HEOS device under management.
type DeviceConfig struct {
	ID      string   `toml:"id"`
	Name    string   `toml:"name"`
	Host    string   `toml:"host"`
	PID     int      `toml:"pid"`
	Aliases []string `toml:"aliases"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	QueueMgr     QueueMgrConfig     `toml:"queue_mgr"`
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
	DeviceSim    DeviceSimConfig    `toml:"device_sim"`
}

// QueueMgrConfig configures the queue manager module.
type QueueMgrConfig struct {
	Enabled          bool   `toml:"enabled"`
	ServiceID        string `toml:"service_id"`
	Name             string `toml:"name"`
	DialTimeoutMS    int64  `toml:"dial_timeout_ms"`
	CommandTimeoutMS int64  `toml:"command_timeout_ms"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TLSCA          string `toml:"tls_ca"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// DeviceSimConfig configures simulated devices.
type DeviceSimConfig struct {
	Enabled bool              `toml:"enabled"`
	Devices []SimDeviceConfig `toml:"devices"`
}

// SimDeviceConfig describes one simulated device.
type SimDeviceConfig struct {
	Listen string   `toml:"listen"`
	PID    int      `toml:"pid"`
	Name   string   `toml:"name"`
	Tracks []string `toml:"tracks"`
}

// LoadConfig loads a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "heosq", "heosqd.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "heosq", "heosqd.toml"), nil
}

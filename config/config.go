// Package config loads the server's INI configuration file (spec §6),
// using gopkg.in/ini.v1 as listed in the teacher's go.mod. The teacher's
// own config/config_watcher.go instead watches a Nacos remote config
// store; this spec has no remote config service, so that file was
// replaced with a genuine local-INI loader that matches the keys and
// first-run-default-and-exit behavior §6 and §8 describe.
package config

import (
	"fmt"
	"os"

	"chatd/tools/safe"

	"gopkg.in/ini.v1"
)

const (
	defaultHost = "0.0.0.0"
	defaultPort = 55555
)

// Server holds the listener's bind address.
type Server struct {
	Host string `ini:"host"`
	Port int    `ini:"port"`
}

// MySQL holds the durable-store connection contract. The store itself is
// out of scope (§1); only its configuration shape is.
type MySQL struct {
	Host     string `ini:"host"`
	Port     int    `ini:"port"`
	Username string `ini:"username"`
	Password string `ini:"password"`
}

// SSL holds the TLS certificate material paths consumed by the transport
// listener (§6).
type SSL struct {
	CertificateFile string `ini:"certificate_file"`
	KeyFile         string `ini:"key_file"`
	Password        string `ini:"password"`
}

type Config struct {
	Server Server `ini:"server"`
	MySQL  MySQL  `ini:"mysql"`
	SSL    SSL    `ini:"ssl"`
}

// ErrDefaultConfigWritten is returned by Load when no config file existed
// and a default one was just written. The caller (main) must exit
// non-zero so an operator can fill in real credentials and certificate
// paths, per §6.
var ErrDefaultConfigWritten = fmt.Errorf("wrote default config, edit it and restart")

func defaultConfig() *Config {
	return &Config{
		Server: Server{Host: defaultHost, Port: defaultPort},
		SSL: SSL{
			CertificateFile: "server.crt",
			KeyFile:         "server.key",
		},
	}
}

// Load reads path as an INI file into a Config. If path does not exist,
// it writes one populated with defaults and returns
// ErrDefaultConfigWritten instead of a usable Config.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if writeErr := writeDefault(path); writeErr != nil {
			return nil, fmt.Errorf("write default config: %w", writeErr)
		}
		return nil, ErrDefaultConfigWritten
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := file.MapTo(cfg); err != nil {
		return nil, fmt.Errorf("map config %s: %w", path, err)
	}

	// server.host/port are the only keys §6 treats as having defaults
	// when left blank in an otherwise-present config file; every other
	// key (credentials, certificate paths) is used as written, with no
	// default and no check for a blank value.
	cfg.Server.Host = safe.DefaultString(nonEmpty(cfg.Server.Host), defaultHost)
	cfg.Server.Port = safe.DefaultInt(nonZero(cfg.Server.Port), defaultPort)

	if err := validatePort(cfg.Server.Port, "server.port"); err != nil {
		return nil, err
	}
	if err := validatePort(cfg.MySQL.Port, "mysql.port"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// nonEmpty returns nil for an empty string, otherwise a pointer to it, so
// it can feed safe.DefaultString's nil-means-fallback convention.
func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nonZero is nonEmpty's counterpart for safe.DefaultInt.
func nonZero(i int) *int {
	if i == 0 {
		return nil
	}
	return &i
}

func validatePort(port int, name string) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s: %d out of range [0, 65535]", name, port)
	}
	return nil
}

func writeDefault(path string) error {
	file := ini.Empty()
	if err := file.ReflectFrom(defaultConfig()); err != nil {
		return err
	}
	return file.SaveTo(path)
}

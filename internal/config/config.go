// Package config loads the process-wide, immutable configuration value
// object from a JSON document and applies the defaults documented in
// spec.md §6. Configuration is loaded once at process start and passed by
// value into each subsystem constructor; nothing in this system reloads
// it at runtime.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// MasterServer is a configured upstream master. Host is the only field
// this system uses; Extra preserves whatever second tuple element the
// configuration file carries without acting on it (the source ignores it
// and this is preserved deliberately — see DESIGN.md).
type MasterServer struct {
	Host  string
	Extra string
}

// UnmarshalJSON accepts the documented [host, extra] pair shape.
func (m *MasterServer) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("master_servers entry must be a [host, extra] pair: %w", err)
	}
	m.Host = pair[0]
	m.Extra = pair[1]
	return nil
}

// Config is the set of recognized configuration keys from spec.md §6, plus
// database_path for the bbolt store file.
type Config struct {
	Host           string         `json:"host"`
	Port           int            `json:"port"`
	UseSSL         bool           `json:"use_ssl"`
	SSLCert        string         `json:"ssl_cert"`
	SSLKey         string         `json:"ssl_key"`
	UDPIP          string         `json:"udp_ip"`
	UDPPort        int            `json:"udp_port"`
	KnownProtocols []int          `json:"known_protocols"`
	MasterServers  []MasterServer `json:"master_servers"`
	DatabasePath   string         `json:"database_path"`
}

// Load reads and parses the JSON configuration document at path, applying
// defaults for any key it omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 5000
	}
	if c.UDPIP == "" {
		c.UDPIP = "0.0.0.0"
	}
	if c.UDPPort == 0 {
		c.UDPPort = 27950
	}
	if len(c.KnownProtocols) == 0 {
		c.KnownProtocols = []int{84}
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "masterserver.db"
	}
}

// HTTPAddr returns the host:port the read API should bind to.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// UDPAddr returns the host:port the UDP listener should bind to.
func (c *Config) UDPAddr() string {
	return fmt.Sprintf("%s:%d", c.UDPIP, c.UDPPort)
}

// MasterHosts returns the hostnames of configured upstream masters, in
// configured order.
func (c *Config) MasterHosts() []string {
	hosts := make([]string, 0, len(c.MasterServers))
	for _, m := range c.MasterServers {
		hosts = append(hosts, m.Host)
	}
	return hosts
}

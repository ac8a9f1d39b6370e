package models

import "strconv"

// ProxyType enumerates supported proxy schemes.
type ProxyType string

const (
	ProxyHTTP   ProxyType = "http"
	ProxySocks5 ProxyType = "socks5"
)

// ProxyConfig is the persisted proxy.yaml document. It is a read-only
// snapshot per operation and is never mutated by the services that use it.
type ProxyConfig struct {
	Enabled  bool      `yaml:"enabled" json:"enabled"`
	Type     ProxyType `yaml:"type" json:"type"`
	URL      string    `yaml:"url" json:"url"`
	Port     int       `yaml:"port" json:"port"`
	Username string    `yaml:"username,omitempty" json:"username,omitempty"`
	Password string    `yaml:"password,omitempty" json:"password,omitempty"`
}

// Address returns the host:port proxy address without scheme.
func (p *ProxyConfig) Address() string {
	if p.Port == 0 {
		return p.URL
	}
	return p.URL + ":" + strconv.Itoa(p.Port)
}

// Server returns the scheme-qualified proxy server URL for browser flags.
func (p *ProxyConfig) Server() string {
	scheme := "http"
	if p.Type == ProxySocks5 {
		scheme = "socks5"
	}
	return scheme + "://" + p.Address()
}

package config

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/onestraw/hrwlb/rendezvous"
)

// Configuration error.
var (
	ErrVirtualServerDuplicated   = errors.New("Virtual Server Duplicated")
	ErrPoolMemberDuplicated      = errors.New("Pool Member Duplicated")
	ErrVirtualServerNameEmpty    = errors.New("Virtual Server Name is not specified")
	ErrVirtualServerAddressEmpty = errors.New("Virtual Server Address is not specified")
)

// Server configuration.
type Server struct {
	Address string `json:"address" yaml:"address"`
}

// VirtualServer configuration.
//
// Hash names a rendezvous hash function (xxhash, xxh3, murmur3, blake3).
// HashKey selects the request attribute used as placement key, see
// balancer.HashKeyOpt.
type VirtualServer struct {
	Name       string   `json:"name" yaml:"name"`
	Address    string   `json:"address" yaml:"address"`
	ServerName string   `json:"server_name" yaml:"server_name"`
	Protocol   string   `json:"protocol" yaml:"protocol"`
	CertFile   string   `json:"cert_file" yaml:"cert_file"`
	KeyFile    string   `json:"key_file" yaml:"key_file"`
	Hash       string   `json:"hash" yaml:"hash"`
	HashKey    string   `json:"hash_key" yaml:"hash_key"`
	Pool       []Server `json:"pool" yaml:"pool"`
}

// Authentication configuration.
type Authentication struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// Controller configuration.
type Controller struct {
	Address string         `json:"address" yaml:"address"`
	Auth    Authentication `json:"auth" yaml:"auth"`
}

// Log configuration.
type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Configuration is the whole configuration.
type Configuration struct {
	Log        Log             `json:"log" yaml:"log"`
	Controller Controller      `json:"controller" yaml:"controller"`
	VServers   []VirtualServer `json:"virtual_server" yaml:"virtual_server"`
}

// Load reads the configFile and returns a Configuration object. Files ending
// in .yaml or .yml are parsed as YAML, anything else as JSON.
func Load(configFile string) (*Configuration, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		return decode(yaml.NewDecoder(file))
	default:
		return decode(json.NewDecoder(file))
	}
}

// LoadFromString returns a Configuration object parsed from JSON.
func LoadFromString(config string) (*Configuration, error) {
	return decode(json.NewDecoder(strings.NewReader(config)))
}

type decoder interface {
	Decode(v interface{}) error
}

func decode(d decoder) (*Configuration, error) {
	c := &Configuration{}
	if err := d.Decode(c); err != nil && err != io.EOF {
		return nil, err
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Configuration) check() error {
	set := make(map[string]bool)
	for _, vs := range c.VServers {
		if err := vs.Check(); err != nil {
			return err
		}
		if _, ok := set[vs.Name]; ok {
			return ErrVirtualServerDuplicated
		}
		set[vs.Name] = true
	}
	return nil
}

// Check validates a single virtual server.
func (vs *VirtualServer) Check() error {
	if vs.Name == "" {
		return ErrVirtualServerNameEmpty
	}
	if vs.Address == "" {
		return ErrVirtualServerAddressEmpty
	}
	if _, err := rendezvous.LookupHasher(vs.Hash); err != nil {
		return err
	}

	pset := make(map[string]bool)
	for _, p := range vs.Pool {
		if _, ok := pset[p.Address]; ok {
			return ErrPoolMemberDuplicated
		}
		pset[p.Address] = true
	}
	return nil
}

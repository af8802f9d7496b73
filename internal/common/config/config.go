package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ApiVersion string    `yaml:"apiVersion"`
	Devices    []Devices `yaml:"devices"`
}

type Devices struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

// Server holds process level settings read from the environment.
type Server struct {
	ConfigPath string `env:"RESTATECONFIG,required"`
	Listen     string `env:"RESTATE_LISTEN" envDefault:":8080"`
	LogLevel   string `env:"RESTATE_LOG_LEVEL" envDefault:"INFO"`
}

// LoadServer reads process settings, loading a .env file first when one exists.
func LoadServer(envFiles ...string) (*Server, error) {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	server := Server{}
	if err := env.Parse(&server); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &server, nil
}

// Load reads and parses the device config file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	config := Config{}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &config, nil
}

// Decode re-marshals a device's free-form config block into out.
func (d Devices) Decode(out any) error {
	raw, err := yaml.Marshal(d.Config)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}

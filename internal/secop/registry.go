package secop

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configured open-data endpoints.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig defines one Socrata dataset endpoint.
type SourceConfig struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	BaseURL        string `yaml:"base_url,omitempty"`
	AppToken       string `yaml:"app_token,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
	Description    string `yaml:"description,omitempty"`
}

// LoadRegistry reads the embedded sources.yaml, falling back to the given
// path for local development. Environment variables inside the YAML
// (e.g. ${SOCRATA_APP_TOKEN}) are expanded.
func LoadRegistry(path string) (*Registry, error) {
	data, err := sourcesYAML.ReadFile("config/sources.yaml")
	if err != nil {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}

	return &reg, nil
}

// Find returns the source config with the given ID.
func (r *Registry) Find(id string) (*SourceConfig, error) {
	for i := range r.Sources {
		if r.Sources[i].ID == id {
			return &r.Sources[i], nil
		}
	}
	return nil, fmt.Errorf("source id %q not found in registry", id)
}

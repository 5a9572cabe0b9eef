package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/quasar/pkg/errors"
)

// Load reads a pipeline config file, substitutes ${VAR} environment
// references, overlays it on the defaults, and validates the result.
func Load(path string) (*PipelineConfig, error) {
	cfg := DefaultPipelineConfig()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "config %s", path)
	}
	return cfg, nil
}

// LoadInto reads a YAML file into an arbitrary config struct with ${VAR}
// substitution and no validation.
func LoadInto(path string, config interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConfig, "read config %s", path)
	}
	content := substituteEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConfig, "parse config %s", path)
	}
	return nil
}

// Save writes a config struct as YAML.
func Save(path string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "marshal config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConfig, "write config %s", path)
	}
	return nil
}

// substituteEnvVars replaces every ${NAME} with the environment value of
// NAME. Unset variables substitute to empty, which validation then
// catches for required fields.
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			return content
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			return content
		}
		end += start
		content = content[:start] + os.Getenv(content[start+2:end]) + content[end+1:]
	}
}

package utils

import (
	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// LoadTOMLFile decodes configPath into config. Keys the target does not know
// are logged and otherwise ignored.
func LoadTOMLFile(configPath string, config any) error {
	md, err := toml.DecodeFile(configPath, config)
	if err != nil {
		log.Warnf("TOML parsing error in config file %s: %v. Attempting partial recovery...", configPath, err)
		return err
	}
	for _, key := range md.Undecoded() {
		log.Warnf("Unknown config key %q in %s", key.String(), configPath)
	}
	return nil
}

// LoadTOMLMap decodes configPath without a schema, so sections that are well
// formed can be salvaged from a file that fails typed decoding.
func LoadTOMLMap(configPath string) (map[string]any, error) {
	raw := make(map[string]any)
	if _, err := toml.DecodeFile(configPath, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Section returns the table named name, if data has one.
func Section(data map[string]any, name string) (map[string]any, bool) {
	s, ok := data[name].(map[string]any)
	return s, ok
}

// Set copies data[key] into *dst when it holds a T.
func Set[T string | bool](dst *T, data map[string]any, key string) {
	if v, ok := data[key].(T); ok {
		*dst = v
	}
}

// SetInt copies data[key] into *dst when it holds an integer. TOML integers decode as int64.
func SetInt(dst *int, data map[string]any, key string) {
	if v, ok := data[key].(int64); ok {
		*dst = int(v)
	}
}

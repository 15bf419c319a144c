package upload

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy configures the upload validator for a deployment profile. It is
// injected at construction so tests can substitute alternate policies.
type Policy struct {
	// MinSize and MaxSize bound accepted content length in bytes.
	MinSize int64 `yaml:"min_size"`
	MaxSize int64 `yaml:"max_size"`

	// AllowedTypes is the MIME allow-list the sniffed type must match.
	AllowedTypes []string `yaml:"allowed_types"`

	// KeyPrefix namespaces derived object-store keys.
	KeyPrefix string `yaml:"key_prefix"`

	// DefaultExtension is used when the declared filename has none.
	DefaultExtension string `yaml:"default_extension"`
}

// DefaultPolicy is the permissive multi-codec profile
func DefaultPolicy() Policy {
	return Policy{
		MinSize: 1024,
		MaxSize: 50 * 1024 * 1024,
		AllowedTypes: []string{
			"audio/wav",
			"audio/wave",
			"audio/x-wav",
			"audio/mpeg",
			"audio/mp3",
			"audio/ogg",
			"application/ogg",
			"audio/webm",
			"video/webm",
			"audio/mp4",
			"audio/x-m4a",
		},
		KeyPrefix:        "uploads",
		DefaultExtension: ".wav",
	}
}

// StrictWAVPolicy is the wav-only profile
func StrictWAVPolicy() Policy {
	p := DefaultPolicy()
	p.AllowedTypes = []string{"audio/wav", "audio/wave", "audio/x-wav"}
	return p
}

// LoadPolicy reads a policy profile from a YAML file. Fields absent from
// the file keep their defaults from the permissive profile.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read upload policy: %w", err)
	}

	policy := DefaultPolicy()
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, fmt.Errorf("parse upload policy: %w", err)
	}
	return policy, nil
}

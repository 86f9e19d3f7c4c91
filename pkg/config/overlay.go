package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Overlay is the part of the configuration that can change while the
// service runs. It is read from the file named by AUTHZ_CONFIG_FILE:
//
//	cache:
//	  resourceTtls:
//	    namespace: 15m
//	    spreadsheet: 30s
type Overlay struct {
	ResourceTTLs map[string]time.Duration
}

type overlayFile struct {
	Cache struct {
		ResourceTTLs map[string]string `yaml:"resourceTtls"`
	} `yaml:"cache"`
}

// ParseOverlay decodes an overlay document. Every TTL must parse as a
// positive duration.
func ParseOverlay(data []byte) (*Overlay, error) {
	var raw overlayFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse overlay: %w", err)
	}

	o := &Overlay{ResourceTTLs: make(map[string]time.Duration, len(raw.Cache.ResourceTTLs))}
	for rt, value := range raw.Cache.ResourceTTLs {
		ttl, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid TTL for %s: %w", rt, err)
		}
		if ttl <= 0 {
			return nil, fmt.Errorf("TTL for %s must be positive, got %s", rt, value)
		}
		o.ResourceTTLs[rt] = ttl
	}
	return o, nil
}

// LoadOverlay reads and parses the overlay file at path
func LoadOverlay(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overlay %s: %w", path, err)
	}
	return ParseOverlay(data)
}

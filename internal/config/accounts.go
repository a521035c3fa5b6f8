package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/tournevent/cttgateway/pkg/shipper"
	"go.yaml.in/yaml/v4"
)

// AccountsFile is the document holding the configured carrier accounts.
type AccountsFile struct {
	Accounts []*shipper.CarrierAccount `yaml:"accounts"`
}

// LoadAccounts reads carrier accounts from a YAML file and registers them.
func LoadAccounts(filename string) (*shipper.Registry, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}
	return ParseAccounts(data)
}

// ParseAccounts decodes a YAML accounts document into a registry. Every
// account is validated; duplicate IDs are rejected.
func ParseAccounts(data []byte) (*shipper.Registry, error) {
	var file AccountsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	registry := shipper.NewRegistry()
	seen := make(map[string]bool, len(file.Accounts))
	for i, a := range file.Accounts {
		if a == nil {
			return nil, fmt.Errorf("account #%d is empty", i+1)
		}
		a.Protocol = shipper.Protocol(strings.ToUpper(string(a.Protocol)))
		if seen[a.ID] {
			return nil, fmt.Errorf("duplicate account id %q", a.ID)
		}
		seen[a.ID] = true
		if err := registry.Register(a); err != nil {
			return nil, fmt.Errorf("account #%d: %w", i+1, err)
		}
	}
	return registry, nil
}

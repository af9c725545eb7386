package classifier

import (
	"fmt"
	"os"

	"github.com/upb/trailguard/models"
	"gopkg.in/yaml.v3"
)

// tableFile is the on-disk layout of a classification table:
//
//	sensitive_actions:
//	  CreateAccessKey: Critical
//	  AttachUserPolicy: High
type tableFile struct {
	SensitiveActions map[string]string `yaml:"sensitive_actions"`
}

// LoadTable reads a classification table from a YAML file.
// An empty path yields DefaultTable.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classification table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes a YAML classification table and rejects entries whose
// severity is outside the closed set.
func ParseTable(data []byte) (Table, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse classification table: %w", err)
	}
	if len(tf.SensitiveActions) == 0 {
		return nil, fmt.Errorf("classification table has no sensitive_actions")
	}

	table := make(Table, len(tf.SensitiveActions))
	for name, raw := range tf.SensitiveActions {
		if name == "" {
			return nil, fmt.Errorf("classification table contains an empty event name")
		}
		severity, err := models.ParseSeverity(raw)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", name, err)
		}
		table[name] = severity
	}
	return table, nil
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// decodeFile reads filePath and parses it as YAML when the extension says so,
// as JSON otherwise.
func decodeFile(filePath string, v interface{}) error {
	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", filePath, err)
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bytes, v)
	default:
		err = json.Unmarshal(bytes, v)
	}
	if err != nil {
		return fmt.Errorf("failed to parse file '%s': %w", filePath, err)
	}
	return nil
}

package registry

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-canary/types"
)

// ErrUnsupportedFormat is returned for manifests that are neither YAML nor
// TOML.
var ErrUnsupportedFormat = errors.New("unsupported manifest format")

// LoadManifest reads a suite manifest. The format is chosen by the file
// extension: .yaml and .yml for YAML, .toml for TOML.
func LoadManifest(path string) (*types.TestEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest file: %w", err)
	}

	var entry *types.TestEntry
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		entry, err = parseYAML(data)
	case ".toml":
		entry, err = parseTOML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing manifest file %s: %w", path, err)
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest file %s: %w", path, err)
	}
	return entry, nil
}

func parseYAML(data []byte) (*types.TestEntry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("manifest is empty")
	}
	var entry types.TestEntry
	if err := doc.Content[0].Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func parseTOML(data []byte) (*types.TestEntry, error) {
	var entry types.TestEntry
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&entry)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return &entry, nil
}

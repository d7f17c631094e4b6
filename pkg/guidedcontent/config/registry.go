package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tendant/guided-content/pkg/guidedcontent"
	"gopkg.in/yaml.v3"
)

// registryFile is the on-disk shape of a content kinds file: kinds keyed
// by id.
//
//	kinds:
//	  audio:
//	    blob_namespace: guided-audio
//	    accepted_media_kinds: [audio]
//	    supports_gender_tag: true
//	    max_attachments: 10
//	    max_bytes_per_file: 52428800
//	    accepted_mime_patterns: ["audio/*"]
type registryFile struct {
	Kinds map[string]guidedcontent.ContentKind `json:"kinds" yaml:"kinds" toml:"kinds"`
}

// LoadRegistry reads a content kinds file, picking the decoder by extension.
func LoadRegistry(path string) (*guidedcontent.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content kinds file: %w", err)
	}
	return ParseRegistry(data, filepath.Ext(path))
}

// ParseRegistry decodes a content kinds document in the format named by
// ext (".yaml", ".yml", ".toml" or ".json").
func ParseRegistry(data []byte, ext string) (*guidedcontent.Registry, error) {
	var file registryFile
	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	case ".json":
		err = json.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("unsupported content kinds file extension %q (use .yaml, .toml or .json)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse content kinds file: %w", err)
	}
	if len(file.Kinds) == 0 {
		return nil, fmt.Errorf("content kinds file defines no kinds")
	}

	kinds := make([]guidedcontent.ContentKind, 0, len(file.Kinds))
	for id, k := range file.Kinds {
		k.ID = id
		kinds = append(kinds, k)
	}
	return guidedcontent.NewRegistry(kinds...)
}

// BuildRegistry returns the registry the configuration selects.
func (c *ServerConfig) BuildRegistry() (*guidedcontent.Registry, error) {
	if c.ContentKindsFile == "" {
		return guidedcontent.DefaultRegistry(), nil
	}
	return LoadRegistry(c.ContentKindsFile)
}

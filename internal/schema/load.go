package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"graph-query-connector/internal/naming"
)

// Format identifies a descriptor file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath infers the encoding from a file extension; YAML is the default.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

type fileDescriptor struct {
	Collections []fileCollection `yaml:"collections" json:"collections"`
}

type fileCollection struct {
	Name          string             `yaml:"name" json:"name"`
	Type          string             `yaml:"type" json:"type"`
	Table         string             `yaml:"table" json:"table"`
	Description   string             `yaml:"description" json:"description"`
	Fields        []fileField        `yaml:"fields" json:"fields"`
	Relationships []fileRelationship `yaml:"relationships" json:"relationships"`
}

type fileField struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description" json:"description"`
}

type fileRelationship struct {
	Name         string `yaml:"name" json:"name"`
	Target       string `yaml:"target" json:"target"`
	LocalField   string `yaml:"local_field" json:"local_field"`
	ForeignField string `yaml:"foreign_field" json:"foreign_field"`
	Kind         string `yaml:"kind" json:"kind"`
}

// Load reads and validates a descriptor file.
func Load(path string, namer *naming.Namer) (*Descriptor, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	desc, err := Parse(data, FormatFromPath(path), namer)
	if err != nil {
		return nil, nil, fmt.Errorf("schema file %s: %w", path, err)
	}
	return desc, data, nil
}

// Parse decodes and validates descriptor content. Unknown keys are rejected
// so typos surface at load time rather than as missing fields at plan time.
func Parse(data []byte, format Format, namer *naming.Namer) (*Descriptor, error) {
	var raw fileDescriptor
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}
	case FormatYAML, "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported schema format %q", format)
	}

	collections := make([]Collection, 0, len(raw.Collections))
	var problems []string
	for _, rc := range raw.Collections {
		c := Collection{
			Name:        rc.Name,
			TypeName:    rc.Type,
			Table:       rc.Table,
			Description: rc.Description,
		}
		for _, rf := range rc.Fields {
			ft, err := ParseFieldType(rf.Type)
			if err != nil {
				problems = append(problems, fmt.Sprintf("collection %s: field %s: %v", rc.Name, rf.Name, err))
				continue
			}
			c.Fields = append(c.Fields, Field{Name: rf.Name, Description: rf.Description, Type: ft})
		}
		for _, rr := range rc.Relationships {
			c.Relationships = append(c.Relationships, Relationship{
				Name:         rr.Name,
				Target:       rr.Target,
				LocalField:   rr.LocalField,
				ForeignField: rr.ForeignField,
				Cardinality:  Cardinality(strings.ToLower(rr.Kind)),
			})
		}
		collections = append(collections, c)
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return New(collections, Options{Namer: namer})
}

package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
)

//go:embed schema.json
var embeddedSchema string

// VerifyAgainstEmbeddedSchema checks the config against the embedded JSON schema.
// Every config key must be described by the schema and every value must have the schema type.
func VerifyAgainstEmbeddedSchema(cfg *Config) error {
	return verify(cfg, []byte(embeddedSchema))
}

type schemaNode struct {
	Ref        string                 `json:"$ref"`
	Type       string                 `json:"type"`
	Properties map[string]*schemaNode `json:"properties"`
	Defs       map[string]*schemaNode `json:"$defs"`
	Minimum    *float64               `json:"minimum"`
	Maximum    *float64               `json:"maximum"`
}

func verify(cfg *Config, schemaData []byte) error {
	var root schemaNode
	if err := json.Unmarshal(schemaData, &root); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	// convert config to JSON for validation
	configData, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var configMap map[string]any
	if err := json.Unmarshal(configData, &configMap); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	var problems []string
	checkNode(&root, root.Defs, "", configMap, &problems)
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func resolve(node *schemaNode, defs map[string]*schemaNode) (*schemaNode, error) {
	for node != nil && node.Ref != "" {
		name := strings.TrimPrefix(node.Ref, "#/$defs/")
		def, ok := defs[name]
		if !ok {
			return nil, fmt.Errorf("unknown schema reference %s", node.Ref)
		}
		node = def
	}
	if node == nil {
		return nil, errors.New("empty schema node")
	}
	return node, nil
}

func checkNode(node *schemaNode, defs map[string]*schemaNode, path string, value any, problems *[]string) {
	node, err := resolve(node, defs)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s: %v", fieldName(path), err))
		return
	}

	switch v := value.(type) {
	case map[string]any:
		if node.Type != "object" {
			*problems = append(*problems, fmt.Sprintf("%s: expected %s, got object", fieldName(path), node.Type))
			return
		}
		for key, child := range v {
			prop, ok := node.Properties[key]
			if !ok {
				*problems = append(*problems, fmt.Sprintf("%s: not described by schema", join(path, key)))
				continue
			}
			checkNode(prop, defs, join(path, key), child, problems)
		}
	case string:
		if node.Type != "string" {
			*problems = append(*problems, fmt.Sprintf("%s: expected %s, got string", fieldName(path), node.Type))
		}
	case bool:
		if node.Type != "boolean" {
			*problems = append(*problems, fmt.Sprintf("%s: expected %s, got boolean", fieldName(path), node.Type))
		}
	case float64:
		if node.Type != "integer" && node.Type != "number" {
			*problems = append(*problems, fmt.Sprintf("%s: expected %s, got number", fieldName(path), node.Type))
			return
		}
		if node.Minimum != nil && v < *node.Minimum {
			*problems = append(*problems, fmt.Sprintf("%s: %v is below minimum %v", fieldName(path), v, *node.Minimum))
		}
		if node.Maximum != nil && v > *node.Maximum {
			*problems = append(*problems, fmt.Sprintf("%s: %v is above maximum %v", fieldName(path), v, *node.Maximum))
		}
	}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func fieldName(path string) string {
	if path == "" {
		return "config"
	}
	return path
}

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&Config{}), nil
}

package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// toJSON normalizes a config file to JSON bytes. YAML input is decoded
// loosely and re-encoded so one strict JSON decoder (with
// DisallowUnknownFields) validates both formats. The returned format
// tag is "json" or "yaml".
func toJSON(path string, data []byte) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, "json", nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
	}

	out, err := json.Marshal(stringifyKeys(doc))
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml to json: %w", err)
	}
	return out, "yaml", nil
}

// stringifyKeys rewrites every map key to a string. yaml.v3 produces
// map[any]any for some documents, which json.Marshal rejects.
func stringifyKeys(in any) any {
	switch doc := in.(type) {
	case map[any]any:
		out := make(map[string]any, len(doc))
		for k, v := range doc {
			out[fmt.Sprint(k)] = stringifyKeys(v)
		}
		return out
	case map[string]any:
		for k, v := range doc {
			doc[k] = stringifyKeys(v)
		}
		return doc
	case []any:
		for i, v := range doc {
			doc[i] = stringifyKeys(v)
		}
		return doc
	default:
		return in
	}
}

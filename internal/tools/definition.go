package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Executor runs a tool with already-validated arguments.
type Executor func(ctx context.Context, tc *Context, args map[string]any) (string, error)

// Param describes one argument. Type is a JSON Schema type name; a value such
// as "array|string" accepts either. Items names the element type of arrays.
type Param struct {
	Name        string
	Type        string
	Items       string
	Description string
}

type Definition struct {
	Name        string
	Description string
	Params      []Param
	Required    []string
	Executor    Executor

	// Limit overrides the default model-facing truncation for this tool.
	Limit OutputLimit
}

// Spec is the provider-neutral description handed to a model.
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

var toolNameRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

func validateToolName(name string) error {
	if !toolNameRE.MatchString(name) {
		return fmt.Errorf("invalid tool name %q", name)
	}
	return nil
}

// Schema renders the definition's parameters as a JSON Schema object.
func (d Definition) Schema() map[string]any {
	props := map[string]any{}
	for _, p := range d.Params {
		prop := map[string]any{}
		if t := schemaType(p.Type); t != nil {
			prop["type"] = t
		}
		if strings.TrimSpace(p.Items) != "" {
			prop["items"] = map[string]any{"type": p.Items}
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(d.Required) > 0 {
		out["required"] = append([]string{}, d.Required...)
	}
	return out
}

func schemaType(t string) any {
	t = strings.TrimSpace(t)
	if t == "" || t == "any" {
		return nil
	}
	if !strings.Contains(t, "|") {
		return t
	}
	var types []any
	for _, part := range strings.Split(t, "|") {
		if part = strings.TrimSpace(part); part != "" {
			types = append(types, part)
		}
	}
	return types
}

func (d Definition) Spec() Spec {
	return Spec{Name: d.Name, Description: d.Description, Parameters: d.Schema()}
}

// decodeArgs maps validated arguments onto a typed struct. Fields already set
// on dst act as defaults for absent keys.
func decodeArgs(args map[string]any, dst any) error {
	if err := decodeValue(args, dst); err != nil {
		return InvalidArgs("%v", err)
	}
	return nil
}

func decodeValue(v any, dst any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

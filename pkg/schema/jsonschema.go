package schema

import (
	json "github.com/goccy/go-json"
)

// JSONSchema renders t as a JSON Schema document. The root is never
// nullable; optional properties render as ["<type>", "null"].
func (t *Type) JSONSchema() map[string]interface{} {
	return t.render(false)
}

// MarshalJSON renders the JSON Schema form, so a *Type can be embedded
// directly in catalog entries and SCHEMA messages.
func (t *Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.JSONSchema())
}

func (t *Type) render(nullable bool) map[string]interface{} {
	out := map[string]interface{}{}

	jsonType := string(t.kind)
	if t.kind == KindDateTime {
		jsonType = string(KindString)
		out["format"] = "date-time"
	}
	if nullable {
		out["type"] = []string{jsonType, "null"}
	} else {
		out["type"] = []string{jsonType}
	}

	if len(t.enum) > 0 {
		enum := make([]interface{}, 0, len(t.enum)+1)
		for _, v := range t.enum {
			enum = append(enum, v)
		}
		// null must be listed or enum membership would reject it
		if nullable {
			enum = append(enum, nil)
		}
		out["enum"] = enum
	}

	switch t.kind {
	case KindObject:
		props := make(map[string]interface{}, len(t.properties))
		for _, p := range t.properties {
			rendered := p.Type.render(!p.Required)
			if p.Description != "" {
				rendered["description"] = p.Description
			}
			props[p.Name] = rendered
		}
		out["properties"] = props
		if req := t.RequiredNames(); len(req) > 0 {
			out["required"] = req
		}
		switch {
		case t.closed:
			out["additionalProperties"] = false
		case t.values != nil:
			out["additionalProperties"] = t.values.render(false)
		}
	case KindArray:
		out["items"] = t.items.render(false)
	}

	return out
}

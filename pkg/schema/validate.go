package schema

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Violation is one way in which a value fails to match its descriptor.
type Violation struct {
	// Path is a dotted path from the record root, e.g. destination.rate_limit_period
	// or allowed_http_methods[2]. Empty for the root itself.
	Path    string
	Message string
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// Strings renders violations for error messages and logs.
func Strings(vs []Violation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

// ConformResult separates root-level violations, which make a record
// non-conforming, from nested ones, which are reported but tolerated.
type ConformResult struct {
	Errors   []Violation
	Warnings []Violation
}

// OK reports whether the record conformed at the root.
func (r ConformResult) OK() bool { return len(r.Errors) == 0 }

// number is satisfied by json.Number from both encoding/json and go-json.
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

// Validate checks value against t at every depth. The value itself must not
// be null.
func (t *Type) Validate(value interface{}) []Violation {
	return validate(t, value, "", false, nil)
}

// Conform checks a record against an object descriptor at the root only.
// Root members are checked strictly: required members present and non-null,
// no undeclared members on a closed object, scalar types and enum values
// correct. Root integers and date-times are coerced to int64 and RFC 3339
// strings. Object and array members must have the right container type but
// their contents are passed through unchanged; mismatches inside them are
// returned as warnings.
//
// Undeclared members of a closed object are reported and omitted from the
// returned record.
func (t *Type) Conform(record map[string]interface{}) (map[string]interface{}, ConformResult) {
	var res ConformResult
	if t.kind != KindObject {
		res.Errors = append(res.Errors, Violation{Message: "conformance requires an object schema"})
		return record, res
	}
	if record == nil {
		res.Errors = append(res.Errors, Violation{Message: "record is null"})
		return record, res
	}

	out := make(map[string]interface{}, len(record))
	for _, p := range t.properties {
		v, present := record[p.Name]
		if !present {
			if p.Required {
				res.Errors = append(res.Errors, Violation{Path: p.Name, Message: "required property is missing"})
			}
			continue
		}
		if v == nil {
			if p.Required {
				res.Errors = append(res.Errors, Violation{Path: p.Name, Message: "null is not allowed"})
			}
			out[p.Name] = nil
			continue
		}

		switch p.Type.kind {
		case KindObject, KindArray:
			if !containerMatches(p.Type.kind, v) {
				res.Errors = append(res.Errors, typeMismatch(p.Name, p.Type, v))
			} else {
				res.Warnings = validate(p.Type, v, p.Name, false, res.Warnings)
			}
			out[p.Name] = v
		default:
			coerced, violation := coerceScalar(p.Type, v)
			if violation != "" {
				res.Errors = append(res.Errors, Violation{Path: p.Name, Message: violation})
				out[p.Name] = v
				continue
			}
			out[p.Name] = coerced
		}
	}

	for _, k := range sortedKeys(record) {
		if _, declared := t.index[k]; declared {
			continue
		}
		switch {
		case t.closed:
			res.Errors = append(res.Errors, Violation{Path: k, Message: "additional property is not allowed"})
		case t.values != nil:
			res.Errors = validate(t.values, record[k], k, false, res.Errors)
			out[k] = record[k]
		default:
			out[k] = record[k]
		}
	}

	return out, res
}

func validate(t *Type, v interface{}, path string, nullable bool, out []Violation) []Violation {
	if v == nil {
		if !nullable {
			out = append(out, Violation{Path: path, Message: "null is not allowed"})
		}
		return out
	}

	switch t.kind {
	case KindObject:
		obj, ok := v.(map[string]interface{})
		if !ok {
			return append(out, typeMismatch(path, t, v))
		}
		for _, p := range t.properties {
			pv, present := obj[p.Name]
			if !present {
				if p.Required {
					out = append(out, Violation{Path: join(path, p.Name), Message: "required property is missing"})
				}
				continue
			}
			out = validate(p.Type, pv, join(path, p.Name), !p.Required, out)
		}
		for _, k := range sortedKeys(obj) {
			if _, declared := t.index[k]; declared {
				continue
			}
			switch {
			case t.closed:
				out = append(out, Violation{Path: join(path, k), Message: "additional property is not allowed"})
			case t.values != nil:
				out = validate(t.values, obj[k], join(path, k), false, out)
			}
		}
	case KindArray:
		arr, ok := v.([]interface{})
		if !ok {
			return append(out, typeMismatch(path, t, v))
		}
		for i, item := range arr {
			out = validate(t.items, item, path+"["+strconv.Itoa(i)+"]", false, out)
		}
	default:
		if _, msg := coerceScalar(t, v); msg != "" {
			out = append(out, Violation{Path: path, Message: msg})
		}
	}
	return out
}

// coerceScalar returns the canonical form of a non-null scalar, or a
// violation message.
func coerceScalar(t *Type, v interface{}) (interface{}, string) {
	switch t.kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, mismatchMessage(t, v)
		}
		if len(t.enum) > 0 && !t.allows(s) {
			return nil, fmt.Sprintf("value %q is not one of [%s]", s, strings.Join(t.enum, " "))
		}
		return s, ""
	case KindBoolean:
		if _, ok := v.(bool); !ok {
			return nil, mismatchMessage(t, v)
		}
		return v, ""
	case KindInteger:
		n, ok := toInt64(v)
		if !ok {
			return nil, mismatchMessage(t, v)
		}
		return n, ""
	case KindDateTime:
		switch dt := v.(type) {
		case time.Time:
			return dt.Format(time.RFC3339Nano), ""
		case string:
			if _, err := time.Parse(time.RFC3339Nano, dt); err != nil {
				return nil, fmt.Sprintf("value %q is not an RFC 3339 date-time", dt)
			}
			return dt, ""
		default:
			return nil, mismatchMessage(t, v)
		}
	default:
		return nil, mismatchMessage(t, v)
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return floatToInt64(n)
	case number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	default:
		return 0, false
	}
}

// floatToInt64 accepts only whole values inside the int64 range. NaN and
// infinities fail the truncation check.
func floatToInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func containerMatches(kind Kind, v interface{}) bool {
	switch kind {
	case KindObject:
		_, ok := v.(map[string]interface{})
		return ok
	case KindArray:
		_, ok := v.([]interface{})
		return ok
	}
	return false
}

func typeMismatch(path string, t *Type, v interface{}) Violation {
	return Violation{Path: path, Message: mismatchMessage(t, v)}
}

func mismatchMessage(t *Type, v interface{}) string {
	return fmt.Sprintf("expected %s, got %s", t.kind, jsonTypeName(v))
}

func jsonTypeName(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case number, int, int32, int64, float32, float64:
		return "number"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case nil:
		return "null"
	default:
		return reflect.TypeOf(v).String()
	}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

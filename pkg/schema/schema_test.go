package schema

import (
	"math"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testDestination = ClosedObject(
		Required("id", String()),
		Required("name", String()),
		Prop("rate_limit", Integer()),
		Prop("rate_limit_period", Enum("second", "minute", "hour", "concurrent")),
		Prop("auth_method", Object()),
		Required("created_at", DateTime()),
	)

	testConnection = ClosedObject(
		Required("id", String()),
		Required("destination", testDestination),
		Prop("rules", Array(Object())),
		Prop("methods", Array(Enum("GET", "POST"))),
		Prop("env", MapOf(String())),
		Prop("paused", Boolean()),
	)
)

func decode(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var m map[string]interface{}
	require.NoError(t, dec.Decode(&m))
	return m
}

func validDestination() map[string]interface{} {
	return map[string]interface{}{
		"id":         "des_1",
		"name":       "prod",
		"created_at": "2024-01-02T03:04:05.000Z",
	}
}

func TestValidateAcceptsMinimalRecord(t *testing.T) {
	assert.Empty(t, testDestination.Validate(validDestination()))
}

func TestValidateOptionalAcceptsNullAndAbsence(t *testing.T) {
	rec := validDestination()
	rec["rate_limit"] = nil
	rec["rate_limit_period"] = nil
	assert.Empty(t, testDestination.Validate(rec))
}

func TestValidateViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		path   string
	}{
		{"missing required", func(r map[string]interface{}) { delete(r, "name") }, "name"},
		{"null required", func(r map[string]interface{}) { r["id"] = nil }, "id"},
		{"additional property", func(r map[string]interface{}) { r["surprise"] = true }, "surprise"},
		{"enum outside set", func(r map[string]interface{}) { r["rate_limit_period"] = "day" }, "rate_limit_period"},
		{"wrong scalar type", func(r map[string]interface{}) { r["rate_limit"] = "ten" }, "rate_limit"},
		{"fractional integer", func(r map[string]interface{}) { r["rate_limit"] = 1.5 }, "rate_limit"},
		{"bad date-time", func(r map[string]interface{}) { r["created_at"] = "yesterday" }, "created_at"},
		{"object expected", func(r map[string]interface{}) { r["auth_method"] = "basic" }, "auth_method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validDestination()
			tt.mutate(rec)

			vs := testDestination.Validate(rec)
			require.Len(t, vs, 1)
			assert.Equal(t, tt.path, vs[0].Path)
		})
	}
}

func TestValidateEnumMembership(t *testing.T) {
	rec := validDestination()
	rec["rate_limit_period"] = "hour"
	assert.Empty(t, testDestination.Validate(rec))

	rec["rate_limit_period"] = "day"
	vs := testDestination.Validate(rec)
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].String(), `"day" is not one of`)
}

func TestValidateNestedUsesSameRules(t *testing.T) {
	dest := validDestination()
	dest["rate_limit_period"] = "day"

	standalone := testDestination.Validate(dest)
	nested := testConnection.Validate(map[string]interface{}{
		"id":          "web_1",
		"destination": dest,
	})

	require.Len(t, standalone, 1)
	require.Len(t, nested, 1)
	assert.Equal(t, standalone[0].Message, nested[0].Message)
	assert.Equal(t, "destination."+standalone[0].Path, nested[0].Path)
}

func TestValidateArraysAndMaps(t *testing.T) {
	rec := map[string]interface{}{
		"id":          "web_1",
		"destination": validDestination(),
		"methods":     []interface{}{"GET", "DELETE"},
		"env":         map[string]interface{}{"A": "1", "B": 2.0},
		"rules":       []interface{}{map[string]interface{}{"type": "retry"}},
	}

	vs := testConnection.Validate(rec)
	require.Len(t, vs, 2)
	assert.Equal(t, "methods[1]", vs[0].Path)
	assert.Equal(t, "env.B", vs[1].Path)
}

func TestConformRootOnly(t *testing.T) {
	dest := validDestination()
	dest["rate_limit_period"] = "day"

	rec := decode(t, `{"id": "web_1", "paused": false, "destination": {}}`)
	rec["destination"] = dest

	out, res := testConnection.Conform(rec)
	assert.True(t, res.OK())
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "destination.rate_limit_period", res.Warnings[0].Path)
	assert.Equal(t, dest, out["destination"])
}

func TestConformRootErrors(t *testing.T) {
	rec := decode(t, `{"id": 7, "destination": "nope", "extra": 1}`)

	out, res := testConnection.Conform(rec)
	assert.False(t, res.OK())
	assert.Equal(t, []string{
		"id: expected string, got number",
		"destination: expected object, got string",
		"extra: additional property is not allowed",
	}, Strings(res.Errors))
	assert.NotContains(t, out, "extra")
}

func TestConformCoercesScalars(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := decode(t, `{"id": "des_1", "name": "n", "rate_limit": 10}`)
	rec["created_at"] = created

	out, res := testDestination.Conform(rec)
	require.True(t, res.OK(), Strings(res.Errors))
	assert.Equal(t, int64(10), out["rate_limit"])
	assert.Equal(t, "2024-01-02T03:04:05Z", out["created_at"])
}

func TestConformIntegerRange(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  int64
		ok    bool
	}{
		{"max int64", json.Number("9223372036854775807"), math.MaxInt64, true},
		{"whole float", json.Number("42.0"), 42, true},
		{"above int64", json.Number("100000000000000000000"), 0, false},
		{"below int64", json.Number("-100000000000000000000"), 0, false},
		{"two to the 63", json.Number("9223372036854775808"), 0, false},
		{"fraction", json.Number("1.5"), 0, false},
		{"large float64", float64(1e19), 0, false},
		{"nan", math.NaN(), 0, false},
		{"infinity", math.Inf(-1), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validDestination()
			rec["rate_limit"] = tt.value

			out, res := testDestination.Conform(rec)
			if !tt.ok {
				require.False(t, res.OK())
				assert.Equal(t, []string{"rate_limit: expected integer, got number"}, Strings(res.Errors))
				return
			}
			require.True(t, res.OK(), Strings(res.Errors))
			assert.Equal(t, tt.want, out["rate_limit"])
		})
	}
}

func TestConformOptionalNullKept(t *testing.T) {
	rec := validDestination()
	rec["rate_limit"] = nil

	out, res := testDestination.Conform(rec)
	assert.True(t, res.OK())
	v, ok := out["rate_limit"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestJSONSchemaRendering(t *testing.T) {
	raw, err := json.Marshal(testConnection)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, []interface{}{"object"}, doc["type"])
	assert.Equal(t, false, doc["additionalProperties"])
	assert.Equal(t, []interface{}{"id", "destination"}, doc["required"])

	props := doc["properties"].(map[string]interface{})
	dest := props["destination"].(map[string]interface{})
	assert.Equal(t, []interface{}{"object"}, dest["type"])
	assert.Equal(t, false, dest["additionalProperties"])

	destProps := dest["properties"].(map[string]interface{})
	period := destProps["rate_limit_period"].(map[string]interface{})
	assert.Equal(t, []interface{}{"string", "null"}, period["type"])
	assert.Equal(t, []interface{}{"second", "minute", "hour", "concurrent", nil}, period["enum"])

	created := destProps["created_at"].(map[string]interface{})
	assert.Equal(t, "date-time", created["format"])
	assert.Equal(t, []interface{}{"string"}, created["type"])

	env := props["env"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"type": []interface{}{"string"}}, env["additionalProperties"])

	rules := props["rules"].(map[string]interface{})
	assert.NotContains(t, rules["items"], "additionalProperties")
}

func TestObjectConstructorRejectsDuplicates(t *testing.T) {
	assert.Panics(t, func() {
		ClosedObject(Prop("id", String()), Required("id", String()))
	})
}

func TestDescribeCopies(t *testing.T) {
	p := Required("api_key", String())
	d := p.Describe("API Key for Hookdeck")

	assert.Empty(t, p.Description)
	assert.Equal(t, "API Key for Hookdeck", d.Description)
	assert.True(t, d.Required)
}

package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-hookdeck/pkg/compression"
	"github.com/ajitpratap0/tap-hookdeck/pkg/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs(args)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, cfg map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func fakeHookdeck(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv("TAP_HOOKDECK_API_KEY", "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			testutil.WriteJSON(t, w, http.StatusUnauthorized, map[string]string{"message": "invalid api key"})
			return
		}
		var models []map[string]interface{}
		if r.URL.Path == "/2024-09-01/requests" {
			models = []map[string]interface{}{
				{
					"id":          "req_1",
					"team_id":     "tm_1",
					"ingested_at": "2024-04-02T09:00:00.000Z",
					"updated_at":  "2024-04-02T09:00:00.000Z",
					"created_at":  "2024-04-02T09:00:00.000Z",
				},
				{
					"id":          "req_2",
					"team_id":     "tm_1",
					"ingested_at": "2024-04-03T09:00:00.000Z",
					"updated_at":  "2024-04-03T09:00:00.000Z",
					"created_at":  "2024-04-03T09:00:00.000Z",
				},
			}
		}
		testutil.WriteJSON(t, w, http.StatusOK, map[string]interface{}{
			"models":     models,
			"pagination": map[string]interface{}{"next": nil},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAbout(t *testing.T) {
	out, err := execute(t, "--about")
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "tap-hookdeck", doc["name"])

	out, err = execute(t, "--about", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: tap-hookdeck")
	assert.Contains(t, out, "settings_schema:")

	out, err = execute(t, "--about", "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "| api_key | True | string | API Key for Hookdeck |")
	assert.Contains(t, out, "| start_date | False | date-time | Earliest datetime to get data from |")

	_, err = execute(t, "--about", "--format", "toml")
	assert.Error(t, err)
}

func TestMissingAPIKeyIsFatal(t *testing.T) {
	t.Setenv("TAP_HOOKDECK_API_KEY", "")
	path := writeConfig(t, map[string]interface{}{"start_date": "2024-01-01T00:00:00Z"})

	_, err := execute(t, "--config", path, "--discover")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")
}

func TestDiscover(t *testing.T) {
	path := writeConfig(t, map[string]interface{}{"api_key": "sk_test"})

	out, err := execute(t, "--config", path, "--discover")
	require.NoError(t, err)

	var catalog struct {
		Streams []struct {
			TapStreamID       string `json:"tap_stream_id"`
			ReplicationMethod string `json:"replication_method"`
		} `json:"streams"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &catalog))
	require.Len(t, catalog.Streams, 6)
	assert.Equal(t, "connections", catalog.Streams[0].TapStreamID)
	assert.Equal(t, "requests", catalog.Streams[5].TapStreamID)
	assert.Equal(t, "INCREMENTAL", catalog.Streams[5].ReplicationMethod)
}

func TestConnectionCheck(t *testing.T) {
	srv := fakeHookdeck(t)

	ok := writeConfig(t, map[string]interface{}{"api_key": "sk_test", "api_url": srv.URL})
	_, err := execute(t, "--config", ok, "--test")
	assert.NoError(t, err)

	bad := writeConfig(t, map[string]interface{}{"api_key": "sk_wrong", "api_url": srv.URL})
	_, err = execute(t, "--config", bad, "--test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSyncWritesRecordsAndState(t *testing.T) {
	srv := fakeHookdeck(t)
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(statePath,
		[]byte(`{"bookmarks":{"requests":{"replication_key":"ingested_at","replication_key_value":"2024-04-01T00:00:00+00:00"}}}`), 0o600))

	base := writeConfig(t, map[string]interface{}{"api_key": "sk_test"})
	override := writeConfig(t, map[string]interface{}{
		"api_url": srv.URL,
		"state":   map[string]interface{}{"uri": "file://" + filepath.Join(dir, "saved.json")},
		"log":     map[string]interface{}{"level": "warn"},
	})

	out, err := execute(t, "--config", base, "--config", override, "--state", statePath)
	require.NoError(t, err)

	msgs := testutil.DecodeLines(t, []byte(out))
	var records []string
	var lastState map[string]interface{}
	for _, m := range msgs {
		switch m["type"] {
		case "RECORD":
			records = append(records, m["record"].(map[string]interface{})["id"].(string))
		case "STATE":
			lastState = m["value"].(map[string]interface{})
		}
	}
	assert.Equal(t, []string{"req_1", "req_2"}, records)
	require.NotNil(t, lastState)
	bookmark := lastState["bookmarks"].(map[string]interface{})["requests"].(map[string]interface{})
	assert.Equal(t, "2024-04-03T09:00:00.000Z", bookmark["replication_key_value"])

	saved, err := os.ReadFile(filepath.Join(dir, "saved.json"))
	require.NoError(t, err)
	assert.Contains(t, string(saved), "2024-04-03T09:00:00.000Z")
}

func TestSyncToCompressedFile(t *testing.T) {
	srv := fakeHookdeck(t)
	outPath := filepath.Join(t.TempDir(), "messages.jsonl")
	cfg := writeConfig(t, map[string]interface{}{
		"api_key": "sk_test",
		"api_url": srv.URL,
		"output":  map[string]interface{}{"path": outPath, "compression": "gzip"},
	})

	stdout, err := execute(t, "--config", cfg)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	f, err := os.Open(outPath + ".gz")
	require.NoError(t, err)
	defer f.Close()
	r, err := compression.NewReader(f, compression.Gzip)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(string(data), `"type":"RECORD"`))
	assert.Equal(t, 6, strings.Count(string(data), `"type":"SCHEMA"`))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "tap-hookdeck v"))
}

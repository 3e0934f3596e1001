package singer

import (
	"io"
	"os"

	json "github.com/goccy/go-json"

	"github.com/ajitpratap0/tap-hookdeck/pkg/connector/core"
	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
)

// Replication methods
const (
	ReplicationIncremental = "INCREMENTAL"
	ReplicationFullTable   = "FULL_TABLE"
)

// Inclusion values
const (
	InclusionAutomatic = "automatic"
	InclusionAvailable = "available"
)

// Catalog lists the streams a tap can produce and which ones to sync.
type Catalog struct {
	Streams []*CatalogEntry `json:"streams"`
}

// CatalogEntry describes one stream.
type CatalogEntry struct {
	TapStreamID       string          `json:"tap_stream_id"`
	Stream            string          `json:"stream"`
	Schema            interface{}     `json:"schema"`
	KeyProperties     []string        `json:"key_properties"`
	ReplicationKey    string          `json:"replication_key,omitempty"`
	ReplicationMethod string          `json:"replication_method,omitempty"`
	Metadata          []MetadataEntry `json:"metadata"`
}

// MetadataEntry attaches metadata to the stream (empty breadcrumb) or to a
// property (["properties", name]).
type MetadataEntry struct {
	Breadcrumb []string               `json:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// NewCatalog builds the discovery catalog for streams. Every stream and
// property is selected by default.
func NewCatalog(streams []*core.StreamDescriptor) *Catalog {
	c := &Catalog{Streams: make([]*CatalogEntry, 0, len(streams))}
	for _, d := range streams {
		method := ReplicationFullTable
		var validKeys []string
		if d.Incremental() {
			method = ReplicationIncremental
			validKeys = []string{d.ReplicationKey}
		}

		streamMeta := map[string]interface{}{
			"inclusion":                 InclusionAvailable,
			"selected-by-default":       true,
			"table-key-properties":      d.PrimaryKeys,
			"forced-replication-method": method,
			"schema-name":               d.Name,
		}
		if validKeys != nil {
			streamMeta["valid-replication-keys"] = validKeys
		}
		meta := []MetadataEntry{{Breadcrumb: []string{}, Metadata: streamMeta}}

		automatic := map[string]bool{d.ReplicationKey: d.Incremental()}
		for _, pk := range d.PrimaryKeys {
			automatic[pk] = true
		}
		for _, p := range d.Schema.Properties() {
			inclusion := InclusionAvailable
			if automatic[p.Name] {
				inclusion = InclusionAutomatic
			}
			meta = append(meta, MetadataEntry{
				Breadcrumb: []string{"properties", p.Name},
				Metadata: map[string]interface{}{
					"inclusion":           inclusion,
					"selected-by-default": true,
				},
			})
		}

		c.Streams = append(c.Streams, &CatalogEntry{
			TapStreamID:       d.Name,
			Stream:            d.Name,
			Schema:            d.Schema,
			KeyProperties:     d.PrimaryKeys,
			ReplicationKey:    d.ReplicationKey,
			ReplicationMethod: method,
			Metadata:          meta,
		})
	}
	return c
}

// ReadCatalog decodes a catalog document.
func ReadCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse catalog")
	}
	return &c, nil
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from --catalog
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open catalog").WithDetail("path", path)
	}
	defer f.Close()
	return ReadCatalog(f)
}

// Entry finds a stream by tap_stream_id.
func (c *Catalog) Entry(streamID string) *CatalogEntry {
	for _, e := range c.Streams {
		if e.TapStreamID == streamID {
			return e
		}
	}
	return nil
}

// IsSelected reports whether a stream should be synced. A nil catalog
// selects everything; a stream missing from a catalog is not selected.
func (c *Catalog) IsSelected(streamID string) bool {
	if c == nil {
		return true
	}
	e := c.Entry(streamID)
	return e != nil && e.Selected()
}

// Selected reads the stream-level metadata: an explicit "selected" wins,
// otherwise "selected-by-default" applies.
func (e *CatalogEntry) Selected() bool {
	meta := e.StreamMetadata()
	if meta == nil {
		return false
	}
	if v, ok := meta["selected"].(bool); ok {
		return v
	}
	v, _ := meta["selected-by-default"].(bool)
	return v
}

// StreamMetadata returns the metadata with an empty breadcrumb, or nil.
func (e *CatalogEntry) StreamMetadata() map[string]interface{} {
	for _, m := range e.Metadata {
		if len(m.Breadcrumb) == 0 {
			return m.Metadata
		}
	}
	return nil
}

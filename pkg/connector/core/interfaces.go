// Package core defines the stream model shared by the tap and its sync runner.
package core

import (
	"context"

	"github.com/ajitpratap0/tap-hookdeck/pkg/schema"
)

// Record is one resource object as decoded from the API.
type Record = map[string]interface{}

// EmitFunc receives records in page order. Returning an error stops the
// read.
type EmitFunc func(Record) error

// Source is the interface a tap implements for the sync runner.
type Source interface {
	// Name returns the tap's executable name, e.g. tap-hookdeck
	Name() string

	// Streams returns the tap's streams in sync order.
	Streams() []*StreamDescriptor

	// ReadStream pages through one stream, passing each record to emit.
	ReadStream(ctx context.Context, stream *StreamDescriptor, sc *SyncContext, emit EmitFunc) error

	// Check verifies that the configured credentials are accepted.
	Check(ctx context.Context) error
}

// Capability names reported by --about.
const (
	CapabilityCatalog  = "catalog"
	CapabilityDiscover = "discover"
	CapabilityState    = "state"
	CapabilityAbout    = "about"
)

// ConnectorMetadata describes a tap for --about.
type ConnectorMetadata struct {
	Name         string       `json:"name" yaml:"name"`
	Description  string       `json:"description" yaml:"description"`
	Version      string       `json:"version" yaml:"version"`
	Capabilities []string     `json:"capabilities" yaml:"capabilities"`
	Settings     *schema.Type `json:"settings_schema" yaml:"-"`
}

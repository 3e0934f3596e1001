package core

import (
	"net/url"
	"time"

	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
	"github.com/ajitpratap0/tap-hookdeck/pkg/schema"
)

// ParamsHook adds stream-specific query parameters. It runs after the base
// parameters are built and may add to, but should not remove, them.
type ParamsHook func(params url.Values)

// StreamDescriptor is the static definition of one resource stream.
type StreamDescriptor struct {
	// Name is the stream identifier, e.g. issue_triggers
	Name string
	// Path is relative to the versioned API base, e.g. /issue-triggers
	Path string
	// PrimaryKeys name the fields that identify a record
	PrimaryKeys []string
	// ReplicationKey names a date-time field for incremental sync, if any
	ReplicationKey string
	// Sorted asks the API to return records in ascending ReplicationKey order
	Sorted bool
	// Schema is the closed object descriptor every record must match
	Schema *schema.Type
	// ExtraParams is applied last when building page parameters
	ExtraParams ParamsHook
}

// Validate rejects inconsistent descriptors. A sorted stream must name its
// replication key, and every key must be a declared schema property.
func (d *StreamDescriptor) Validate() error {
	if d.Name == "" {
		return errors.New(errors.ErrorTypeValidation, "stream name is required")
	}
	invalid := func(msg string) error {
		return errors.New(errors.ErrorTypeValidation, msg).WithDetail("stream", d.Name)
	}
	if d.Path == "" || d.Path[0] != '/' {
		return invalid("stream path must start with /")
	}
	if d.Schema == nil || d.Schema.Kind() != schema.KindObject {
		return invalid("stream schema must be an object")
	}
	if len(d.PrimaryKeys) == 0 {
		return invalid("stream must declare a primary key")
	}
	for _, pk := range d.PrimaryKeys {
		if _, ok := d.Schema.Property(pk); !ok {
			return invalid("primary key " + pk + " is not a schema property")
		}
	}
	if d.Sorted && d.ReplicationKey == "" {
		return invalid("sorted stream requires a replication key")
	}
	if d.ReplicationKey != "" {
		p, ok := d.Schema.Property(d.ReplicationKey)
		if !ok {
			return invalid("replication key " + d.ReplicationKey + " is not a schema property")
		}
		if p.Type.Kind() != schema.KindDateTime {
			return invalid("replication key " + d.ReplicationKey + " must be a date-time")
		}
	}
	return nil
}

// Incremental reports whether the stream declares a replication key.
func (d *StreamDescriptor) Incremental() bool {
	return d.ReplicationKey != ""
}

// SyncContext carries the per-run position of one stream.
type SyncContext struct {
	// Bookmark is the replication key value persisted by a prior run
	Bookmark string
	// StartDate is the configured lower bound, used when there is no bookmark
	StartDate *time.Time
}

// StartingTimestamp resolves the lower bound for an incremental read: the
// bookmark if present, else the start date, else nil.
func (c *SyncContext) StartingTimestamp() (*time.Time, error) {
	if c == nil {
		return nil, nil
	}
	if c.Bookmark != "" {
		t, err := time.Parse(time.RFC3339Nano, c.Bookmark)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeState, "bookmark is not an RFC 3339 date-time").
				WithDetail("bookmark", c.Bookmark)
		}
		return &t, nil
	}
	return c.StartDate, nil
}

package hookdeck

import (
	"net/url"

	"github.com/ajitpratap0/tap-hookdeck/pkg/connector/core"
)

// Stream names, in sync order.
const (
	StreamConnections     = "connections"
	StreamDestinations    = "destinations"
	StreamSources         = "sources"
	StreamIssueTriggers   = "issue_triggers"
	StreamTransformations = "transformations"
	StreamRequests        = "requests"
)

// includeArchived lists archived connections alongside active ones, oldest
// first. Connections declare no replication key, so no order_by is sent.
//
// dir=asc without order_by is intentional. It is the exact query earlier
// Hookdeck taps put on the wire: they mark connections sorted with a null
// order_by, the HTTP layer drops the null, and only dir=asc survives. The
// API then sorts by its default key in ascending order.
func includeArchived(params url.Values) {
	params.Set("archived", "true")
	params.Set("dir", "asc")
}

// Streams returns fresh descriptors for the six Hookdeck resources in sync
// order. Schemas are shared between calls.
func Streams() []*core.StreamDescriptor {
	return []*core.StreamDescriptor{
		{
			Name:        StreamConnections,
			Path:        "/connections",
			PrimaryKeys: []string{"id"},
			Schema:      ConnectionSchema,
			ExtraParams: includeArchived,
		},
		{
			Name:        StreamDestinations,
			Path:        "/destinations",
			PrimaryKeys: []string{"id"},
			Schema:      DestinationSchema,
		},
		{
			Name:        StreamSources,
			Path:        "/sources",
			PrimaryKeys: []string{"id"},
			Schema:      SourceSchema,
		},
		{
			Name:        StreamIssueTriggers,
			Path:        "/issue-triggers",
			PrimaryKeys: []string{"id"},
			Schema:      IssueTriggerSchema,
		},
		{
			Name:        StreamTransformations,
			Path:        "/transformations",
			PrimaryKeys: []string{"id"},
			Schema:      TransformationSchema,
		},
		{
			Name:           StreamRequests,
			Path:           "/requests",
			PrimaryKeys:    []string{"id"},
			ReplicationKey: "ingested_at",
			Schema:         RequestSchema,
		},
	}
}

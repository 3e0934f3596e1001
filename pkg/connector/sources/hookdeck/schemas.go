package hookdeck

import (
	"github.com/ajitpratap0/tap-hookdeck/pkg/schema"
)

// HTTP methods a destination may use or a source may accept.
var httpMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

// DestinationSchema describes a destination. It is the schema of the
// destinations stream and of connections.destination.
var DestinationSchema = schema.ClosedObject(
	schema.Required("id", schema.String()),
	schema.Required("name", schema.String()),
	schema.Prop("description", schema.String()),
	schema.Required("team_id", schema.String()),
	schema.Prop("path_forwarding_disabled", schema.Boolean()),
	schema.Prop("url", schema.String()),
	schema.Prop("cli_path", schema.String()),
	schema.Prop("rate_limit", schema.Integer()),
	schema.Prop("rate_limit_period", schema.Enum("second", "minute", "hour", "concurrent")),
	schema.Prop("http_method", schema.Enum(httpMethods...)),
	schema.Prop("auth_method", schema.Object()),
	schema.Prop("archived_at", schema.DateTime()),
	schema.Required("updated_at", schema.DateTime()),
	schema.Required("created_at", schema.DateTime()),
	schema.Prop("disabled_at", schema.DateTime()),
)

// SourceSchema describes a source. It is the schema of the sources stream
// and of connections.source.
var SourceSchema = schema.ClosedObject(
	schema.Required("id", schema.String()),
	schema.Required("name", schema.String()),
	schema.Prop("description", schema.String()),
	schema.Required("team_id", schema.String()),
	schema.Prop("url", schema.String()),
	schema.Prop("verification", schema.Object()),
	schema.Prop("allowed_http_methods", schema.Array(schema.Enum(httpMethods...))),
	schema.Prop("custom_response", schema.Object(
		schema.Required("content_type", schema.Enum("json", "text", "xml")),
		schema.Required("body", schema.String()),
	)),
	schema.Prop("archived_at", schema.DateTime()),
	schema.Required("updated_at", schema.DateTime()),
	schema.Required("created_at", schema.DateTime()),
	schema.Prop("disabled_at", schema.DateTime()),
)

// ConnectionSchema describes a connection with its destination and source
// embedded.
var ConnectionSchema = schema.ClosedObject(
	schema.Required("id", schema.String()),
	schema.Prop("name", schema.String()),
	schema.Prop("full_name", schema.String()),
	schema.Prop("description", schema.String()),
	schema.Required("team_id", schema.String()),
	schema.Required("destination", DestinationSchema),
	schema.Required("source", SourceSchema),
	schema.Prop("rules", schema.Array(schema.Object())),
	schema.Prop("archived_at", schema.DateTime()),
	schema.Prop("paused_at", schema.DateTime()),
	schema.Required("updated_at", schema.DateTime()),
	schema.Required("created_at", schema.DateTime()),
)

// IssueTriggerSchema describes an issue trigger and its notification channels.
var IssueTriggerSchema = schema.ClosedObject(
	schema.Required("id", schema.String()),
	schema.Prop("team_id", schema.String()),
	schema.Prop("name", schema.String()),
	schema.Required("type", schema.Enum("delivery", "transformation", "backpressure")),
	schema.Prop("configs", schema.Object()),
	schema.Prop("channels", schema.Object(
		schema.Prop("slack", schema.Object(
			schema.Required("channel_name", schema.String()),
		)),
		schema.Prop("opsgenie", schema.Object()),
		schema.Prop("email", schema.Object()),
	)),
	schema.Prop("disabled_at", schema.DateTime()),
	schema.Required("updated_at", schema.DateTime()),
	schema.Required("created_at", schema.DateTime()),
	schema.Prop("deleted_at", schema.DateTime()),
)

// TransformationSchema describes a transformation. env holds arbitrary
// string variables.
var TransformationSchema = schema.ClosedObject(
	schema.Required("id", schema.String()),
	schema.Required("team_id", schema.String()),
	schema.Required("name", schema.String()),
	schema.Required("code", schema.String()),
	schema.Prop("encrypted_env", schema.String()),
	schema.Prop("iv", schema.String()),
	schema.Prop("env", schema.MapOf(schema.String())),
	schema.Required("updated_at", schema.DateTime()),
	schema.Required("created_at", schema.DateTime()),
)

// RequestSchema describes an inbound request received by a source.
var RequestSchema = schema.ClosedObject(
	schema.Required("id", schema.String()),
	schema.Required("team_id", schema.String()),
	schema.Prop("verified", schema.Boolean()),
	schema.Prop("original_event_data_id", schema.String()),
	schema.Prop("rejection_cause", schema.Enum(
		"SOURCE_ARCHIVED",
		"NO_WEBHOOK",
		"VERIFICATION_FAILED",
		"UNSUPPORTED_HTTP_METHOD",
		"UNSUPPORTED_CONTENT_TYPE",
		"UNPARSABLE_JSON",
		"PAYLOAD_TOO_LARGE",
		"INGESTION_FATAL",
		"UNKNOWN",
	)),
	schema.Prop("ingest_priority", schema.Enum("NORMAL", "LOW")),
	schema.Prop("ingested_at", schema.DateTime()),
	schema.Prop("source_id", schema.String()),
	schema.Prop("events_count", schema.Integer()),
	schema.Prop("cli_events_count", schema.Integer()),
	schema.Prop("ignored_count", schema.Integer()),
	schema.Required("updated_at", schema.DateTime()),
	schema.Required("created_at", schema.DateTime()),
)

// ConfigSchema is the tap's settings schema, rendered by --about. It is
// open because run settings such as log and state share the same file.
var ConfigSchema = schema.Object(
	schema.Required("api_key", schema.String()).Describe("API Key for Hookdeck"),
	schema.Prop("start_date", schema.DateTime()).Describe("Earliest datetime to get data from"),
)

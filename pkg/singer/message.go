// Package singer implements the Singer tap wire format: SCHEMA, RECORD and
// STATE messages written one JSON object per line, the discovery catalog
// and the bookmark state document.
package singer

import (
	"bufio"
	"io"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
	"github.com/ajitpratap0/tap-hookdeck/pkg/schema"
)

// MessageType names a Singer message.
type MessageType string

const (
	MessageTypeSchema MessageType = "SCHEMA"
	MessageTypeRecord MessageType = "RECORD"
	MessageTypeState  MessageType = "STATE"
)

// Message is the union of the Singer message shapes.
type Message struct {
	Type               MessageType            `json:"type"`
	Stream             string                 `json:"stream,omitempty"`
	Record             map[string]interface{} `json:"record,omitempty"`
	TimeExtracted      *time.Time             `json:"time_extracted,omitempty"`
	Schema             *schema.Type           `json:"schema,omitempty"`
	KeyProperties      []string               `json:"key_properties,omitempty"`
	BookmarkProperties []string               `json:"bookmark_properties,omitempty"`
	Value              interface{}            `json:"value,omitempty"`
}

// Writer serializes messages as JSON lines. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	buf *bufio.Writer
	enc *json.Encoder
}

// NewWriter returns a buffered message writer. Call Flush before exit.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriterSize(w, 64*1024)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Writer{buf: buf, enc: enc}
}

// Write encodes one message followed by a newline.
func (w *Writer) Write(msg *Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(msg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write singer message").
			WithDetail("type", string(msg.Type)).
			WithDetail("stream", msg.Stream)
	}
	return nil
}

// WriteSchema announces a stream's schema. It must precede the stream's
// records.
func (w *Writer) WriteSchema(stream string, s *schema.Type, keyProperties, bookmarkProperties []string) error {
	return w.Write(&Message{
		Type:               MessageTypeSchema,
		Stream:             stream,
		Schema:             s,
		KeyProperties:      keyProperties,
		BookmarkProperties: bookmarkProperties,
	})
}

// WriteRecord emits one record.
func (w *Writer) WriteRecord(stream string, record map[string]interface{}, extractedAt time.Time) error {
	ts := extractedAt.UTC()
	return w.Write(&Message{
		Type:          MessageTypeRecord,
		Stream:        stream,
		Record:        record,
		TimeExtracted: &ts,
	})
}

// WriteState emits the current bookmarks. The downstream target echoes the
// latest one back as the next run's --state.
func (w *Writer) WriteState(state *State) error {
	if err := w.Write(&Message{Type: MessageTypeState, Value: state}); err != nil {
		return err
	}
	// targets persist state when they see it, so it must not sit in the buffer
	return w.Flush()
}

// Flush writes buffered messages to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush singer messages")
	}
	return nil
}

package singer

import (
	"bytes"
	"io"

	json "github.com/goccy/go-json"

	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
)

// State is the bookmark document exchanged between runs:
//
//	{"bookmarks": {"requests": {"replication_key": "ingested_at", "replication_key_value": "2024-01-01T00:00:00Z"}}}
type State struct {
	Bookmarks map[string]*Bookmark `json:"bookmarks"`
}

// Bookmark is the persisted position of one stream.
type Bookmark struct {
	ReplicationKey      string `json:"replication_key,omitempty"`
	ReplicationKeyValue string `json:"replication_key_value,omitempty"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Bookmarks: map[string]*Bookmark{}}
}

// ReadState decodes a state document. Empty input yields an empty state.
func ReadState(r io.Reader) (*State, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to read state")
	}
	return ParseState(data)
}

// ParseState decodes a state document held in memory.
func ParseState(data []byte) (*State, error) {
	s := NewState()
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to parse state")
	}
	if s.Bookmarks == nil {
		s.Bookmarks = map[string]*Bookmark{}
	}
	return s, nil
}

// Marshal encodes the state document.
func (s *State) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// BookmarkValue returns the stored value for stream, or "" when there is
// none or it was recorded for a different replication key.
func (s *State) BookmarkValue(stream, replicationKey string) string {
	if s == nil {
		return ""
	}
	b, ok := s.Bookmarks[stream]
	if !ok || b == nil {
		return ""
	}
	if b.ReplicationKey != "" && b.ReplicationKey != replicationKey {
		return ""
	}
	return b.ReplicationKeyValue
}

// SetBookmark records the position of stream.
func (s *State) SetBookmark(stream, replicationKey, value string) {
	if s.Bookmarks == nil {
		s.Bookmarks = map[string]*Bookmark{}
	}
	s.Bookmarks[stream] = &Bookmark{
		ReplicationKey:      replicationKey,
		ReplicationKeyValue: value,
	}
}

package state

import (
	"context"
	"io"
	"net/url"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
	"github.com/ajitpratap0/tap-hookdeck/pkg/singer"
)

// GCSStore keeps state in one Cloud Storage object.
type GCSStore struct {
	client *storage.Client
	bucket string
	object string
}

// NewGCSStore builds a client from Application Default Credentials, or
// from ?credentials_file= when given.
func NewGCSStore(ctx context.Context, u *url.URL) (*GCSStore, error) {
	bucket, object, err := splitBucketKey(u)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if f := u.Query().Get("credentials_file"); f != "" {
		opts = append(opts, option.WithCredentialsFile(f))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create GCS client")
	}
	return &GCSStore{client: client, bucket: bucket, object: object}, nil
}

// Load reads the object. A missing object is an empty state.
func (s *GCSStore) Load(ctx context.Context) (*singer.State, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return singer.NewState(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to open state object").
			WithDetail("location", s.Location())
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to read state object")
	}
	return singer.ParseState(data)
}

// Save overwrites the object. The upload is committed by Close.
func (s *GCSStore) Save(ctx context.Context, st *singer.State) error {
	data, err := st.Marshal()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to encode state")
	}

	w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return errors.Wrap(err, errors.ErrorTypeState, "failed to write state object")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to commit state object").
			WithDetail("location", s.Location())
	}
	return nil
}

// Close closes the storage client.
func (s *GCSStore) Close() error { return s.client.Close() }

// Location returns the gs:// address of the object.
func (s *GCSStore) Location() string { return "gs://" + s.bucket + "/" + s.object }

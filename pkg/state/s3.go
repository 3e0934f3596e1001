package state

import (
	"bytes"
	"context"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
	"github.com/ajitpratap0/tap-hookdeck/pkg/singer"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps state in one S3 object.
type S3Store struct {
	client S3API
	bucket string
	key    string
}

// S3Options are read from the state URI query string.
type S3Options struct {
	Region   string
	Endpoint string
}

func parseS3URI(u *url.URL) (bucket, key string, opts S3Options, err error) {
	bucket, key, err = splitBucketKey(u)
	if err != nil {
		return "", "", S3Options{}, err
	}
	q := u.Query()
	return bucket, key, S3Options{Region: q.Get("region"), Endpoint: q.Get("endpoint")}, nil
}

// NewS3Store builds a client from the default AWS credential chain.
// ?region= overrides the region and ?endpoint= targets S3-compatible
// services with path-style addressing.
func NewS3Store(ctx context.Context, u *url.URL) (*S3Store, error) {
	bucket, key, opts, err := parseS3URI(u)
	if err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreWithClient(client, bucket, key), nil
}

// NewS3StoreWithClient uses an existing client.
func NewS3StoreWithClient(client S3API, bucket, key string) *S3Store {
	return &S3Store{client: client, bucket: bucket, key: key}
}

// Load fetches the object. A missing object is an empty state.
func (s *S3Store) Load(ctx context.Context) (*singer.State, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return singer.NewState(), nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to get state object").
			WithDetail("location", s.Location())
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to read state object")
	}
	return singer.ParseState(data)
}

// Save overwrites the object.
func (s *S3Store) Save(ctx context.Context, st *singer.State) error {
	data, err := st.Marshal()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to encode state")
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to put state object").
			WithDetail("location", s.Location())
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *S3Store) Close() error { return nil }

// Location returns the s3:// address of the object.
func (s *S3Store) Location() string { return "s3://" + s.bucket + "/" + s.key }

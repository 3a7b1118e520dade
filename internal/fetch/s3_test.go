package fetch

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	objects map[string]string
	err     error
	gotKey  string
}

func (f *fakeObjects) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gotKey = aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[f.gotKey]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func TestS3_Fetch(t *testing.T) {
	client := &fakeObjects{objects: map[string]string{"ci-bucket/shared/build.yml": "build: {script: x}"}}
	s := NewS3WithClient(client, 0)

	f, err := s.Fetch(context.Background(), remote("s3://ci-bucket/shared/build.yml"))
	require.NoError(t, err)
	assert.Equal(t, "ci-bucket/shared/build.yml", client.gotKey)
	assert.Equal(t, "build.yml", f.Name)
	assert.Equal(t, "build: {script: x}", string(f.Content))

	_, err = s.Fetch(context.Background(), remote("s3://ci-bucket/missing.yml"))
	assert.ErrorIs(t, err, ErrNotFound)
	var noSuchKey *types.NoSuchKey
	assert.ErrorAs(t, err, &noSuchKey)
}

func TestS3_TooLarge(t *testing.T) {
	client := &fakeObjects{objects: map[string]string{"b/k.yml": strings.Repeat("a", 100)}}
	s := NewS3WithClient(client, 10)

	_, err := s.Fetch(context.Background(), remote("s3://b/k.yml"))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestS3Error_APICodes(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"NoSuchKey", ErrNotFound},
		{"NoSuchBucket", ErrNotFound},
		{"AccessDenied", ErrAccessDenied},
		{"SignatureDoesNotMatch", ErrAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			s := NewS3WithClient(&fakeObjects{err: &smithy.GenericAPIError{Code: tt.code}}, 0)
			_, err := s.Fetch(context.Background(), remote("s3://b/k.yml"))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	s := NewS3WithClient(&fakeObjects{err: &smithy.GenericAPIError{Code: "InternalError"}}, 0)
	_, err := s.Fetch(context.Background(), remote("s3://b/k.yml"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://bucket/a/b.yml")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "a/b.yml", key)

	for _, bad := range []string{"s3://bucket", "s3://bucket/dir/", "https://bucket/a.yml", "s3:///a.yml"} {
		_, _, err := ParseS3URL(bad)
		assert.Error(t, err, bad)
	}
}

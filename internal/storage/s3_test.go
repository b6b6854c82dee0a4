package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/chronovault/internal/common"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = b
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func TestS3Store_SaveLoad(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := NewS3Store(fake, "vault", "/capsules/")

	loc, err := s.Save(ctx, "chronovault-0123456789abcdef.zip", []byte("zip"))
	require.NoError(t, err)
	require.Equal(t, "s3://vault/capsules/chronovault-0123456789abcdef.zip", loc)
	require.Equal(t, "application/zip", fake.types["vault/capsules/chronovault-0123456789abcdef.zip"])

	got, err := s.Load(ctx, "chronovault-0123456789abcdef.zip")
	require.NoError(t, err)
	require.Equal(t, []byte("zip"), got)

	_, err = s.Load(ctx, "missing.zip")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestS3Store_NoPrefixAndPutError(t *testing.T) {
	fake := newFakeS3()
	s := NewS3Store(fake, "vault", "")

	_, err := s.Save(context.Background(), "a.txt", []byte("x"))
	require.NoError(t, err)
	require.Equal(t, "application/octet-stream", fake.types["vault/a.txt"])

	fake.putErr = errors.New("access denied")
	_, err = s.Save(context.Background(), "a.txt", []byte("x"))
	require.ErrorContains(t, err, "s3 put a.txt: access denied")
}

func TestNewS3Client_AppliesConfig(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		require.Equal(t, "eu-west-1", lo.Region)
		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		require.Equal(t, "minio", creds.AccessKeyID)
		require.Equal(t, "minio-secret", creds.SecretAccessKey)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	c, err := NewS3Client(context.Background(), S3Config{
		Region:       "eu-west-1",
		BaseEndpoint: "http://127.0.0.1:9000/",
		RootUser:     "minio",
		RootPassword: "minio-secret",
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, "http://127.0.0.1:9000/", aws.ToString(opts.BaseEndpoint))
	require.True(t, opts.UsePathStyle)
}

func TestNewS3Client_ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no profile")
	}

	_, err := NewS3Client(context.Background(), S3Config{})
	require.ErrorContains(t, err, "aws config: no profile")
}

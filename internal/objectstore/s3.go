package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"eduetl/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3 lists a bucket through minio-go.
type S3 struct {
	client *minio.Client
	bucket string
}

// NewS3 builds a client from cfg. Static keys are used when both are set,
// otherwise the AWS environment/IAM chain.
func NewS3(cfg config.ObjectStore) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, wrapError(CodeInvalidConfig, false, fmt.Errorf("bucket is required"))
	}
	if cfg.Delimiter != "" && cfg.Delimiter != "/" {
		return nil, wrapError(CodeInvalidConfig, false, fmt.Errorf("delimiter %q not supported by S3 listing", cfg.Delimiter))
	}
	if cfg.Endpoint == "" {
		return nil, wrapError(CodeEndpointUnreachable, false, fmt.Errorf("endpoint is required"))
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, wrapError(CodeEndpointUnreachable, false, fmt.Errorf("invalid endpoint: %w", err))
	}
	host := u.Host
	if host == "" {
		host = cfg.Endpoint
	}
	secure := cfg.UseSSL || u.Scheme == "https"

	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.IAM{},
	})
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, wrapError(CodeEndpointUnreachable, true, fmt.Errorf("create client: %w", err))
	}
	return &S3{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3) ListPrefixes(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, classify(obj.Err)
		}
		// common prefixes come back as keys ending in '/'
		if obj.Key != prefix && len(obj.Key) > 0 && obj.Key[len(obj.Key)-1] == '/' {
			out = append(out, obj.Key)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListObjects drains every page; minio-go follows continuation tokens.
func (s *S3) ListObjects(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, classify(obj.Err)
		}
		out = append(out, Object{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/nugget/airspace-copilot/internal/airspace"
)

// objectAPI is the subset of the S3 client used by S3Source.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds the parameters for an S3-backed snapshot source.
type S3Config struct {
	Bucket    string
	Prefix    string // key prefix holding <region>.json objects
	AlertsKey string // full object key of the alert collection
	Region    string
	Endpoint  string // optional; set for MinIO and other S3-compatible stores
	PathStyle bool
}

// S3Source reads the same flat snapshot files from an S3 bucket. The
// ingestion job uploads <prefix>/<region>.json and the alerts object;
// nothing here writes.
type S3Source struct {
	client    objectAPI
	bucket    string
	prefix    string
	alertsKey string
}

// NewS3Source builds an S3Source using the default AWS credential chain.
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3Source(client, cfg), nil
}

func newS3Source(client objectAPI, cfg S3Config) *S3Source {
	prefix := strings.Trim(cfg.Prefix, "/")
	alertsKey := cfg.AlertsKey
	if alertsKey == "" {
		alertsKey = path.Join(prefix, "alerts.json")
	}
	return &S3Source{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    prefix,
		alertsKey: alertsKey,
	}
}

func (s *S3Source) snapshotKey(region string) string {
	if s.prefix == "" {
		return region + ".json"
	}
	return s.prefix + "/" + region + ".json"
}

// ReadSnapshot implements [Source].
func (s *S3Source) ReadSnapshot(ctx context.Context, region string) ([]byte, error) {
	return s.get(ctx, s.snapshotKey(region))
}

// ReadAlerts implements [Source].
func (s *S3Source) ReadAlerts(ctx context.Context) ([]byte, error) {
	return s.get(ctx, s.alertsKey)
}

// ListSnapshots implements [Source]. Only objects directly under the
// prefix are considered; the alerts object is excluded.
func (s *S3Source) ListSnapshots(ctx context.Context) ([]string, error) {
	listPrefix := ""
	if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}

	var regions []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &listPrefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, listPrefix, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if key == s.alertsKey {
				continue
			}
			name := strings.TrimPrefix(key, listPrefix)
			if strings.Contains(name, "/") || !strings.HasSuffix(name, ".json") {
				continue
			}
			regions = append(regions, strings.TrimSuffix(name, ".json"))
		}
		if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	return regions, nil
}

func (s *S3Source) get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		if isMissingObject(err) {
			return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, key, airspace.ErrNotFound)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// isMissingObject reports whether err is S3's way of saying the key
// does not exist. GetObject returns NoSuchKey; some S3-compatible
// stores answer with a bare NotFound instead.
func isMissingObject(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

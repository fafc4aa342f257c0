package syncx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mkarpenko/moneta/internal/common"
)

// S3Provider implements Provider on an S3 bucket. File ids are object keys;
// folders are key prefixes.
type S3Provider struct {
	client *s3.Client
	bucket string
}

var _ Provider = (*S3Provider)(nil)

// NewS3Provider builds a provider using the ambient AWS configuration
// (environment, shared config, instance role).
func NewS3Provider(ctx context.Context, bucket string) (*S3Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Provider{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// NewS3ProviderStatic builds a provider with explicit static credentials,
// for S3-compatible stores that hand out plain key pairs.
func NewS3ProviderStatic(ctx context.Context, bucket, region, accessKey, secretKey string) (*S3Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Provider{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func (p *S3Provider) CreateConfig(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err != nil {
		return fmt.Errorf("bucket %q: %w", p.bucket, err)
	}
	return nil
}

func (p *S3Provider) List(ctx context.Context, folderID string) ([]FileInfo, error) {
	prefix := ""
	if folderID != "" {
		prefix = folderID + "/"
	}

	var infos []FileInfo
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(p.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", folderID, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			info := FileInfo{
				ID:       key,
				Name:     strings.TrimPrefix(key, prefix),
				FolderID: folderID,
				Size:     aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.Modified = *obj.LastModified
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}

func (p *S3Provider) Get(ctx context.Context, id string) ([]byte, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(id),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return nil, fmt.Errorf("get %q: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", id, err)
	}
	return data, nil
}

func (p *S3Provider) Put(ctx context.Context, info FileInfo, data []byte) (FileInfo, error) {
	id := info.ID
	if id == "" {
		id = info.Name
		if info.FolderID != "" {
			id = info.FolderID + "/" + info.Name
		}
	}
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(id),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return FileInfo{}, fmt.Errorf("put %q: %w", id, err)
	}
	info.ID = id
	info.Size = int64(len(data))
	return info, nil
}

func (p *S3Provider) Del(ctx context.Context, id string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("del %q: %w", id, err)
	}
	return nil
}

// Mkdir writes a zero-byte folder marker, the usual S3 convention.
func (p *S3Provider) Mkdir(ctx context.Context, parentID, name string) (FileInfo, error) {
	id := name
	if parentID != "" {
		id = parentID + "/" + name
	}
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(id + "/"),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return FileInfo{}, fmt.Errorf("mkdir %q: %w", id, err)
	}
	return FileInfo{ID: id, Name: name, FolderID: parentID}, nil
}

// ConfigNeedsUpdate is always false: credentials are managed by the AWS SDK
// credential chain, not by the engine.
func (p *S3Provider) ConfigNeedsUpdate() bool { return false }

func (p *S3Provider) UpdateConfig(ctx context.Context, token *Token) error { return nil }

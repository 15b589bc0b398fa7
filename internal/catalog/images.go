package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var ErrUnsupportedImage = errors.New("unsupported image type")

type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Images stores product images in a public-read bucket.
type S3Images struct {
	up     uploader
	bucket string
	prefix string
	now    func() time.Time
}

func NewS3Images(ctx context.Context, bucket, prefix string) (*S3Images, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Images{
		up:     manager.NewUploader(s3.NewFromConfig(cfg)),
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}, nil
}

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Upload returns the public URL of the stored object.
func (s *S3Images) Upload(ctx context.Context, productID, contentType string, body io.Reader) (string, error) {
	ext, ok := imageExt[strings.ToLower(contentType)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, contentType)
	}
	key := path.Join(s.prefix, fmt.Sprintf("%s-%s%s", productID, s.now().UTC().Format("20060102150405"), ext))

	out, err := s.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ACL:         types.ObjectCannedACLPublicRead,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return out.Location, nil
}

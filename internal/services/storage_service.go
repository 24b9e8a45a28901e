// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/vortexart/marketplace-backend/internal/config"
	"github.com/vortexart/marketplace-backend/internal/utils"
)

// StorageService stores artwork media on S3. Media files back the listing
// pages; the provenance chain only ever references artwork ids, never media.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

type MediaUploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	Checksum string `json:"checksum"`
}

var artworkMediaTypes = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".mp4", ".glb"}

const maxMediaSize = 100 << 20 // 100 MB

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.AWS.AccessKeyID == "" {
		// No credentials: uploads are rejected, everything else still works.
		return &StorageService{config: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

// UploadArtworkMedia validates and stores one media file under the artwork's
// key prefix, returning its public URL.
func (s *StorageService) UploadArtworkMedia(artworkID uuid.UUID, file multipart.File, header *multipart.FileHeader) (*MediaUploadResult, error) {
	if s.s3Client == nil {
		return nil, fmt.Errorf("media storage is not configured")
	}

	if header.Size > maxMediaSize {
		return nil, fmt.Errorf("file size %d bytes exceeds maximum of %d bytes", header.Size, int64(maxMediaSize))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	allowed := false
	for _, t := range artworkMediaTypes {
		if ext == t {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("file type %s is not allowed", ext)
	}

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	key := fmt.Sprintf("artworks/%s/%d_%s%s", artworkID, time.Now().Unix(), uuid.New().String()[:8], ext)
	checksum := utils.HashBytes(fileBytes)

	_, err = s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(fileBytes),
		ContentType:   aws.String(header.Header.Get("Content-Type")),
		ContentLength: aws.Int64(int64(len(fileBytes))),
		ACL:           aws.String("public-read"),
		Metadata: map[string]*string{
			"checksum": aws.String(checksum),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &MediaUploadResult{
		URL:      fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.config.AWS.S3Bucket, s.config.AWS.Region, key),
		Key:      key,
		Size:     int64(len(fileBytes)),
		MimeType: header.Header.Get("Content-Type"),
		Checksum: checksum,
	}, nil
}

// DeleteMedia removes a stored object by key.
func (s *StorageService) DeleteMedia(key string) error {
	if s.s3Client == nil {
		return nil
	}
	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

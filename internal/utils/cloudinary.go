package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// UploaderConfig holds configuration settings for CloudinaryUploader.
type UploaderConfig struct {
	CloudName     string
	APIKey        string
	APISecret     string
	Folder        string        // root folder for every upload
	MaxFileSize   int64         // maximum allowed file size in bytes
	UploadTimeout time.Duration // timeout for one upload including retries
	DeleteTimeout time.Duration
	MaxRetries    int
}

// allowedImageTypes maps detected content types to accepted extensions
var allowedImageTypes = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/gif":  {".gif"},
	"image/webp": {".webp"},
}

// ImageUpload is one image to store
type ImageUpload struct {
	Reader   io.ReadSeeker
	Filename string
	Size     int64
	Folder   string // sub folder below the configured root, e.g. "avatars"
}

// UploadResult contains the result of a file upload.
type UploadResult struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Format   string `json:"format"`
	Size     int    `json:"size"`
}

// Custom errors for specific failure cases.
var (
	ErrFileTooLarge       = errors.New("file size exceeds limit")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrInvalidExtension   = errors.New("invalid file extension")
	ErrUnableToReadFile   = errors.New("unable to read file")
	ErrMissingCredentials = errors.New("cloudinary credentials are missing")
	ErrUploadFailed       = errors.New("failed to upload file")
	ErrDeleteFailed       = errors.New("failed to delete file")
)

// CloudinaryUploader stores profile images on Cloudinary
type CloudinaryUploader struct {
	client *cloudinary.Cloudinary
	config UploaderConfig
	logger *zap.Logger
}

// NewCloudinaryUploader creates an uploader from explicit credentials
func NewCloudinaryUploader(cfg UploaderConfig, logger *zap.Logger) (*CloudinaryUploader, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrMissingCredentials
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 30 * time.Second
	}
	if cfg.DeleteTimeout <= 0 {
		cfg.DeleteTimeout = 10 * time.Second
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}

	logger.Info("Cloudinary uploader initialized", zap.String("folder", cfg.Folder))
	return &CloudinaryUploader{client: cld, config: cfg, logger: logger}, nil
}

// ValidateImage checks the size, sniffed content type and extension.
// The reader is rewound before returning.
func (c *CloudinaryUploader) ValidateImage(upload *ImageUpload) (string, error) {
	return validateImage(upload, c.config.MaxFileSize)
}

func validateImage(upload *ImageUpload, maxSize int64) (string, error) {
	if upload.Size > maxSize {
		return "", fmt.Errorf("%w: %d bytes exceeds %d bytes", ErrFileTooLarge, upload.Size, maxSize)
	}

	buffer := make([]byte, 512)
	n, err := upload.Reader.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("%w: %v", ErrUnableToReadFile, err)
	}
	if _, err := upload.Reader.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnableToReadFile, err)
	}

	contentType := http.DetectContentType(buffer[:n])
	extensions, ok := allowedImageTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if !slices.Contains(extensions, ext) {
		return "", fmt.Errorf("%w: %s for %s", ErrInvalidExtension, ext, contentType)
	}
	return contentType, nil
}

// UploadImage validates and uploads an image, retrying transient failures
func (c *CloudinaryUploader) UploadImage(ctx context.Context, upload *ImageUpload) (*UploadResult, error) {
	startTime := time.Now()

	contentType, err := c.ValidateImage(upload)
	if err != nil {
		c.logger.Warn("Image validation failed",
			zap.String("filename", upload.Filename),
			zap.Error(err))
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.UploadTimeout)
	defer cancel()

	params := uploader.UploadParams{
		Folder:         strings.Trim(c.config.Folder+"/"+upload.Folder, "/"),
		UseFilename:    ptrBool(true),
		UniqueFilename: ptrBool(true),
		ResourceType:   "image",
	}

	var result *uploader.UploadResult
	operation := func() error {
		if _, err := upload.Reader.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(err)
		}
		var opErr error
		result, opErr = c.client.Upload.Upload(ctx, upload.Reader, params)
		if opErr == nil && result != nil && result.Error.Message != "" {
			opErr = errors.New(result.Error.Message)
		}
		return opErr
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.config.UploadTimeout / 2
	err = backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.config.MaxRetries)), ctx),
		func(err error, d time.Duration) {
			c.logger.Warn("Upload attempt failed",
				zap.String("filename", upload.Filename),
				zap.Error(err),
				zap.Duration("backoff", d))
		},
	)
	if err != nil {
		c.logger.Error("All upload attempts failed",
			zap.String("filename", upload.Filename),
			zap.Int("max_retries", c.config.MaxRetries),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	c.logger.Info("Image uploaded",
		zap.String("filename", upload.Filename),
		zap.String("content_type", contentType),
		zap.String("public_id", result.PublicID),
		zap.Duration("duration", time.Since(startTime)))

	return &UploadResult{
		URL:      result.SecureURL,
		PublicID: result.PublicID,
		Format:   result.Format,
		Size:     result.Bytes,
	}, nil
}

// DeleteImage removes an image by its public ID.
func (c *CloudinaryUploader) DeleteImage(ctx context.Context, publicID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.DeleteTimeout)
	defer cancel()

	if _, err := c.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		c.logger.Error("Failed to delete image",
			zap.String("public_id", publicID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

func ptrBool(b bool) *bool {
	return &b
}

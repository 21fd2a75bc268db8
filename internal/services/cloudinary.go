package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Cloudinary is the process-wide upload client, nil when credentials are
// absent. Handlers must check before use.
var Cloudinary *CloudinaryService

type CloudinaryService struct {
	cld *cloudinary.Cloudinary
}

// InitCloudinaryService wires the global client. Missing credentials leave
// uploads disabled rather than failing startup.
func InitCloudinaryService(cloudName, apiKey, apiSecret string) error {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil
	}
	svc, err := NewCloudinaryService(cloudName, apiKey, apiSecret)
	if err != nil {
		return err
	}
	Cloudinary = svc
	return nil
}

func NewCloudinaryService(cloudName, apiKey, apiSecret string) (*CloudinaryService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}

	return &CloudinaryService{
		cld: cld,
	}, nil
}

// UploadFile pushes raw bytes to Cloudinary and returns the secure URL.
func (s *CloudinaryService) UploadFile(ctx context.Context, file multipart.File, folder string) (string, error) {
	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	uploadResult, err := s.cld.Upload.Upload(ctx, fileBytes, uploader.UploadParams{
		Folder:       folder,
		ResourceType: "auto", // Automatically detect image, video, or raw
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}

	return uploadResult.SecureURL, nil
}

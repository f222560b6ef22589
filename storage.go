package imageloop

import (
	"context"
	"path/filepath"
	"strings"
)

// Storage is an interface for persisting generated images.
// This is a minimal interface designed for easy integration - implementations
// can wrap existing storage clients (local disk, S3, etc.) with this interface.
// See the storage package for the bundled backends.
type Storage interface {
	// SaveFile saves image data to storage and returns the path or public URL.
	// The path should include the full object path (e.g., "runs/01J.../round-1.png").
	// The contentType is typically the image's MIME type (e.g., "image/png").
	SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error)
}

// StorageResult contains information about a saved image.
type StorageResult struct {
	// URL is the path or public URL where the image can be accessed
	URL string

	// Path is the storage path/key where the image was saved
	Path string

	// Size is the number of bytes saved
	Size int
}

// SaveImage saves one generated image under basePath, adding an extension
// derived from its MIME type.
func SaveImage(
	ctx context.Context,
	storage Storage,
	img GeneratedImage,
	basePath string) (StorageResult, error) {

	if storage == nil {
		return StorageResult{}, ErrStorageNotConfigured
	}

	path := basePath + "." + extensionFromMIME(img.MIMEType)

	url, err := storage.SaveFile(ctx, img.Data, path, img.MIMEType)
	if err != nil {
		return StorageResult{}, err
	}

	return StorageResult{
		URL:  url,
		Path: path,
		Size: len(img.Data),
	}, nil
}

func GetMIMEType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

// extensionFromMIME returns a file extension for common image MIME types.
func extensionFromMIME(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}

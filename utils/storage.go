package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/mmdatafocus/church_backend/config"
	"google.golang.org/api/option"
)

const (
	StorageProviderGCS   = "gcs"
	StorageProviderLocal = "local"
)

func GetStorageProvider() string {
	return strings.ToLower(config.StringFromEnv("STORAGE_PROVIDER", StorageProviderLocal))
}

// getGoogleClient initializes a Google Cloud Storage client.
// GCS_CREDENTIALS_JSON overrides Application Default Credentials.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// StoreObject writes data under objectName and returns its public URL.
func StoreObject(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	objectName = strings.TrimLeft(filepath.ToSlash(objectName), "/")
	if objectName == "" || strings.Contains(objectName, "..") {
		return "", errors.New("invalid object name")
	}
	if GetStorageProvider() == StorageProviderGCS {
		return storeGCS(ctx, objectName, data, contentType)
	}
	return storeLocal(objectName, data)
}

func storeGCS(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	bucketName := os.Getenv("GCS_BUCKET")
	if bucketName == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucketName, objectName), nil
}

func storeLocal(objectName string, data []byte) (string, error) {
	dir := config.StringFromEnv("STORAGE_LOCAL_DIR", "storage")
	path := filepath.Join(dir, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	base := strings.TrimRight(config.StringFromEnv("STORAGE_PUBLIC_BASE_URL", "/files"), "/")
	return base + "/" + objectName, nil
}

// ReadObject reads back an object written by StoreObject.
func ReadObject(ctx context.Context, objectName string) ([]byte, error) {
	objectName = strings.TrimLeft(filepath.ToSlash(objectName), "/")
	if strings.Contains(objectName, "..") {
		return nil, errors.New("invalid object name")
	}
	if GetStorageProvider() == StorageProviderGCS {
		client, err := getGoogleClient(ctx)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		r, err := client.Bucket(os.Getenv("GCS_BUCKET")).Object(objectName).NewReader(ctx)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	}
	dir := config.StringFromEnv("STORAGE_LOCAL_DIR", "storage")
	return os.ReadFile(filepath.Join(dir, filepath.FromSlash(objectName)))
}

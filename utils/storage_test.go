package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", StorageProviderLocal)
	t.Setenv("STORAGE_LOCAL_DIR", t.TempDir())
	t.Setenv("STORAGE_PUBLIC_BASE_URL", "https://files.example.org/")

	url, err := StoreObject(context.Background(), "/receipts/2025/TR-2025-000001.pdf", []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.org/receipts/2025/TR-2025-000001.pdf", url)

	data, err := ReadObject(context.Background(), "receipts/2025/TR-2025-000001.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestStorageRejectsTraversal(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", StorageProviderLocal)
	t.Setenv("STORAGE_LOCAL_DIR", t.TempDir())

	_, err := StoreObject(context.Background(), "../outside.txt", []byte("x"), "text/plain")
	assert.Error(t, err)
	_, err = ReadObject(context.Background(), "photos/../../etc/passwd")
	assert.Error(t, err)
	_, err = StoreObject(context.Background(), "", []byte("x"), "text/plain")
	assert.Error(t, err)
}

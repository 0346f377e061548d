package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/utils"
)

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

var receiptMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

type upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// readUpload pulls one multipart file from field, enforcing the size limit and mime allowlist.
func readUpload(c *gin.Context, field string, allowed map[string]bool) (*upload, bool) {
	header, err := c.FormFile(field)
	if err != nil {
		respondError(c, utils.NewValidationError(field, "is required"))
		return nil, false
	}
	if header.Size > maxUploadSizeBytes {
		respondError(c, utils.NewValidationError(field, "must be 5MB or smaller"))
		return nil, false
	}
	f, err := header.Open()
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadSizeBytes+1))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if int64(len(data)) > maxUploadSizeBytes {
		respondError(c, utils.NewValidationError(field, "must be 5MB or smaller"))
		return nil, false
	}
	contentType := http.DetectContentType(data)
	if !allowed[contentType] {
		respondError(c, utils.NewValidationError(field, "unsupported file type "+contentType))
		return nil, false
	}
	return &upload{Filename: header.Filename, ContentType: contentType, Data: data}, true
}

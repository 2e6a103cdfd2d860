package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
)

// UploadInput representa uma operação de upload simples.
type UploadInput struct {
	Key          string
	Body         []byte
	ContentType  string
	CacheControl string
}

// UploadResult descreve o artefato persistido.
type UploadResult struct {
	Key  string
	URL  string
	ETag string
}

// Uploader define comportamento básico para armazenar blobs.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
}

// ErrNotConfigured sinaliza STORAGE_PROVIDER=noop; alertas seguem sem mídia.
var ErrNotConfigured = errors.New("storage: uploader não configurado")

// NoopUploader é o provider padrão quando não há bucket.
type NoopUploader struct{}

func (NoopUploader) Upload(context.Context, UploadInput) (*UploadResult, error) {
	return nil, ErrNotConfigured
}

// MediaKey monta a chave do objeto: <prefix>/<owner>/<uuid><ext>.
func MediaKey(prefix, owner, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	owner = strings.Trim(strings.ReplaceAll(owner, "/", "_"), " ")
	if owner == "" {
		owner = "anon"
	}
	return fmt.Sprintf("%s/%s/%s%s", strings.Trim(prefix, "/"), owner, uuid.NewString(), ext)
}

// ContentTypeFor deduz o content-type pela extensão.
func ContentTypeFor(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".webp":
		return "image/webp"
	case ".flv":
		return "video/x-flv"
	case ".wmv":
		return "video/x-ms-wmv"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

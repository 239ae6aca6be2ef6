// Package docstore stores scanned case documents (autopsy reports,
// authority referrals, signed retrieval authorizations) keyed by case
// and document type. The workflow services keep only the returned
// reference plus metadata, never the binary content.
package docstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrUnknownKind        = errors.New("unknown document kind")
)

// MaxFileSize is the maximum allowed document size in bytes (50 MB).
const MaxFileSize = 50 * 1024 * 1024

// AllowedKinds lists valid document kind values.
var AllowedKinds = map[string]bool{
	"autopsy-report":     true,
	"authority-referral": true,
	"body-recovery":      true,
	"death-certificate":  true,
	"retrieval-signed":   true,
	"payment-receipt":    true,
	"waiver-resolution":  true,
	"other":              true,
}

// AllowedContentTypes lists accepted MIME types for scanned documents.
var AllowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"application/pdf": true,
	"text/plain":      true,
}

// Metadata describes a stored document.
type Metadata struct {
	ID          string    `json:"id"`
	CaseID      string    `json:"case_id"`
	Kind        string    `json:"kind"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
}

// Store is the contract for document storage backends.
type Store interface {
	Put(ctx context.Context, meta Metadata, content io.Reader) (*Metadata, error)
	Get(ctx context.Context, id string) (io.ReadCloser, *Metadata, error)
	Delete(ctx context.Context, id string) error
	GetMetadata(ctx context.Context, id string) (*Metadata, error)
	ListByCase(ctx context.Context, caseID string, kind string) ([]*Metadata, error)
}

type storedDoc struct {
	metadata Metadata
	content  []byte
}

// MemStore is a thread-safe, in-memory Store for testing and
// development deployments.
type MemStore struct {
	mu   sync.RWMutex
	docs map[string]*storedDoc
}

func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string]*storedDoc)}
}

// Put validates inputs, reads the content, computes a SHA-256 hash, and
// stores the document in memory.
func (s *MemStore) Put(_ context.Context, meta Metadata, content io.Reader) (*Metadata, error) {
	if meta.FileName == "" {
		return nil, ErrMissingFileName
	}
	if meta.Kind != "" && !AllowedKinds[meta.Kind] {
		return nil, ErrUnknownKind
	}
	if meta.ContentType != "" && !AllowedContentTypes[meta.ContentType] {
		return nil, ErrInvalidContentType
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	h := sha256.Sum256(data)

	meta.ID = uuid.New().String()
	meta.Size = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", h)
	meta.CreatedAt = time.Now().UTC()
	if meta.Kind == "" {
		meta.Kind = "other"
	}

	s.mu.Lock()
	s.docs[meta.ID] = &storedDoc{metadata: meta, content: data}
	s.mu.Unlock()

	return &meta, nil
}

func (s *MemStore) Get(_ context.Context, id string) (io.ReadCloser, *Metadata, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrDocumentNotFound
	}
	meta := doc.metadata
	return io.NopCloser(bytes.NewReader(doc.content)), &meta, nil
}

func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrDocumentNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *MemStore) GetMetadata(_ context.Context, id string) (*Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	meta := doc.metadata
	return &meta, nil
}

func (s *MemStore) ListByCase(_ context.Context, caseID string, kind string) ([]*Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []*Metadata
	for _, doc := range s.docs {
		if doc.metadata.CaseID != caseID {
			continue
		}
		if kind != "" && doc.metadata.Kind != kind {
			continue
		}
		meta := doc.metadata
		items = append(items, &meta)
	}
	return items, nil
}

// Handler exposes upload/download/list endpoints for case documents.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/cases/:id/documents", h.Upload)
	api.GET("/cases/:id/documents", h.ListByCase)
	api.GET("/documents/:docID", h.Download)
	api.GET("/documents/:docID/metadata", h.GetMetadata)
	api.DELETE("/documents/:docID", h.Delete)
}

func (h *Handler) Upload(c echo.Context) error {
	caseID := c.Param("id")
	if _, err := uuid.Parse(caseID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot open uploaded file")
	}
	defer src.Close()

	meta := Metadata{
		CaseID:      caseID,
		Kind:        c.FormValue("kind"),
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
	}

	stored, err := h.store.Put(c.Request().Context(), meta, src)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, ErrUnknownKind), errors.Is(err, ErrInvalidContentType), errors.Is(err, ErrMissingFileName):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, stored)
}

func (h *Handler) Download(c echo.Context) error {
	rc, meta, err := h.store.Get(c.Request().Context(), c.Param("docID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.FileName))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func (h *Handler) GetMetadata(c echo.Context) error {
	meta, err := h.store.GetMetadata(c.Request().Context(), c.Param("docID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	return c.JSON(http.StatusOK, meta)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.store.Delete(c.Request().Context(), c.Param("docID")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListByCase(c echo.Context) error {
	items, err := h.store.ListByCase(c.Request().Context(), c.Param("id"), c.QueryParam("kind"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

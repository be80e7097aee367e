package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/avelinot/peerdrop"
)

type Service interface {
	Share(ctx context.Context, r io.Reader) (peerdrop.ShareResult, error)
	NodeAddr() peerdrop.NodeAddr
	Blobs(ctx context.Context) ([]peerdrop.BlobInfo, error)
}

type HandlerConfig struct {
	// MaxUploadSize caps an upload request body in bytes; 0 means no limit.
	MaxUploadSize int64
}

// Handler provides the HTTP handlers of the gateway.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	return &Handler{
		config:  *config,
		service: service,
	}
}

// UploadResponse is the JSON body of a successful upload.
type UploadResponse struct {
	Ticket     string `json:"ticket"`
	NodeID     string `json:"node_id"`
	BlobHash   string `json:"blob_hash"`
	BlobFormat string `json:"blob_format"`
}

// NodeIDResponse is the JSON body of GET /node-id.
type NodeIDResponse struct {
	NodeID string `json:"node_id"`
}

// HealthResponse is the JSON body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	NodeID string `json:"node_id"`
	Blobs  int    `json:"blobs"`
}

// BlobListResponse is the JSON body of GET /blobs.
type BlobListResponse struct {
	Items []peerdrop.BlobInfo `json:"items"`
}

// Router returns the configured http.Handler. CORS is deliberately
// permissive; a production deployment is expected to restrict origins
// externally.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions, http.MethodHead},
		AllowedHeaders: []string{"*"},
	}))

	r.Post("/upload", h.handleUpload)
	r.Get("/node-id", h.handleNodeID)
	r.Get("/blobs", h.handleBlobs)
	r.Get("/healthz", h.handleHealthz)

	return r
}

// handleUpload ingests the first file-bearing field of a multipart
// request and answers with a ticket. Remaining fields are ignored:
// one file per request.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.config.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "Expected multipart form data")
		return
	}

	fileName := ""
	var file io.Reader
	for {
		part, partErr := mr.NextPart()
		if errors.Is(partErr, io.EOF) {
			break
		}
		if partErr != nil {
			WriteError(w, http.StatusBadRequest, "bad_request", "Malformed multipart form data")
			return
		}
		if part.FileName() == "" {
			_ = part.Close()
			continue
		}
		fileName = part.FileName()
		file = part
		break
	}

	if file == nil {
		HandleError(w, peerdrop.ErrMissingFile)
		return
	}

	res, err := h.service.Share(r.Context(), file)
	if err != nil {
		HandleError(w, err)
		return
	}

	slog.Info("received file", "name", fileName, "hash", res.Descriptor.Hash)

	_ = WriteJSON(w, http.StatusOK, UploadResponse{
		Ticket:     res.Ticket.String(),
		NodeID:     h.service.NodeAddr().ID,
		BlobHash:   res.Descriptor.Hash,
		BlobFormat: string(res.Descriptor.Format),
	})
}

func (h *Handler) handleNodeID(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, NodeIDResponse{NodeID: h.service.NodeAddr().ID})
}

func (h *Handler) handleBlobs(w http.ResponseWriter, r *http.Request) {
	infos, err := h.service.Blobs(r.Context())
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, BlobListResponse{Items: infos})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	infos, err := h.service.Blobs(r.Context())
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		NodeID: h.service.NodeAddr().ID,
		Blobs:  len(infos),
	})
}

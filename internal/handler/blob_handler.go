package handler

import (
	"errors"
	"io"
	"net/http"

	"vaultx/internal/domain"
	"vaultx/internal/middleware"
	"vaultx/internal/service"
	"vaultx/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type BlobHandler struct {
	blobService *service.BlobService
	validate    *validator.Validate
	log         zerolog.Logger
}

func NewBlobHandler(blobService *service.BlobService, logger zerolog.Logger) *BlobHandler {
	return &BlobHandler{
		blobService: blobService,
		validate:    validator.New(),
		log:         logger.With().Str("component", "blobs").Logger(),
	}
}

func (h *BlobHandler) Put(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	callerID := middleware.GetUserID(r)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.blobService.MaxBlobSize()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(w, service.ErrBlobTooLarge.Error())
			return
		}
		response.BadRequest(w, "Failed to read request body")
		return
	}

	blob, err := h.blobService.Put(r.Context(), callerID, vars["user"], vars["shard"], data)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Created(w, blob)
}

func (h *BlobHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	data, err := h.blobService.Get(r.Context(), middleware.GetUserID(r), vars["user"], vars["shard"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Bytes(w, data)
}

func (h *BlobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req domain.DeleteBlobsRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	deleted, err := h.blobService.Delete(r.Context(), middleware.GetUserID(r), req.Paths)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, domain.DeleteBlobsResponse{Deleted: deleted})
}

func (h *BlobHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(w, service.ErrForbidden.Error())
	case errors.Is(err, service.ErrInvalidPath), errors.Is(err, service.ErrEmptyBlob):
		response.BadRequest(w, err.Error())
	case errors.Is(err, service.ErrBlobNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, service.ErrBlobExists):
		response.Conflict(w, err.Error())
	case errors.Is(err, service.ErrBlobTooLarge):
		response.PayloadTooLarge(w, err.Error())
	default:
		h.log.Error().Err(err).Msg("blob operation failed")
		response.InternalError(w, "Storage failure")
	}
}

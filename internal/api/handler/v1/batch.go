package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/glory2yahpub/marketplace/internal/api/handler/v1/request"
	"github.com/glory2yahpub/marketplace/internal/api/handler/v1/response"
	"github.com/glory2yahpub/marketplace/internal/domain"
)

type BatchService interface {
	TryCreateBatch(ctx context.Context) (domain.Batch, error)
	ManualAdd(ctx context.Context, batchID, listingID string) (domain.Batch, error)
	ManualRemove(ctx context.Context, batchID, listingID string) error
	DeleteBatch(ctx context.Context, batchID string) error
	RecordShare(ctx context.Context, batchID string) (domain.Batch, error)
	GetBatch(ctx context.Context, batchID string) (domain.Batch, error)
	LatestBatch(ctx context.Context) (domain.Batch, error)
	ListBatches(ctx context.Context) ([]domain.Batch, error)
}

type BatchHandler struct {
	svc BatchService
}

func NewBatchHandler(svc BatchService) *BatchHandler {
	return &BatchHandler{
		svc: svc,
	}
}

// HandleListBatches godoc
// @Summary      List batches
// @Tags         batches
// @Produce      json
// @Success      200  {array}   domain.Batch
// @Router       /batches [get]
func (h *BatchHandler) HandleListBatches(ctx *gin.Context) {
	batches, err := h.svc.ListBatches(ctx.Request.Context())
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleListBatches -> h.svc.ListBatches", err))
		return
	}

	ctx.JSON(http.StatusOK, batches)
}

// HandleLatestBatch godoc
// @Summary      Get the most recent batch
// @Tags         batches
// @Produce      json
// @Success      200  {object}  domain.Batch
// @Failure      404  {object}  response.Err
// @Router       /batches/latest [get]
func (h *BatchHandler) HandleLatestBatch(ctx *gin.Context) {
	batch, err := h.svc.LatestBatch(ctx.Request.Context())
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleLatestBatch -> h.svc.LatestBatch", err))
		return
	}

	ctx.JSON(http.StatusOK, batch)
}

// HandleGetBatch godoc
// @Summary      Get a batch with its share metadata
// @Tags         batches
// @Produce      json
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  domain.Batch
// @Failure      404  {object}  response.Err
// @Router       /batches/{id} [get]
func (h *BatchHandler) HandleGetBatch(ctx *gin.Context) {
	batch, err := h.svc.GetBatch(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleGetBatch -> h.svc.GetBatch", err))
		return
	}

	ctx.JSON(http.StatusOK, batch)
}

// HandleShareBatch godoc
// @Summary      Record a social share of a batch
// @Tags         batches
// @Produce      json
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  domain.Batch
// @Failure      404  {object}  response.Err
// @Router       /batches/{id}/share [post]
func (h *BatchHandler) HandleShareBatch(ctx *gin.Context) {
	batch, err := h.svc.RecordShare(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleShareBatch -> h.svc.RecordShare", err))
		return
	}

	ctx.JSON(http.StatusOK, batch)
}

// HandleCreateBatch godoc
// @Summary      Build a batch from the oldest approved listings
// @Tags         admin
// @Produce      json
// @Success      201  {object}  domain.Batch
// @Failure      422  {object}  response.Err
// @Router       /admin/batches [post]
// @Security BearerAuth
func (h *BatchHandler) HandleCreateBatch(ctx *gin.Context) {
	batch, err := h.svc.TryCreateBatch(ctx.Request.Context())
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleCreateBatch -> h.svc.TryCreateBatch", err))
		return
	}

	ctx.JSON(http.StatusCreated, batch)
}

// HandleAddToBatch godoc
// @Summary      Put a listing into a batch
// @Description  When the batch is full its last member is released to make room.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Batch ID"
// @Param        request  body      request.AddBatchListingRequest  true  "listing"
// @Success      200      {object}  domain.Batch
// @Failure      404      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Router       /admin/batches/{id}/listings [post]
// @Security BearerAuth
func (h *BatchHandler) HandleAddToBatch(ctx *gin.Context) {
	var req request.AddBatchListingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	batch, err := h.svc.ManualAdd(ctx.Request.Context(), ctx.Param("id"), req.ListingID)
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleAddToBatch -> h.svc.ManualAdd", err))
		return
	}

	ctx.JSON(http.StatusOK, batch)
}

// HandleRemoveFromBatch godoc
// @Summary      Remove a listing from a batch
// @Description  The oldest waiting listing takes its place. Without one the batch is dissolved.
// @Tags         admin
// @Param        id         path  string  true  "Batch ID"
// @Param        listingID  path  string  true  "Listing ID"
// @Success      204
// @Failure      404  {object}  response.Err
// @Router       /admin/batches/{id}/listings/{listingID} [delete]
// @Security BearerAuth
func (h *BatchHandler) HandleRemoveFromBatch(ctx *gin.Context) {
	if err := h.svc.ManualRemove(ctx.Request.Context(), ctx.Param("id"), ctx.Param("listingID")); err != nil {
		response.RenderErr(ctx, response.FromService("HandleRemoveFromBatch -> h.svc.ManualRemove", err))
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleDeleteBatch godoc
// @Summary      Delete a batch and release its listings
// @Tags         admin
// @Param        id  path  string  true  "Batch ID"
// @Success      204
// @Failure      404  {object}  response.Err
// @Router       /admin/batches/{id} [delete]
// @Security BearerAuth
func (h *BatchHandler) HandleDeleteBatch(ctx *gin.Context) {
	if err := h.svc.DeleteBatch(ctx.Request.Context(), ctx.Param("id")); err != nil {
		response.RenderErr(ctx, response.FromService("HandleDeleteBatch -> h.svc.DeleteBatch", err))
		return
	}

	ctx.Status(http.StatusNoContent)
}

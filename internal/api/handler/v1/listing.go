package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/glory2yahpub/marketplace/internal/api/handler/v1/request"
	"github.com/glory2yahpub/marketplace/internal/api/handler/v1/response"
	"github.com/glory2yahpub/marketplace/internal/api/middleware"
	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/service"
)

type CatalogService interface {
	SubmitListing(ctx context.Context, in service.NewListing) (domain.Listing, error)
	ApproveListing(ctx context.Context, id string) (domain.Listing, error)
	RejectListing(ctx context.Context, id string) (domain.Listing, error)
	DeleteListing(ctx context.Context, id string) error
	UpdatePrice(ctx context.Context, id, owner string, price int64) (domain.Listing, error)
	GetListing(ctx context.Context, id string) (domain.Listing, error)
	ListListings(ctx context.Context, status domain.ListingStatus) ([]domain.Listing, error)
	ListApprovedUnbatched(ctx context.Context) ([]domain.Listing, error)
}

type ListingHandler struct {
	svc CatalogService
}

func NewListingHandler(svc CatalogService) *ListingHandler {
	return &ListingHandler{
		svc: svc,
	}
}

// HandleSubmitListing godoc
// @Summary      Submit a listing for review
// @Tags         listings
// @Accept       json
// @Produce      json
// @Param        request  body      request.CreateListingRequest  true  "listing"
// @Success      201      {object}  domain.Listing
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Router       /listings [post]
// @Security BearerAuth
func (h *ListingHandler) HandleSubmitListing(ctx *gin.Context) {
	var req request.CreateListingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	listing, err := h.svc.SubmitListing(ctx.Request.Context(), service.NewListing{
		Owner:       middleware.Identity(ctx),
		Title:       req.Title,
		Description: req.Description,
		Images:      req.Images,
		Kind:        domain.ListingKind(req.Kind),
		Price:       req.Price,
	})
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleSubmitListing -> h.svc.SubmitListing", err))
		return
	}

	ctx.JSON(http.StatusCreated, listing)
}

// HandleListListings godoc
// @Summary      List listings
// @Description  Members only see approved listings. Admins may filter by any status.
// @Tags         listings
// @Produce      json
// @Param        status     query     string  false  "under_review, approved or rejected"
// @Param        unbatched  query     bool    false  "only approved listings waiting for a batch"
// @Success      200        {array}   domain.Listing
// @Failure      400        {object}  response.Err
// @Router       /listings [get]
// @Security BearerAuth
func (h *ListingHandler) HandleListListings(ctx *gin.Context) {
	if ctx.Query("unbatched") == "true" {
		listings, err := h.svc.ListApprovedUnbatched(ctx.Request.Context())
		if err != nil {
			response.RenderErr(ctx, response.FromService("HandleListListings -> h.svc.ListApprovedUnbatched", err))
			return
		}
		ctx.JSON(http.StatusOK, listings)
		return
	}

	status := domain.ListingApproved
	if middleware.IsAdmin(ctx) {
		if q := ctx.Query("status"); q != "" {
			status = domain.ListingStatus(q)
		}
	}
	if !status.IsValid() {
		response.RenderErr(ctx, response.ErrBadRequest(errors.New("unknown listing status")))
		return
	}

	listings, err := h.svc.ListListings(ctx.Request.Context(), status)
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleListListings -> h.svc.ListListings", err))
		return
	}

	ctx.JSON(http.StatusOK, listings)
}

// HandleGetListing godoc
// @Summary      Get a listing
// @Description  Listings under review or rejected are only visible to their owner and admins.
// @Tags         listings
// @Produce      json
// @Param        id   path      string  true  "Listing ID"
// @Success      200  {object}  domain.Listing
// @Failure      404  {object}  response.Err
// @Router       /listings/{id} [get]
// @Security BearerAuth
func (h *ListingHandler) HandleGetListing(ctx *gin.Context) {
	id := ctx.Param("id")

	listing, err := h.svc.GetListing(ctx.Request.Context(), id)
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleGetListing -> h.svc.GetListing", err))
		return
	}
	visible := listing.Status == domain.ListingApproved ||
		listing.Owner == middleware.Identity(ctx) ||
		middleware.IsAdmin(ctx)
	if !visible {
		response.RenderErr(ctx, response.ErrNotFound("listing", "id", id))
		return
	}

	ctx.JSON(http.StatusOK, listing)
}

// HandleUpdatePrice godoc
// @Summary      Change the price of an owned listing
// @Description  Negotiations already started keep the price they were opened with.
// @Tags         listings
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Listing ID"
// @Param        request  body      request.UpdatePriceRequest  true  "new price"
// @Success      200      {object}  domain.Listing
// @Failure      400      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Router       /listings/{id}/price [put]
// @Security BearerAuth
func (h *ListingHandler) HandleUpdatePrice(ctx *gin.Context) {
	var req request.UpdatePriceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	listing, err := h.svc.UpdatePrice(ctx.Request.Context(), ctx.Param("id"), middleware.Identity(ctx), req.Price)
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleUpdatePrice -> h.svc.UpdatePrice", err))
		return
	}

	ctx.JSON(http.StatusOK, listing)
}

// HandleApproveListing godoc
// @Summary      Approve a listing
// @Tags         admin
// @Produce      json
// @Param        id   path      string  true  "Listing ID"
// @Success      200  {object}  domain.Listing
// @Failure      404  {object}  response.Err
// @Router       /admin/listings/{id}/approve [post]
// @Security BearerAuth
func (h *ListingHandler) HandleApproveListing(ctx *gin.Context) {
	listing, err := h.svc.ApproveListing(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleApproveListing -> h.svc.ApproveListing", err))
		return
	}

	ctx.JSON(http.StatusOK, listing)
}

// HandleRejectListing godoc
// @Summary      Reject a listing
// @Description  A batched listing is removed from its batch and the batch is repaired.
// @Tags         admin
// @Produce      json
// @Param        id   path      string  true  "Listing ID"
// @Success      200  {object}  domain.Listing
// @Failure      404  {object}  response.Err
// @Router       /admin/listings/{id}/reject [post]
// @Security BearerAuth
func (h *ListingHandler) HandleRejectListing(ctx *gin.Context) {
	listing, err := h.svc.RejectListing(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleRejectListing -> h.svc.RejectListing", err))
		return
	}

	ctx.JSON(http.StatusOK, listing)
}

// HandleDeleteListing godoc
// @Summary      Delete a listing
// @Tags         admin
// @Param        id   path  string  true  "Listing ID"
// @Success      204
// @Failure      404  {object}  response.Err
// @Router       /admin/listings/{id} [delete]
// @Security BearerAuth
func (h *ListingHandler) HandleDeleteListing(ctx *gin.Context) {
	if err := h.svc.DeleteListing(ctx.Request.Context(), ctx.Param("id")); err != nil {
		response.RenderErr(ctx, response.FromService("HandleDeleteListing -> h.svc.DeleteListing", err))
		return
	}

	ctx.Status(http.StatusNoContent)
}

package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/glory2yahpub/marketplace/internal/api/handler/v1/request"
	"github.com/glory2yahpub/marketplace/internal/api/handler/v1/response"
	"github.com/glory2yahpub/marketplace/internal/api/middleware"
	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/service"
)

type NegotiationService interface {
	Checkout(ctx context.Context, buyer string, lines []service.LineRequest, address string) ([]domain.Negotiation, error)
	SetShippingCost(ctx context.Context, negotiationID, seller string, quote service.ShippingQuote) (domain.Negotiation, error)
	ConfirmPurchase(ctx context.Context, negotiationID, buyer string) (domain.Negotiation, error)
	DeclinePurchase(ctx context.Context, negotiationID, buyer string) (domain.Negotiation, error)
	AcknowledgeReceipt(ctx context.Context, negotiationID, buyer string) (domain.Negotiation, error)
	CancelStale(ctx context.Context, negotiationID, reason string) (domain.Negotiation, error)
	GetNegotiation(ctx context.Context, negotiationID, caller string, admin bool) (domain.Negotiation, error)
	ListNegotiations(ctx context.Context, identity string) ([]domain.Negotiation, error)
}

type NegotiationHandler struct {
	svc NegotiationService
}

func NewNegotiationHandler(svc NegotiationService) *NegotiationHandler {
	return &NegotiationHandler{
		svc: svc,
	}
}

// HandleCheckout godoc
// @Summary      Check out a cart
// @Description  Opens one negotiation per seller with prices frozen at checkout time. When a later
// @Description  seller fails, the negotiations already opened are returned with status 207.
// @Tags         negotiations
// @Accept       json
// @Produce      json
// @Param        request  body      request.CheckoutRequest  true  "cart"
// @Success      201      {array}   domain.Negotiation
// @Success      207      {object}  response.PartialCheckout
// @Failure      400      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Router       /checkout [post]
// @Security BearerAuth
func (h *NegotiationHandler) HandleCheckout(ctx *gin.Context) {
	var req request.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	lines := make([]service.LineRequest, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, service.LineRequest{ListingID: l.ListingID, Quantity: l.Quantity})
	}

	started, err := h.svc.Checkout(ctx.Request.Context(), middleware.Identity(ctx), lines, req.Address)
	if err != nil {
		rendered := response.FromService("HandleCheckout -> h.svc.Checkout", err)
		if len(started) == 0 {
			response.RenderErr(ctx, rendered)
			return
		}
		ctx.JSON(http.StatusMultiStatus, response.PartialCheckout{
			Negotiations: started,
			Error:        rendered,
		})
		return
	}

	ctx.JSON(http.StatusCreated, started)
}

// HandleListNegotiations godoc
// @Summary      List the caller's negotiations as buyer or seller
// @Tags         negotiations
// @Produce      json
// @Success      200  {array}   domain.Negotiation
// @Router       /negotiations [get]
// @Security BearerAuth
func (h *NegotiationHandler) HandleListNegotiations(ctx *gin.Context) {
	ns, err := h.svc.ListNegotiations(ctx.Request.Context(), middleware.Identity(ctx))
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleListNegotiations -> h.svc.ListNegotiations", err))
		return
	}

	ctx.JSON(http.StatusOK, ns)
}

// HandleGetNegotiation godoc
// @Summary      Get a negotiation
// @Tags         negotiations
// @Produce      json
// @Param        id   path      string  true  "Negotiation ID"
// @Success      200  {object}  domain.Negotiation
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Router       /negotiations/{id} [get]
// @Security BearerAuth
func (h *NegotiationHandler) HandleGetNegotiation(ctx *gin.Context) {
	n, err := h.svc.GetNegotiation(ctx.Request.Context(), ctx.Param("id"), middleware.Identity(ctx), middleware.IsAdmin(ctx))
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleGetNegotiation -> h.svc.GetNegotiation", err))
		return
	}

	ctx.JSON(http.StatusOK, n)
}

// HandleSetShipping godoc
// @Summary      Quote the shipping cost
// @Description  Seller only. Quoting again overwrites the previous quote until the buyer confirms.
// @Tags         negotiations
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Negotiation ID"
// @Param        request  body      request.ShippingRequest  true  "quote"
// @Success      200      {object}  domain.Negotiation
// @Failure      400      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      409      {object}  response.Err
// @Router       /negotiations/{id}/shipping [post]
// @Security BearerAuth
func (h *NegotiationHandler) HandleSetShipping(ctx *gin.Context) {
	var req request.ShippingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	n, err := h.svc.SetShippingCost(ctx.Request.Context(), ctx.Param("id"), middleware.Identity(ctx), service.ShippingQuote{
		Cost:         req.Cost,
		DeliveryDate: req.ParsedDeliveryDate(),
		Notes:        req.Notes,
	})
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleSetShipping -> h.svc.SetShippingCost", err))
		return
	}

	ctx.JSON(http.StatusOK, n)
}

// HandleConfirm godoc
// @Summary      Confirm and pay for a negotiation
// @Description  Debits the buyer and credits the seller atomically.
// @Tags         negotiations
// @Produce      json
// @Param        id   path      string  true  "Negotiation ID"
// @Success      200  {object}  domain.Negotiation
// @Failure      403  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      422  {object}  response.Err
// @Router       /negotiations/{id}/confirm [post]
// @Security BearerAuth
func (h *NegotiationHandler) HandleConfirm(ctx *gin.Context) {
	h.buyerAction(ctx, "HandleConfirm -> h.svc.ConfirmPurchase", h.svc.ConfirmPurchase)
}

// HandleDecline godoc
// @Summary      Decline a negotiation
// @Tags         negotiations
// @Produce      json
// @Param        id   path      string  true  "Negotiation ID"
// @Success      200  {object}  domain.Negotiation
// @Failure      403  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Router       /negotiations/{id}/decline [post]
// @Security BearerAuth
func (h *NegotiationHandler) HandleDecline(ctx *gin.Context) {
	h.buyerAction(ctx, "HandleDecline -> h.svc.DeclinePurchase", h.svc.DeclinePurchase)
}

// HandleReceipt godoc
// @Summary      Acknowledge receipt of the goods
// @Tags         negotiations
// @Produce      json
// @Param        id   path      string  true  "Negotiation ID"
// @Success      200  {object}  domain.Negotiation
// @Failure      403  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Router       /negotiations/{id}/receipt [post]
// @Security BearerAuth
func (h *NegotiationHandler) HandleReceipt(ctx *gin.Context) {
	h.buyerAction(ctx, "HandleReceipt -> h.svc.AcknowledgeReceipt", h.svc.AcknowledgeReceipt)
}

func (h *NegotiationHandler) buyerAction(
	ctx *gin.Context,
	where string,
	action func(ctx context.Context, negotiationID, buyer string) (domain.Negotiation, error),
) {
	n, err := action(ctx.Request.Context(), ctx.Param("id"), middleware.Identity(ctx))
	if err != nil {
		response.RenderErr(ctx, response.FromService(where, err))
		return
	}

	ctx.JSON(http.StatusOK, n)
}

// HandleCancel godoc
// @Summary      Cancel a stuck negotiation
// @Description  A confirmed negotiation is refunded to the buyer in the same transaction.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Negotiation ID"
// @Param        request  body      request.CancelRequest  true  "reason"
// @Success      200      {object}  domain.Negotiation
// @Failure      409      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Router       /admin/negotiations/{id}/cancel [post]
// @Security BearerAuth
func (h *NegotiationHandler) HandleCancel(ctx *gin.Context) {
	var req request.CancelRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	n, err := h.svc.CancelStale(ctx.Request.Context(), ctx.Param("id"), req.Reason)
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleCancel -> h.svc.CancelStale", err))
		return
	}

	ctx.JSON(http.StatusOK, n)
}

package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/glory2yahpub/marketplace/internal/api/handler/v1/request"
	"github.com/glory2yahpub/marketplace/internal/api/handler/v1/response"
	"github.com/glory2yahpub/marketplace/internal/api/middleware"
	"github.com/glory2yahpub/marketplace/internal/domain"
)

type LedgerService interface {
	GetOrCreateAccount(ctx context.Context, identity string) (domain.Account, error)
	ListEntries(ctx context.Context, identity string) ([]domain.LedgerEntry, error)
	RequestTopUp(ctx context.Context, identity string, amount int64) (string, error)
	AttachProof(ctx context.Context, identity, requestID, documentRef string) error
	ListTopUps(ctx context.Context, identity string) ([]domain.TopUpRequest, error)
	ListPendingTopUps(ctx context.Context) ([]domain.TopUpRequest, error)
	ApproveTopUp(ctx context.Context, requestID string) (domain.Account, error)
	RejectTopUp(ctx context.Context, requestID string) error
	AdminSetBalance(ctx context.Context, identity string, newBalance int64, reason string) (domain.Account, error)
	AdminAdjust(ctx context.Context, identity string, delta int64, reason string) (domain.Account, error)
}

type LedgerHandler struct {
	svc LedgerService
}

func NewLedgerHandler(svc LedgerService) *LedgerHandler {
	return &LedgerHandler{
		svc: svc,
	}
}

// HandleGetMyAccount godoc
// @Summary      Get the caller's credit account
// @Tags         ledger
// @Produce      json
// @Success      200  {object}  domain.Account
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /accounts/me [get]
// @Security BearerAuth
func (h *LedgerHandler) HandleGetMyAccount(ctx *gin.Context) {
	account, err := h.svc.GetOrCreateAccount(ctx.Request.Context(), middleware.Identity(ctx))
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleGetMyAccount -> h.svc.GetOrCreateAccount", err))
		return
	}

	ctx.JSON(http.StatusOK, account)
}

// HandleGetMyEntries godoc
// @Summary      List the caller's ledger entries
// @Tags         ledger
// @Produce      json
// @Success      200  {array}   domain.LedgerEntry
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /accounts/me/entries [get]
// @Security BearerAuth
func (h *LedgerHandler) HandleGetMyEntries(ctx *gin.Context) {
	entries, err := h.svc.ListEntries(ctx.Request.Context(), middleware.Identity(ctx))
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleGetMyEntries -> h.svc.ListEntries", err))
		return
	}

	ctx.JSON(http.StatusOK, entries)
}

// HandleRequestTopUp godoc
// @Summary      Request a credit top-up
// @Description  Creates a pending top-up request. Credits are granted once an admin approves it.
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        request  body      request.TopUpRequest  true  "amount"
// @Success      201      {object}  response.TopUpCreated
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /topups [post]
// @Security BearerAuth
func (h *LedgerHandler) HandleRequestTopUp(ctx *gin.Context) {
	var req request.TopUpRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	id, err := h.svc.RequestTopUp(ctx.Request.Context(), middleware.Identity(ctx), req.Amount)
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleRequestTopUp -> h.svc.RequestTopUp", err))
		return
	}

	ctx.JSON(http.StatusCreated, response.TopUpCreated{RequestID: id})
}

// HandleListMyTopUps godoc
// @Summary      List the caller's top-up requests
// @Tags         ledger
// @Produce      json
// @Success      200  {array}   domain.TopUpRequest
// @Failure      401  {object}  response.Err
// @Router       /topups [get]
// @Security BearerAuth
func (h *LedgerHandler) HandleListMyTopUps(ctx *gin.Context) {
	reqs, err := h.svc.ListTopUps(ctx.Request.Context(), middleware.Identity(ctx))
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleListMyTopUps -> h.svc.ListTopUps", err))
		return
	}

	ctx.JSON(http.StatusOK, reqs)
}

// HandleAttachProof godoc
// @Summary      Attach a payment proof to a top-up request
// @Tags         ledger
// @Accept       json
// @Param        requestID  path  string               true  "Top-up request ID"
// @Param        request    body  request.ProofRequest true  "uploaded document reference"
// @Success      204
// @Failure      400  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Router       /topups/{requestID}/proof [post]
// @Security BearerAuth
func (h *LedgerHandler) HandleAttachProof(ctx *gin.Context) {
	var req request.ProofRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	err := h.svc.AttachProof(ctx.Request.Context(), middleware.Identity(ctx), ctx.Param("requestID"), req.DocumentRef)
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleAttachProof -> h.svc.AttachProof", err))
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleListPendingTopUps godoc
// @Summary      List pending top-up requests
// @Tags         admin
// @Produce      json
// @Success      200  {array}   domain.TopUpRequest
// @Failure      403  {object}  response.Err
// @Router       /admin/topups/pending [get]
// @Security BearerAuth
func (h *LedgerHandler) HandleListPendingTopUps(ctx *gin.Context) {
	reqs, err := h.svc.ListPendingTopUps(ctx.Request.Context())
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleListPendingTopUps -> h.svc.ListPendingTopUps", err))
		return
	}

	ctx.JSON(http.StatusOK, reqs)
}

// HandleApproveTopUp godoc
// @Summary      Approve a top-up request
// @Description  Credits the requester. Approving the same request twice is rejected.
// @Tags         admin
// @Produce      json
// @Param        requestID  path      string  true  "Top-up request ID"
// @Success      200        {object}  domain.Account
// @Failure      404        {object}  response.Err
// @Failure      409        {object}  response.Err
// @Failure      422        {object}  response.Err
// @Router       /admin/topups/{requestID}/approve [post]
// @Security BearerAuth
func (h *LedgerHandler) HandleApproveTopUp(ctx *gin.Context) {
	account, err := h.svc.ApproveTopUp(ctx.Request.Context(), ctx.Param("requestID"))
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleApproveTopUp -> h.svc.ApproveTopUp", err))
		return
	}

	ctx.JSON(http.StatusOK, account)
}

// HandleRejectTopUp godoc
// @Summary      Reject a top-up request
// @Tags         admin
// @Param        requestID  path  string  true  "Top-up request ID"
// @Success      204
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Router       /admin/topups/{requestID}/reject [post]
// @Security BearerAuth
func (h *LedgerHandler) HandleRejectTopUp(ctx *gin.Context) {
	if err := h.svc.RejectTopUp(ctx.Request.Context(), ctx.Param("requestID")); err != nil {
		response.RenderErr(ctx, response.FromService("HandleRejectTopUp -> h.svc.RejectTopUp", err))
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleSetBalance godoc
// @Summary      Overwrite an account balance
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        identity  path      string                     true  "WhatsApp number"
// @Param        request   body      request.SetBalanceRequest  true  "new balance and reason"
// @Success      200       {object}  domain.Account
// @Failure      400       {object}  response.Err
// @Router       /admin/accounts/{identity}/balance [post]
// @Security BearerAuth
func (h *LedgerHandler) HandleSetBalance(ctx *gin.Context) {
	var req request.SetBalanceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	identity := request.NormalizeWhatsApp(ctx.Param("identity"))
	account, err := h.svc.AdminSetBalance(ctx.Request.Context(), identity, req.Balance, req.Reason)
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleSetBalance -> h.svc.AdminSetBalance", err))
		return
	}

	ctx.JSON(http.StatusOK, account)
}

// HandleAdjustBalance godoc
// @Summary      Add or remove credits from an account
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        identity  path      string                        true  "WhatsApp number"
// @Param        request   body      request.AdjustBalanceRequest  true  "signed delta and reason"
// @Success      200       {object}  domain.Account
// @Failure      400       {object}  response.Err
// @Failure      422       {object}  response.Err
// @Router       /admin/accounts/{identity}/adjust [post]
// @Security BearerAuth
func (h *LedgerHandler) HandleAdjustBalance(ctx *gin.Context) {
	var req request.AdjustBalanceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	identity := request.NormalizeWhatsApp(ctx.Param("identity"))
	account, err := h.svc.AdminAdjust(ctx.Request.Context(), identity, req.Delta, req.Reason)
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleAdjustBalance -> h.svc.AdminAdjust", err))
		return
	}

	ctx.JSON(http.StatusOK, account)
}

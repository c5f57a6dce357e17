package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/glory2yahpub/marketplace/internal/domain"
)

// Err is the JSON body of every failed request.
type Err struct {
	Err            error  `json:"-"`
	HTTPStatusCode int    `json:"-"`
	StatusText     string `json:"status"`
	ErrorMsg       string `json:"error,omitempty"`
}

func (e *Err) Error() string {
	return e.ErrorMsg
}

func RenderErr(ctx *gin.Context, e *Err) {
	if e.HTTPStatusCode >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", ctx.FullPath()),
			zap.String("method", ctx.Request.Method),
			zap.Error(e.Err),
		)
	}

	ctx.AbortWithStatusJSON(e.HTTPStatusCode, e)
}

func newErr(status int, err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: status,
		StatusText:     http.StatusText(status),
		ErrorMsg:       err.Error(),
	}
}

func ErrBadRequest(err error) *Err {
	return newErr(http.StatusBadRequest, err)
}

func ErrWrongCredentials(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusUnauthorized,
		StatusText:     http.StatusText(http.StatusUnauthorized),
		ErrorMsg:       "wrong whatsapp number or password",
	}
}

func ErrUnauthenticated(err error) *Err {
	return newErr(http.StatusUnauthorized, err)
}

func ErrPermissionDenied(err error) *Err {
	return newErr(http.StatusForbidden, err)
}

func ErrNotFound(resource, field string, value any) *Err {
	return newErr(http.StatusNotFound, fmt.Errorf("%s with %s %v not found", resource, field, value))
}

func ErrConflict(err error) *Err {
	return newErr(http.StatusConflict, err)
}

func ErrUnprocessable(err error) *Err {
	return newErr(http.StatusUnprocessableEntity, err)
}

func ErrInternalServerError(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		StatusText:     http.StatusText(http.StatusInternalServerError),
		ErrorMsg:       "internal server error",
	}
}

var (
	badRequest = []error{
		domain.ErrInvalidAmount,
		domain.ErrReasonRequired,
		domain.ErrAddressRequired,
		domain.ErrEmptyCart,
		domain.ErrEmptyMessage,
		domain.ErrInvalidListing,
	}
	notFound = []error{
		domain.ErrRequestNotFound,
		domain.ErrAccountNotFound,
		domain.ErrListingNotFound,
		domain.ErrNegotiationNotFound,
		domain.ErrBatchNotFound,
	}
	conflict = []error{
		domain.ErrRequestNotPending,
		domain.ErrAlreadyApproved,
		domain.ErrInvalidStateTransition,
	}
	unprocessable = []error{
		domain.ErrInsufficientBalance,
		domain.ErrProofMissing,
		domain.ErrListingNotPurchasable,
		domain.ErrListingNotEligible,
		domain.ErrMixedSellers,
		domain.ErrInsufficientSupply,
	}
)

// FromService maps a business error to its HTTP rendering. Anything it does
// not recognise is an internal error; where names the failing call for logs.
func FromService(where string, err error) *Err {
	cause := unwrapKnown(err)
	switch {
	case cause == nil:
		return ErrInternalServerError(fmt.Errorf("%s -> %w", where, err))
	case errors.Is(cause, domain.ErrUnauthorized):
		return ErrPermissionDenied(cause)
	case isAny(cause, badRequest):
		return ErrBadRequest(cause)
	case isAny(cause, notFound):
		return newErr(http.StatusNotFound, cause)
	case isAny(cause, conflict):
		return ErrConflict(cause)
	default:
		return ErrUnprocessable(cause)
	}
}

func unwrapKnown(err error) error {
	groups := [][]error{{domain.ErrUnauthorized}, badRequest, notFound, conflict, unprocessable}
	for _, group := range groups {
		for _, target := range group {
			if errors.Is(err, target) {
				return target
			}
		}
	}
	return nil
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

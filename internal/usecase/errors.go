package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/aq2208/gorder-pickup/internal/security"
)

var (
	// persistence gateway
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")

	// validation
	ErrValidation = errors.New("validation failed")

	// conflict
	ErrDuplicate         = errors.New("duplicate idempotency key")
	ErrAlreadyCollected  = errors.New("order already collected")
	ErrCouponAlreadyUsed = errors.New("coupon already used")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrContention        = errors.New("too many concurrent updates")

	// integrity
	ErrMalformedToken = security.ErrMalformedToken
	ErrTokenExpired   = security.ErrTokenExpired
	ErrTokenTampered  = security.ErrTokenTampered

	// policy
	ErrCouponInvalid      = errors.New("coupon not found for customer")
	ErrCouponInactive     = errors.New("coupon is not active")
	ErrNotOwner           = errors.New("order belongs to another customer")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrDemoTokenRejected  = errors.New("demo orders cannot be collected by scan")

	// not found
	ErrOrderNotFound    = errors.New("order not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrRewardNotFound   = errors.New("reward not found")

	// infrastructure, after retries are exhausted
	ErrUnavailable = errors.New("service temporarily unavailable")
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindIntegrity
	KindPolicy
	KindNotFound
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindIntegrity:
		return "integrity"
	case KindPolicy:
		return "policy"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

type classified struct {
	err  error
	kind Kind
	code string
}

// ordered: the first match wins, so wrapped validation errors are checked before their causes
var taxonomy = []classified{
	{ErrValidation, KindValidation, "validation_failed"},
	{ErrDuplicate, KindConflict, "duplicate_request"},
	{ErrAlreadyCollected, KindConflict, "already_collected"},
	{ErrCouponAlreadyUsed, KindConflict, "coupon_already_used"},
	{ErrInvalidTransition, KindConflict, "invalid_transition"},
	{ErrVersionConflict, KindConflict, "version_conflict"},
	{ErrContention, KindConflict, "contention"},
	{ErrMalformedToken, KindIntegrity, "malformed_token"},
	{ErrTokenExpired, KindIntegrity, "token_expired"},
	{ErrTokenTampered, KindIntegrity, "token_tampered"},
	{ErrCouponInvalid, KindPolicy, "coupon_invalid"},
	{ErrCouponInactive, KindPolicy, "coupon_inactive"},
	{ErrNotOwner, KindPolicy, "not_owner"},
	{ErrInsufficientPoints, KindPolicy, "insufficient_points"},
	{ErrDemoTokenRejected, KindPolicy, "demo_token_rejected"},
	{ErrOrderNotFound, KindNotFound, "order_not_found"},
	{ErrCustomerNotFound, KindNotFound, "customer_not_found"},
	{ErrRewardNotFound, KindNotFound, "reward_not_found"},
	{ErrNotFound, KindNotFound, "not_found"},
	{ErrUnavailable, KindUnavailable, "unavailable"},
	{context.DeadlineExceeded, KindUnavailable, "timeout"},
}

// KindOf classifies err into the error taxonomy; unknown errors are KindInternal.
func KindOf(err error) Kind {
	k, _ := classify(err)
	return k
}

// Code returns a stable machine-readable code for err.
func Code(err error) string {
	_, c := classify(err)
	return c
}

func classify(err error) (Kind, string) {
	if err == nil {
		return KindInternal, ""
	}
	for _, c := range taxonomy {
		if errors.Is(err, c.err) {
			return c.kind, c.code
		}
	}
	return KindInternal, "internal_error"
}

// isDomain reports whether err is a business outcome rather than an infrastructure failure.
func isDomain(err error) bool {
	k := KindOf(err)
	return k != KindInternal && k != KindUnavailable
}

func validationErr(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

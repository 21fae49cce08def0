package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountSuspended = errors.New("account is suspended")
	ErrEmailNotVerified = errors.New("email address not verified")

	// Token lifecycle errors. Wrong, consumed and expired tokens all map to ErrInvalidToken.
	ErrInvalidToken      = errors.New("token is invalid or has expired")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrIncorrectPassword = errors.New("old password is incorrect")

	// Collaborator errors
	ErrMailDelivery = errors.New("failed to deliver email")
	ErrImageHost    = errors.New("image host request failed")

	ErrAlreadyInWishlist = errors.New("product already in wishlist")
)

package domain

import "errors"

// Authentication errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session expired")
	ErrSessionRevoked    = errors.New("session revoked")
	ErrInvalidToken      = errors.New("invalid token")
)

// Challenge errors
var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrChallengeConsumed = errors.New("challenge already answered")
	ErrChallengeRejected = errors.New("challenge rejected")
)

// Tenant errors
var (
	ErrTenantSlugTaken    = errors.New("tenant slug already taken")
	ErrSlugSpaceExhausted = errors.New("exhausted slug candidates for tenant")
	ErrMembershipNotFound = errors.New("membership not found")
)

// Validation errors
var (
	ErrInvalidEmail = errors.New("invalid email address")
)

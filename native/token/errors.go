package token

import "errors"

var (
	ErrUnauthorized          = errors.New("token: caller is not owner or manager")
	ErrNotOwner              = errors.New("token: caller is not owner")
	ErrInvalidConfig         = errors.New("token: invalid configuration")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrInvalidAmount         = errors.New("token: amount must be positive")
)

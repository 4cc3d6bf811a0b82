package staking

import "errors"

var (
	ErrStakeTokenNotSet    = errors.New("staking: stake token not configured")
	ErrStakeTokenSet       = errors.New("staking: stake token already configured")
	ErrUnauthorized        = errors.New("staking: unauthorized")
	ErrInsufficientStake   = errors.New("staking: withdraw amount exceeds staked position")
	ErrInvalidAmount       = errors.New("staking: amount must be positive")
	ErrUnknownAsset        = errors.New("staking: unknown reward asset")
	ErrInsufficientFunding = errors.New("staking: caller balance or allowance below deposit amount")
)

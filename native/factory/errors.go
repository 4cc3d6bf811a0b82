package factory

import "errors"

var (
	ErrNotOwner             = errors.New("factory: caller is not store owner")
	ErrFactoryNotAuthorized = errors.New("factory: factory not registered with store")
	ErrRedeployForbidden    = errors.New("factory: caller may not redeploy this organization's token")
	ErrNotFound             = errors.New("factory: organization not found")
)

package registry

import "errors"

var (
	ErrNotFound          = errors.New("service is not registered")
	ErrNameExists        = errors.New("service name is already registered")
	ErrTagsOverflow      = errors.New("too many tags")
	ErrPermissionDenied  = errors.New("caller does not own the service")
	ErrRootHashMismatch  = errors.New("previous root hash does not match the chain head")
	ErrSignatureInvalid  = errors.New("signature is invalid")
	ErrSignatureTooEarly = errors.New("signed entry predates the chain head")

	ErrTimestampConversion = errors.New("timestamp is not representable as epoch milliseconds")
	ErrBalanceConversion   = errors.New("reward amount is not representable as a balance")
	ErrRewardTransfer      = errors.New("reward transfer failed")
)

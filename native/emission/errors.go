package emission

import "errors"

var (
	ErrStaleSettlement  = errors.New("emission: settlement timestamp not after anchor")
	ErrFutureSettlement = errors.New("emission: settlement timestamp too far ahead")
	ErrInvalidArgs      = errors.New("emission: invalid schedule arguments")
)

package message

import "errors"

var (
	ErrMessageNotFound = errors.New("message not found")
)

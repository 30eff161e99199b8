package domain

import "errors"

var (
	ErrUnauthorized    = errors.New("this operation is not allowed")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrDecode          = errors.New("malformed identifier")
	ErrConflict        = errors.New("conflict")
	ErrStorage         = errors.New("storage failure")
)

package app

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrBookNotFound = errors.New("book not found")
)

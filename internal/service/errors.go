package service

import "errors"

// Order failures are terminal for the request: the transactional apply
// guarantees no partial state change behind any of them.
var (
	ErrInvalidInput       = errors.New("error invalid input")
	ErrUnknownSymbol      = errors.New("error unknown symbol")
	ErrInsufficientFunds  = errors.New("error insufficient funds")
	ErrInsufficientShares = errors.New("error insufficient shares")
	ErrNoSuchPosition     = errors.New("error no such position")
	ErrNotFound           = errors.New("error not found")
	ErrAlreadyExists      = errors.New("error already exists")
)

package ledger

import "errors"

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientFunds   = errors.New("insufficient balance")
	ErrUserNotFound        = errors.New("ledger user not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

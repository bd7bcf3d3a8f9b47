package sales

import (
	"errors"
	"fmt"
)

// Code is the numeric identifier of a settlement failure. Values start at
// 6000 like on-chain custom program errors so clients can match on either.
type Code uint32

// Error is a terminal failure of a single operation. No state is persisted
// when one is returned.
type Error struct {
	Code    Code
	Name    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches on the code so wrapped copies still compare equal to the
// sentinel values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(code Code, name, msg string) *Error {
	return &Error{Code: code, Name: name, Message: msg}
}

var (
	ErrAlreadyInitialized    = newError(6000, "AlreadyInitialized", "sale account already initialized")
	ErrUnauthorized          = newError(6001, "Unauthorized", "caller is not the sale authority")
	ErrSaleClosed            = newError(6002, "SaleClosed", "sale is not active")
	ErrAlreadyClosed         = newError(6003, "AlreadyClosed", "sale is already closed")
	ErrInvalidPrice          = newError(6004, "InvalidPrice", "price per unit must be greater than zero")
	ErrInvalidAmount         = newError(6005, "InvalidAmount", "amount must be greater than zero")
	ErrInsufficientFunds     = newError(6006, "InsufficientFunds", "insufficient balance")
	ErrInsufficientInventory = newError(6007, "InsufficientInventory", "not enough tokens left for sale")
	ErrArithmeticOverflow    = newError(6008, "ArithmeticOverflow", "arithmetic overflow")
	ErrSaleEnded             = newError(6009, "SaleEnded", "sale ended")
	ErrInvalidEndTime        = newError(6010, "InvalidEndTime", "end time must be in the future")
	ErrInvalidMint           = newError(6011, "InvalidMint", "token and payment mints must be distinct and non-zero")
	ErrBalanceMismatch       = newError(6012, "BalanceMismatch", "vault balance is below recorded inventory")
	ErrAccountNotFound       = newError(6013, "AccountNotFound", "sale account not found")
	ErrUnknownInstruction    = newError(6014, "UnknownInstruction", "unknown instruction")
	ErrMalformedInstruction  = newError(6015, "MalformedInstruction", "malformed instruction data")
	ErrAccountMismatch       = newError(6016, "AccountMismatch", "accounts do not match the instruction layout")
	ErrMissingSignature      = newError(6017, "MissingSignature", "required signer did not sign")
	ErrInvalidSignature      = newError(6018, "InvalidSignature", "signature verification failed")
	ErrDuplicateTransaction  = newError(6019, "DuplicateTransaction", "transaction already processed")
)

// ErrNotFound is returned by storage backends when a key is absent.
var ErrNotFound = errors.New("not found")

// ErrReadOnly is returned when a View transaction attempts a write.
var ErrReadOnly = errors.New("write in read-only transaction")

// ErrInvalidStatus is returned when a status filter cannot be parsed.
var ErrInvalidStatus = errors.New("invalid status value")

// AsError extracts the settlement error from err, if any.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// wrapf attaches context to a settlement error while keeping it matchable
// with errors.Is.
func wrapf(err *Error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{err}, args...)...)
}

package domain

import "errors"

// Validation failures. Any of these aborts the operation with no state change.
var (
	ErrItemNotFound   = errors.New("item not found")
	ErrBundleNotFound = errors.New("bundle not found")

	ErrTransferFailed = errors.New("asset transfer failed")
	ErrNotSeller      = errors.New("caller is not the seller")
	ErrAlreadySold    = errors.New("item is no longer listed")
	ErrItemLocked     = errors.New("item is locked by an active bundle")

	ErrInvalidBundle    = errors.New("invalid bundle")
	ErrNotActive        = errors.New("bundle is not active")
	ErrAlreadyCompleted = errors.New("bundle already completed")
	ErrNotSellerOfAll   = errors.New("caller is not the seller of every item in the bundle")

	ErrDuplicateInterest = errors.New("buyer already expressed interest")
	ErrEmptyInterest     = errors.New("items of interest must not be empty")
	ErrItemNotInBundle   = errors.New("item is not part of the bundle")
	ErrQuorumReached     = errors.New("bundle already has the required number of buyers")

	ErrInsufficientInterest = errors.New("not enough interested buyers")
	ErrUnauthorized         = errors.New("unauthorized caller")
	ErrLengthMismatch       = errors.New("buyers and values differ in length")
	ErrBuyerNotInterested   = errors.New("buyer is not an interested party")
	ErrSumMismatch          = errors.New("sum of assigned values does not equal bundle price")
	ErrDuplicateBuyer       = errors.New("buyer appears more than once in the assignment")
	ErrAssignmentFrozen     = errors.New("assignment is frozen once payments have begun")
	ErrAssignmentIncomplete = errors.New("assignment does not cover every interested buyer")

	ErrNotInterested       = errors.New("buyer never expressed interest")
	ErrAlreadyPaid         = errors.New("buyer already paid")
	ErrValueNotSet         = errors.New("no assigned value for buyer")
	ErrInsufficientPayment = errors.New("payment is less than the assigned value")
	ErrPaymentFailed       = errors.New("could not collect payment")

	ErrInvalidAmount  = errors.New("invalid amount")
	ErrReentrantCall  = errors.New("reentrant call while an external call is in flight")
	ErrInvalidAddress = errors.New("invalid address")
)

package storage

import "errors"

// Sentinel errors shared by every bid store implementation so that
// handlers can map them to HTTP statuses with errors.Is.
var (
	ErrBidNotFound      = errors.New("bid not found")
	ErrProjectNotFound  = errors.New("project not found")
	ErrNotPending       = errors.New("bid is no longer pending")
	ErrDuplicatePending = errors.New("freelancer already has a pending bid on this project")
)

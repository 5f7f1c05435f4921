package vaultdb

import "errors"

// Sentinel errors returned by the store's save/get operations.
var (
	ErrEmptyMembers      = errors.New("vaultdb: members must not be empty")
	ErrVaultNotFound     = errors.New("vaultdb: vault not found")
	ErrPolicyNotFound    = errors.New("vaultdb: policy not found")
	ErrProposalNotFound  = errors.New("vaultdb: proposal not found")
	ErrInviteNotFound    = errors.New("vaultdb: vault invite not found")
	ErrAlreadyExists     = errors.New("vaultdb: event already processed")
)

package lookup

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means the partner answered but had no data for the identifier.
	ErrNotFound = errors.New("lookup: not found")
	// ErrRemoteUnavailable covers transport failures and 5xx responses.
	ErrRemoteUnavailable = errors.New("lookup: remote unavailable")
	// ErrRemoteTimeout means the call exceeded its deadline. Callers treat it
	// as not found rather than retrying in-band.
	ErrRemoteTimeout = errors.New("lookup: remote timeout")
)

// AccountDescriptor is the partner's description of an account, as returned
// by the Lookup API.
type AccountDescriptor struct {
	Identifier string        `json:"identifier"`
	Config     AccountConfig `json:"config"`
}

type AccountConfig struct {
	AdminEmail string `json:"admin_email"`
	Name       string `json:"name"`
}

// UserDescriptor is the partner's description of a user within an account.
type UserDescriptor struct {
	Identifier     string         `json:"identifier"`
	Username       string         `json:"username"`
	Email          string         `json:"email"`
	EmployeeRecord EmployeeRecord `json:"employee_record"`
}

type EmployeeRecord struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Client resolves external identifiers into descriptive account/user data via
// the partner's Lookup API. The reconciler depends only on this contract.
type Client interface {
	AccountLookup(ctx context.Context, externalAccountID string) (*AccountDescriptor, error)
	UserLookup(ctx context.Context, externalAccountID, externalUserID string) (*UserDescriptor, error)
	BulkUserLookup(ctx context.Context, externalAccountID string) ([]UserDescriptor, error)
}

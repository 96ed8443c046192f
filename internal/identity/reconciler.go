package identity

import (
	"context"
	"errors"
	"math/rand"

	"github.com/panelapp/addressmapper/internal/config"
	"github.com/panelapp/addressmapper/internal/lookup"
	"github.com/panelapp/addressmapper/pkg/logger"
	"github.com/panelapp/addressmapper/pkg/metrics"
)

// ErrNotFound means no local record could be matched or created for the
// external identifier.
var ErrNotFound = errors.New("identity: not found")

// Coordinate bounds for generated user addresses. Placeholder application
// data for newly created users, not security relevant.
const (
	minLat, maxLat = 20.0, 65.0
	minLng, maxLng = -125.0, -80.0
)

// Reconciler matches the partner's external accounts and users to local
// records, creating them lazily when the configuration allows. Lookup
// failures degrade to not-found; storage failures propagate, since returning
// an unmapped identity would break the mapping invariants.
type Reconciler struct {
	accounts       AccountRepository
	users          UserRepository
	client         lookup.Client
	createAccounts bool
	createUsers    bool
	coords         func() (lat, lng float64)
}

func NewReconciler(cfg config.PartnerConfig, accounts AccountRepository, users UserRepository, client lookup.Client) *Reconciler {
	return &Reconciler{
		accounts:       accounts,
		users:          users,
		client:         client,
		createAccounts: cfg.CreateAccounts,
		createUsers:    cfg.CreateUsers,
		coords:         randomCoordinates,
	}
}

func randomCoordinates() (float64, float64) {
	return minLat + rand.Float64()*(maxLat-minLat), minLng + rand.Float64()*(maxLng-minLng)
}

// ResolveAccount returns the local account mapped to externalID. On a local
// miss with allowRemote set, it asks the Lookup API about the identifier and
// matches or creates a local account. allowRemote=false is used after
// creation to re-read without recursing back into the API.
func (r *Reconciler) ResolveAccount(ctx context.Context, externalID string, allowRemote bool) (*Account, error) {
	if externalID == "" {
		return nil, ErrNotFound
	}

	a, err := r.accounts.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if a != nil {
		return a, nil
	}
	if !allowRemote {
		return nil, ErrNotFound
	}

	desc, err := r.client.AccountLookup(ctx, externalID)
	if err != nil {
		logger.Warnf("identity: failed to look up account %s: %v", externalID, err)
		metrics.Reconciliations.WithLabelValues("account", "lookup_failed").Inc()
		return nil, ErrNotFound
	}

	return r.reconcileAccount(ctx, desc)
}

// reconcileAccount matches a partner account descriptor against local
// accounts by admin email or account name, records the mapping, and creates
// a new account when nothing matches and creation is enabled.
func (r *Reconciler) reconcileAccount(ctx context.Context, desc *lookup.AccountDescriptor) (*Account, error) {
	matches, err := r.accounts.FindMatches(ctx, desc.Config.AdminEmail, desc.Config.Name)
	if err != nil {
		return nil, err
	}

	if len(matches) > 0 {
		// More than one local account can satisfy the match key. Tie-break:
		// lowest id wins, an approximation the matching rules leave open.
		if len(matches) > 1 {
			logger.Warnf("identity: ambiguous account match for %s (%d candidates), picking %s",
				desc.Identifier, len(matches), matches[0].ID)
			metrics.Reconciliations.WithLabelValues("account", "ambiguous").Inc()
		}
		local := matches[0]

		// mapping already recorded, nothing to write
		if local.ExternalID == desc.Identifier {
			return local, nil
		}

		if err := r.accounts.SetExternalID(ctx, local.ID, desc.Identifier); err != nil {
			if errors.Is(err, ErrDuplicate) {
				// another request mapped this identifier first; use its row
				return r.ResolveAccount(ctx, desc.Identifier, false)
			}
			return nil, err
		}
		logger.Infof("identity: mapped account %q to identifier %s", local.Name, desc.Identifier)
		metrics.Reconciliations.WithLabelValues("account", "mapped").Inc()
		local.ExternalID = desc.Identifier
		return local, nil
	}

	if !r.createAccounts {
		metrics.Reconciliations.WithLabelValues("account", "creation_disabled").Inc()
		return nil, ErrNotFound
	}

	_, err = r.accounts.Insert(ctx, &Account{
		ExternalID: desc.Identifier,
		AdminEmail: desc.Config.AdminEmail,
		Name:       desc.Config.Name,
	})
	if err != nil && !errors.Is(err, ErrDuplicate) {
		return nil, err
	}
	// Re-read our own row (or, on a lost creation race, the winner's row).
	// Remote lookup stays off here to rule out infinite recursion.
	created, err := r.ResolveAccount(ctx, desc.Identifier, false)
	if err != nil {
		return nil, err
	}
	logger.Infof("identity: created account %q for identifier %s", created.Name, desc.Identifier)
	metrics.Reconciliations.WithLabelValues("account", "created").Inc()
	return created, nil
}

// ResolveUser returns the local user in account mapped to externalID,
// following the same shape as ResolveAccount with the account as scope.
func (r *Reconciler) ResolveUser(ctx context.Context, externalID string, account *Account, allowRemote bool) (*User, error) {
	if externalID == "" || account == nil {
		return nil, ErrNotFound
	}

	u, err := r.users.GetByExternalID(ctx, account.ID, externalID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}
	if !allowRemote {
		return nil, ErrNotFound
	}

	desc, err := r.client.UserLookup(ctx, account.ExternalID, externalID)
	if err != nil {
		logger.Warnf("identity: failed to look up user %s: %v", externalID, err)
		metrics.Reconciliations.WithLabelValues("user", "lookup_failed").Inc()
		return nil, ErrNotFound
	}

	return r.reconcileUser(ctx, desc, account)
}

// reconcileUser matches a partner user descriptor against local users in the
// account by username, email, or full name.
func (r *Reconciler) reconcileUser(ctx context.Context, desc *lookup.UserDescriptor, account *Account) (*User, error) {
	matches, err := r.users.FindMatches(ctx, account.ID,
		desc.Username, desc.Email, desc.EmployeeRecord.FirstName, desc.EmployeeRecord.LastName)
	if err != nil {
		return nil, err
	}

	if len(matches) > 0 {
		if len(matches) > 1 {
			logger.Warnf("identity: ambiguous user match for %s (%d candidates), picking %s",
				desc.Identifier, len(matches), matches[0].ID)
			metrics.Reconciliations.WithLabelValues("user", "ambiguous").Inc()
		}
		local := matches[0]

		if local.ExternalID == desc.Identifier {
			return local, nil
		}

		if err := r.users.SetExternalID(ctx, local.ID, desc.Identifier); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return r.ResolveUser(ctx, desc.Identifier, account, false)
			}
			return nil, err
		}
		logger.Infof("identity: mapped user %q to identifier %s", local.Username, desc.Identifier)
		metrics.Reconciliations.WithLabelValues("user", "mapped").Inc()
		local.ExternalID = desc.Identifier
		return local, nil
	}

	if !r.createUsers {
		metrics.Reconciliations.WithLabelValues("user", "creation_disabled").Inc()
		return nil, ErrNotFound
	}

	lat, lng := r.coords()
	_, err = r.users.Insert(ctx, &User{
		AccountID:  account.ID,
		ExternalID: desc.Identifier,
		Username:   desc.Username,
		Email:      desc.Email,
		FirstName:  desc.EmployeeRecord.FirstName,
		LastName:   desc.EmployeeRecord.LastName,
		Lat:        lat,
		Lng:        lng,
	})
	if err != nil && !errors.Is(err, ErrDuplicate) {
		return nil, err
	}
	created, err := r.ResolveUser(ctx, desc.Identifier, account, false)
	if err != nil {
		return nil, err
	}
	logger.Infof("identity: created user %q for identifier %s", created.Email, desc.Identifier)
	metrics.Reconciliations.WithLabelValues("user", "created").Inc()
	return created, nil
}

// ReconcileAll pre-emptively maps every user the partner reports for the
// account, so later content requests don't each pay for an API round trip.
// One user failing to match or create never aborts the rest.
func (r *Reconciler) ReconcileAll(ctx context.Context, account *Account) {
	descs, err := r.client.BulkUserLookup(ctx, account.ExternalID)
	if err != nil {
		logger.Warnf("identity: bulk user lookup failed for account %s: %v", account.ExternalID, err)
		return
	}

	for i := range descs {
		if _, err := r.reconcileUser(ctx, &descs[i], account); err != nil {
			logger.Warnf("identity: failed to reconcile user %s: %v", descs[i].Identifier, err)
			metrics.Reconciliations.WithLabelValues("user", "bulk_failed").Inc()
		}
	}
}

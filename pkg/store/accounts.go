package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/model"
)

// AccountStore persists the identity-to-organization link.
type AccountStore struct {
	db DB
}

// NewAccountStore creates an account store.
func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

// Provision ensures an account row exists for the identity and returns it.
// Idempotent: a second call for the same identity is a no-op that returns
// the existing row, with its organization and role untouched.
func (s *AccountStore) Provision(ctx context.Context, userID int64) (*model.Account, error) {
	now := time.Now().UTC()
	_, err := s.db.Writer().ExecContext(ctx, `
		INSERT INTO accounts (user_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, string(model.RoleMember), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to provision account: %w", err)
	}
	return s.GetByUserID(ctx, userID)
}

// GetByUserID returns the account linked to the identity.
func (s *AccountStore) GetByUserID(ctx context.Context, userID int64) (*model.Account, error) {
	var acct model.Account
	var role string
	err := s.db.Reader().QueryRowContext(ctx, `
		SELECT id, user_id, organization_id, role
		FROM accounts WHERE user_id = $1
	`, userID).Scan(&acct.ID, &acct.UserID, &acct.OrganizationID, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	acct.Role = model.Role(role)
	return &acct, nil
}

// Get returns the account with the given ID if the scope admits it.
// Accounts without an organization are only visible to the unrestricted
// scope.
func (s *AccountStore) Get(ctx context.Context, scope authz.Scope, id int64) (*model.Account, error) {
	clause, scopeArgs := scopeClause(scope, "organization_id", "", 1)
	args := append([]interface{}{id}, scopeArgs...)

	var acct model.Account
	var role string
	err := s.db.Reader().QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, user_id, organization_id, role
		FROM accounts WHERE id = $1 AND %s
	`, clause), args...).Scan(&acct.ID, &acct.UserID, &acct.OrganizationID, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	acct.Role = model.Role(role)
	return &acct, nil
}

// List returns accounts visible under the scope.
func (s *AccountStore) List(ctx context.Context, scope authz.Scope) ([]model.Account, error) {
	clause, args := scopeClause(scope, "organization_id", "", 0)
	rows, err := s.db.Reader().QueryContext(ctx, fmt.Sprintf(`
		SELECT id, user_id, organization_id, role
		FROM accounts WHERE %s
		ORDER BY id
	`, clause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var acct model.Account
		var role string
		if err := rows.Scan(&acct.ID, &acct.UserID, &acct.OrganizationID, &role); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		acct.Role = model.Role(role)
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

// Update rewrites an account's role within the scope. Moving an account
// between organizations is reserved for the unrestricted scope and goes
// through Attach.
func (s *AccountStore) Update(ctx context.Context, scope authz.Scope, acct *model.Account) error {
	if err := acct.Validate(); err != nil {
		return err
	}

	clause, scopeArgs := scopeClause(scope, "organization_id", "", 3)
	args := append([]interface{}{string(acct.Role), time.Now().UTC(), acct.ID}, scopeArgs...)

	res, err := s.db.Writer().ExecContext(ctx, fmt.Sprintf(`
		UPDATE accounts SET role = $1, updated_at = $2
		WHERE id = $3 AND %s
	`, clause), args...)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Attach assigns an account to an organization with a role. Unrestricted
// callers only; the service gates this behind the superuser check.
func (s *AccountStore) Attach(ctx context.Context, accountID, orgID int64, role model.Role) error {
	if !role.Valid() {
		return model.NewValidationError("role", "invalid role %q", role)
	}
	res, err := s.db.Writer().ExecContext(ctx, `
		UPDATE accounts SET organization_id = $1, role = $2, updated_at = $3
		WHERE id = $4
	`, orgID, string(role), time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("failed to attach account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Principal builds the authorization principal for an identity by joining
// its account. An identity with no account row yields a principal with no
// organization, which the rules resolve to match-none.
func (s *AccountStore) Principal(ctx context.Context, userID int64) (authz.Principal, error) {
	var p authz.Principal
	var orgID sql.NullInt64
	var role sql.NullString

	err := s.db.Reader().QueryRowContext(ctx, `
		SELECT u.id, u.is_superuser, a.organization_id, a.role
		FROM users u
		LEFT JOIN accounts a ON a.user_id = u.id
		WHERE u.id = $1 AND u.is_active
	`, userID).Scan(&p.UserID, &p.IsSuperuser, &orgID, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.Principal{}, ErrNotFound
	}
	if err != nil {
		return authz.Principal{}, fmt.Errorf("failed to build principal: %w", err)
	}

	if orgID.Valid {
		p.OrganizationID = &orgID.Int64
	}
	if role.Valid {
		r := model.Role(role.String)
		p.Role = &r
	}
	return p, nil
}

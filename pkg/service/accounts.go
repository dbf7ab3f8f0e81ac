package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vigia-iot/vigia/pkg/auth"
	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/model"
	"github.com/vigia-iot/vigia/pkg/store"
)

// RegisterInput carries the self-service signup form.
type RegisterInput struct {
	Email            string `json:"email"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	OrganizationName string `json:"organization_name"`
}

// Register signs up a new identity, finding or creating the named
// organization and linking the two atomically. The account starts as a
// member regardless of whether the organization already existed; joining an
// existing organization grants no extra standing.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Identity, *model.Account, error) {
	if in.Email == "" {
		return nil, nil, model.NewValidationError("email", "email is required")
	}
	if in.Username == "" {
		return nil, nil, model.NewValidationError("username", "username is required")
	}
	orgName := strings.TrimSpace(in.OrganizationName)
	if orgName == "" {
		return nil, nil, model.NewValidationError("organization_name", "organization name is required")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, nil, model.NewValidationError("password", "%s", err)
	}

	ident, acct, err := s.stores.Register(ctx, store.Registration{
		Email:            in.Email,
		Username:         in.Username,
		PasswordHash:     hash,
		OrganizationName: orgName,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, nil, ErrDuplicateIdentity
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register: %w", err)
	}
	return ident, acct, nil
}

// Login verifies credentials and issues a session token. The plaintext
// token appears only in the return value.
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.Identity, error) {
	ident, err := s.stores.Identities.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		// Burn a hash comparison anyway so response time does not reveal
		// whether the email exists.
		auth.CheckPassword("$2a$10$000000000000000000000u0000000000000000000000000000000", password)
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to look up identity: %w", err)
	}
	if !ident.IsActive || !auth.CheckPassword(ident.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, tokenHash, tokenPrefix, err := auth.GenerateToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	sess := &model.Session{
		UserID:      ident.ID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		ExpiresAt:   time.Now().UTC().Add(s.sessionTTL),
	}
	if err := s.stores.Sessions.Create(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.stores.Identities.UpdateLastLogin(ctx, ident.ID, time.Now().UTC()); err != nil {
		return "", nil, fmt.Errorf("failed to record login: %w", err)
	}
	return token, ident, nil
}

// Logout revokes the session behind the token. Idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := auth.ValidateTokenFormat(token); err != nil {
		return nil
	}
	return s.stores.Sessions.Revoke(ctx, auth.HashToken(token))
}

// ProvisionAccount ensures an account row exists for the identity. Called
// on first login of identities created outside registration. Idempotent:
// an existing account keeps its organization and role.
func (s *Service) ProvisionAccount(ctx context.Context, userID int64) (*model.Account, error) {
	acct, err := s.stores.Accounts.Provision(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to provision account: %w", err)
	}
	return acct, nil
}

// ListAccounts returns accounts visible to the principal.
func (s *Service) ListAccounts(ctx context.Context, p authz.Principal) ([]model.Account, error) {
	if !authz.CanView(p, authz.ResourceAccount, nil) {
		return nil, s.deny(authz.ResourceAccount, "list")
	}
	scope := authz.ScopeFilter(p, authz.ResourceAccount)
	accounts, err := s.stores.Accounts.List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// UpdateAccountRole changes an account's role within the principal's
// organization. Admin-only; the organization reference is untouchable here.
func (s *Service) UpdateAccountRole(ctx context.Context, p authz.Principal, accountID int64, role model.Role) error {
	scope := authz.ScopeFilter(p, authz.ResourceAccount)
	acct, err := s.stores.Accounts.Get(ctx, scope, accountID)
	if err != nil {
		return err
	}
	if !authz.CanModify(p, authz.ResourceAccount, acct) {
		return s.deny(authz.ResourceAccount, "update")
	}
	fields := authz.MutableFields(p, authz.ResourceAccount, acct)
	if !fields["role"] {
		return s.deny(authz.ResourceAccount, "update")
	}

	acct.Role = role
	return s.stores.Accounts.Update(ctx, scope, acct)
}

// AttachAccount assigns an account to an organization, superuser-only. This
// is the one path that writes the organization reference.
func (s *Service) AttachAccount(ctx context.Context, p authz.Principal, accountID, orgID int64, role model.Role) error {
	if !p.IsSuperuser {
		return s.deny(authz.ResourceAccount, "attach")
	}
	return s.stores.Accounts.Attach(ctx, accountID, orgID, role)
}

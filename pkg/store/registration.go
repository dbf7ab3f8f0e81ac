package store

import (
	"context"
	"fmt"
	"time"

	"github.com/vigia-iot/vigia/pkg/model"
)

// Registration carries the inputs of a self-service signup. PasswordHash is
// already hashed; plaintext never reaches the store.
type Registration struct {
	Email            string
	Username         string
	PasswordHash     string
	OrganizationName string
}

// Register creates the identity, finds or creates the named organization,
// and links the two with a member-role account, all in one transaction.
// Partial registrations cannot survive a failure: either all three rows
// exist afterwards or none do. The new account always starts as a member;
// promotion is a separate admin act.
func (s *Stores) Register(ctx context.Context, reg Registration) (*model.Identity, *model.Account, error) {
	tx, err := s.db.Writer().BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	orgID, err := findOrCreateOrganization(ctx, tx, reg.OrganizationName)
	if err != nil {
		return nil, nil, err
	}

	ident := &model.Identity{
		Email:        reg.Email,
		Username:     reg.Username,
		PasswordHash: reg.PasswordHash,
		IsActive:     true,
	}
	if err := insertIdentity(ctx, tx, ident); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	acct := &model.Account{
		UserID:         ident.ID,
		OrganizationID: &orgID,
		Role:           model.RoleMember,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO accounts (user_id, organization_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, ident.ID, orgID, string(acct.Role), now, now).Scan(&acct.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit registration: %w", err)
	}
	return ident, acct, nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zapdesk/zapmetrics/internal/scope"
)

// Role is a row in the roles table.
type Role struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
}

// Profile is an organization user. RoleName is joined from roles.
type Profile struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Department     string     `json:"department"`
	IsOnline       bool       `json:"is_online"`
	RoleID         string     `json:"role_id,omitempty"`
	RoleName       string     `json:"role_name,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

func scanProfile(rows *sql.Rows) (Profile, error) {
	var p Profile
	var roleID, roleName sql.NullString
	if err := rows.Scan(
		&p.ID, &p.OrganizationID, &p.Name, &p.Email,
		&p.Department, &p.IsOnline, &roleID, &roleName,
	); err != nil {
		return Profile{}, fmt.Errorf("scanning profile: %w", err)
	}
	p.RoleID = roleID.String
	p.RoleName = roleName.String
	return p, nil
}

// ListAgents returns the organization's live (not soft-deleted)
// profiles with their role names. As in RoleName, the profile's
// role wins over the membership role.
func (db *DB) ListAgents(
	ctx context.Context, orgID string,
) ([]Profile, error) {
	return pageAll(ctx, db, "profiles",
		`SELECT p.id, p.organization_id, p.name, p.email,
			p.department, p.is_online, p.role_id,
			COALESCE(NULLIF(TRIM(r.name), ''), NULLIF(TRIM(m.role), ''))
		FROM profiles p
		LEFT JOIN roles r ON r.id = p.role_id
		LEFT JOIN organization_members m
			ON m.organization_id = p.organization_id
			AND m.user_id = p.id
		WHERE p.organization_id = ? AND p.deleted_at IS NULL
		ORDER BY p.name, p.id`,
		[]any{orgID}, scanProfile)
}

// RoleName returns the raw role name of a user. The profile's
// role is tried first, then the organization membership table.
// Returns scope.ErrRoleNotFound when neither has one.
func (db *DB) RoleName(
	ctx context.Context, orgID, userID string,
) (string, error) {
	var name sql.NullString
	err := db.retry(ctx, func() error {
		return db.reader.QueryRowContext(ctx, `
			SELECT r.name FROM profiles p
			JOIN roles r ON r.id = p.role_id
			WHERE p.id = ? AND p.organization_id = ?
				AND p.deleted_at IS NULL`,
			userID, orgID,
		).Scan(&name)
	})
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("querying profile role: %w", err)
	}
	if n := strings.TrimSpace(name.String); n != "" {
		return n, nil
	}

	var member string
	err = db.retry(ctx, func() error {
		return db.reader.QueryRowContext(ctx, `
			SELECT role FROM organization_members
			WHERE organization_id = ? AND user_id = ?`,
			orgID, userID,
		).Scan(&member)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", scope.ErrRoleNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying member role: %w", err)
	}
	if strings.TrimSpace(member) == "" {
		return "", scope.ErrRoleNotFound
	}
	return member, nil
}

// UpsertRole inserts or replaces a role.
func (db *DB) UpsertRole(r Role) error {
	return db.Update(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO roles (id, organization_id, name)
			VALUES (?, ?, ?)`,
			r.ID, r.OrganizationID, r.Name,
		)
		if err != nil {
			return fmt.Errorf("upserting role %s: %w", r.ID, err)
		}
		return nil
	})
}

// UpsertProfile inserts or replaces a profile.
func (db *DB) UpsertProfile(p Profile) error {
	var deleted any
	if p.DeletedAt != nil {
		deleted = formatTS(*p.DeletedAt)
	}
	return db.Update(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO profiles
				(id, organization_id, name, email, department,
				 is_online, role_id, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.OrganizationID, p.Name, p.Email,
			p.Department, p.IsOnline,
			nilIfEmpty(p.RoleID), deleted,
		)
		if err != nil {
			return fmt.Errorf("upserting profile %s: %w", p.ID, err)
		}
		return nil
	})
}

// UpsertMember records a user's role in the membership table.
func (db *DB) UpsertMember(orgID, userID, role string) error {
	return db.Update(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO organization_members
				(organization_id, user_id, role)
			VALUES (?, ?, ?)`,
			orgID, userID, role,
		)
		if err != nil {
			return fmt.Errorf("upserting member %s: %w", userID, err)
		}
		return nil
	})
}

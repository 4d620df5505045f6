// Package access carries the caller identity into mutating operations and
// decides which roles may perform them.
package access

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when an actor's role lacks a permission.
var ErrUnauthorized = errors.New("access: unauthorized")

// Role is a user's permission tier.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleStaff      Role = "staff"
	RoleViewer     Role = "viewer"
)

// Permission names a guarded operation.
type Permission string

const (
	CreateJob     Permission = "create_job"
	EditJob       Permission = "edit_job"
	DeleteJob     Permission = "delete_job"
	UpdateStage   Permission = "update_stage"
	DeletePhoto   Permission = "delete_photo"
	ViewAudit     Permission = "view_audit"
	ManageUsers   Permission = "manage_users"
	ManageBackups Permission = "manage_backups"
)

var grants = map[Permission][]Role{
	CreateJob:     {RoleSuperAdmin, RoleAdmin, RoleStaff},
	UpdateStage:   {RoleSuperAdmin, RoleAdmin, RoleStaff},
	ManageBackups: {RoleSuperAdmin, RoleAdmin, RoleStaff},
	EditJob:       {RoleSuperAdmin, RoleAdmin},
	DeleteJob:     {RoleSuperAdmin, RoleAdmin},
	DeletePhoto:   {RoleSuperAdmin, RoleAdmin},
	ViewAudit:     {RoleSuperAdmin, RoleAdmin},
	ManageUsers:   {RoleSuperAdmin},
}

// Actor is the user performing an operation.
type Actor struct {
	ID   uint
	Name string
	Role Role
}

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleStaff, RoleViewer:
		return true
	}
	return false
}

// Can reports whether the actor's role holds perm.
func (a Actor) Can(perm Permission) bool {
	for _, r := range grants[perm] {
		if r == a.Role {
			return true
		}
	}
	return false
}

// Authorize returns ErrUnauthorized unless the actor holds perm.
func Authorize(a Actor, perm Permission) error {
	if a.ID == 0 {
		return fmt.Errorf("%w: no actor", ErrUnauthorized)
	}
	if !a.Can(perm) {
		return fmt.Errorf("%w: role %q cannot %s", ErrUnauthorized, a.Role, perm)
	}
	return nil
}

// Package user manages the directory of actors that jobs, history and audit
// entries are attributed to.
package user

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/audit"
	"github.com/sysfr3ak/archive-sys/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("user: not found")
	ErrDuplicate  = errors.New("user: username already exists")
	ErrInvalid    = errors.New("user: invalid input")
	ErrDeleteSelf = errors.New("user: cannot delete yourself")
)

// CreateOpts holds parameters for creating a user.
type CreateOpts struct {
	FullName string
	Username string
	Role     access.Role // defaults to staff
	Actor    access.Actor
}

// Create adds a user and writes a CREATE_USER audit entry.
func Create(db *gorm.DB, opts CreateOpts) (*models.User, error) {
	username := strings.TrimSpace(opts.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalid)
	}
	role := opts.Role
	if role == "" {
		role = access.RoleStaff
	}
	if !access.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalid, role)
	}

	u := models.User{
		FullName: strings.TrimSpace(opts.FullName),
		Username: username,
		Role:     string(role),
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return fmt.Errorf("user: check username %s: %w", username, err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicate, username)
		}
		if err := tx.Create(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrDuplicate, username)
			}
			return fmt.Errorf("user: create %s: %w", username, err)
		}
		_, err := audit.Append(tx, audit.Entry{
			UserID:  opts.Actor.ID,
			Action:  audit.ActionCreateUser,
			Details: fmt.Sprintf("Created user %s (%s) with role %s", u.Username, u.FullName, u.Role),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Get retrieves a user by id.
func Get(db *gorm.DB, id uint) (*models.User, error) {
	var u models.User
	if err := db.Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("user: get %d: %w", id, err)
	}
	return &u, nil
}

// GetByUsername retrieves a user by username.
func GetByUsername(db *gorm.DB, username string) (*models.User, error) {
	var u models.User
	if err := db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, username)
		}
		return nil, fmt.Errorf("user: get %s: %w", username, err)
	}
	return &u, nil
}

// List returns all users ordered by full name.
func List(db *gorm.DB) ([]models.User, error) {
	var users []models.User
	if err := db.Order("full_name ASC, id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user: list: %w", err)
	}
	return users, nil
}

// Delete removes a user. Rows attributed to the user keep the id and show
// no name afterwards.
func Delete(db *gorm.DB, id uint, actor access.Actor) error {
	if id == actor.ID {
		return ErrDeleteSelf
	}
	return db.Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Where("id = ?", id).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrNotFound, id)
			}
			return fmt.Errorf("user: get %d: %w", id, err)
		}
		if err := tx.Delete(&u).Error; err != nil {
			return fmt.Errorf("user: delete %d: %w", id, err)
		}
		_, err := audit.Append(tx, audit.Entry{
			UserID:  actor.ID,
			Action:  audit.ActionDeleteUser,
			Details: fmt.Sprintf("Deleted user %s (%s)", u.Username, u.FullName),
		})
		return err
	})
}

// Names maps user ids to full names. Unknown ids are absent.
func Names(db *gorm.DB, ids []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var users []models.User
	if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user: names: %w", err)
	}
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names, nil
}

// Actor resolves a user id into the actor value the core expects.
func Actor(db *gorm.DB, id uint) (access.Actor, error) {
	u, err := Get(db, id)
	if err != nil {
		return access.Actor{}, err
	}
	return access.Actor{ID: u.ID, Name: u.FullName, Role: access.Role(u.Role)}, nil
}

package models

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/gemcertify/certify_backend/config"
	"github.com/gemcertify/certify_backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Admin is a console operator. Rows are created out-of-band by
// cmd/seed-admin; this API only reads them.
type Admin struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

var (
	ErrAdminNotFound   = errors.New("admin not found")
	ErrInvalidPassword = errors.New("invalid password")
)

// AdminLogin validates credentials and returns the admin on success.
// The two failure reasons stay distinct so the handler can answer 404 for an
// unknown admin and 401 for a wrong password.
func AdminLogin(ctx context.Context, username string, password string) (*Admin, error) {
	db := config.GetDB()

	var admin Admin
	err := db.WithContext(ctx).Model(&Admin{}).Where("username = ?", username).Take(&admin).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}

	err = utils.ComparePassword(admin.Password, password)
	if err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return nil, ErrInvalidPassword
		}
		return nil, err
	}

	return &admin, nil
}

// GetAdmin fetches an admin by surrogate id (used by the auth middleware to
// confirm the token subject still exists).
func GetAdmin(ctx context.Context, id int) (*Admin, error) {
	db := config.GetDB()

	var admin Admin
	err := db.WithContext(ctx).First(&admin, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return &admin, nil
}

// UpsertAdmin creates or rotates the password of an admin. Only cmd/seed-admin
// calls this; the HTTP surface has no admin-creation route.
func UpsertAdmin(ctx context.Context, username string, password string) (*Admin, error) {
	db := config.GetDB()

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	username = html.EscapeString(strings.TrimSpace(username))

	var existing Admin
	err = db.WithContext(ctx).Model(&Admin{}).Where("username = ?", username).Take(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		admin := Admin{
			Username: username,
			Password: string(hashed),
		}
		if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
			return nil, err
		}
		return &admin, nil
	}

	if err := db.WithContext(ctx).Model(&existing).Update("password", string(hashed)).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

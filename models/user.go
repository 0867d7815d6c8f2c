package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/boutique_backend/config"
	"github.com/mmdatafocus/boutique_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;not null;unique" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Phone     string    `gorm:"size:32" json:"phone"`
	Role      UserRole  `gorm:"size:32;not null;default:customer" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Name     string `json:"name" binding:"required" validate:"required"`
	Email    string `json:"email" binding:"required" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required,min=8"`
	Phone    string `json:"phone"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required"`
}

type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func createUser(ctx context.Context, input *NewUser, role UserRole) (*User, error) {
	if err := utils.ValidatePayload(input); err != nil {
		return nil, err
	}
	if !utils.IsValidEmail(input.Email) {
		return nil, fmt.Errorf("%w: invalid email", utils.ErrorValidation)
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Name:     input.Name,
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		Password: string(hashed),
		Phone:    input.Phone,
		Role:     role,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func Register(ctx context.Context, input *NewUser) (*User, error) {
	return createUser(ctx, input, UserRoleCustomer)
}

// RegisterAffiliate creates the account in the pending state. An admin
// approval promotes it to affiliater before links can be generated.
func RegisterAffiliate(ctx context.Context, input *NewUser) (*User, error) {
	return createUser(ctx, input, UserRolePendingAffiliater)
}

func Login(ctx context.Context, input *LoginInput) (*LoginResult, error) {
	if err := utils.ValidatePayload(input); err != nil {
		return nil, err
	}

	var user User
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	if err := utils.ComparePassword(user.Password, input.Password); err != nil {
		return nil, fmt.Errorf("%w: wrong credentials", utils.ErrorValidation)
	}

	token, err := utils.JwtGenerate(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}

	// Session copy in redis lets the gateway revoke tokens before expiry.
	if err := config.SetRedisValue("Token:"+token, fmt.Sprintf("%d", user.ID), 24*time.Hour); err != nil {
		config.LogError(config.GetLogger(), "models", "Login", "store session", user.Email, err)
	}

	return &LoginResult{Token: token, User: &user}, nil
}

// ApproveAffiliate promotes a pending-affiliater account.
func ApproveAffiliate(ctx context.Context, userId int) (*User, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", userId).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if user.Role != UserRolePendingAffiliater {
			return fmt.Errorf("%w: user %d is not awaiting affiliate approval", utils.ErrorValidation, userId)
		}
		user.Role = UserRoleAffiliater
		return tx.Model(&User{}).Where("id = ?", userId).Update("role", UserRoleAffiliater).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUser(ctx context.Context, userId int) (*User, error) {
	var user User
	db := config.GetDB()
	err := db.WithContext(ctx).Where("id = ?", userId).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func ListUsers(ctx context.Context, role UserRole) ([]*User, error) {
	var users []*User
	db := config.GetDB().WithContext(ctx)
	if role != "" {
		db = db.Where("role = ?", role)
	}
	if err := db.Order("id DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func DeleteUser(ctx context.Context, userId int) error {
	db := config.GetDB()
	result := db.WithContext(ctx).Where("id = ?", userId).Delete(&User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// DeleteAffiliate removes an affiliate account together with its referral
// links. Clicks, commissions and payments stay as audit history.
func DeleteAffiliate(ctx context.Context, userId int) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", userId).Delete(&User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return utils.ErrorRecordNotFound
		}
		return tx.Where("affiliate_id = ?", userId).Delete(&AffiliateLink{}).Error
	})
}

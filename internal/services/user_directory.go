package services

import (
	"context"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserDirectory is the billing view of the accounts table: it reads users and
// owns the denormalized is_premium/plan_type flags.
type UserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &user, nil
}

// SetEntitlementFlags must be called on the same transaction that changes the
// user's Entitlement row.
func (d *UserDirectory) SetEntitlementFlags(tx *gorm.DB, userID uuid.UUID, isPremium bool, planType string) error {
	res := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"is_premium": isPremium,
		"plan_type":  planType,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// lockUser takes the per-user row lock. Every billing write path locks the
// user first, then payment and entitlement rows, so writers for one user are
// serialized and different users never contend.
func (d *UserDirectory) lockUser(tx *gorm.DB, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := forUpdate(tx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &user, nil
}

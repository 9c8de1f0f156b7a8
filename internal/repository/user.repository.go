package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/credit-gateway/internal/model"
	"github.com/nimasrn/credit-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

type UserRepository struct {
	*pg.DB
}

func NewUserRepository(db *pg.DB) *UserRepository {
	return &UserRepository{
		db,
	}
}

// CreateIfNotExists inserts the user unless a row with the same id exists.
// The stored row is returned either way; created reports whether it was new.
func (r *UserRepository) CreateIfNotExists(ctx context.Context, user *model.User) (*model.User, bool, error) {
	entity := toUserEntity(user)

	result := r.Write(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(entity)
	if result.Error != nil {
		return nil, false, result.Error
	}

	if result.RowsAffected == 1 {
		return toUserModel(entity), true, nil
	}

	existing, err := r.findByID(r.Write(ctx), user.ID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findByID(r.Read(ctx), id)
}

// FindByIDForUpdate reads the user with a row lock (SELECT ... FOR UPDATE).
// It only serializes anything when called inside pg.DB.WithinTransaction.
func (r *UserRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.User, error) {
	return r.findByID(r.Write(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *UserRepository) findByID(db *gorm.DB, id string) (*model.User, error) {
	var entity UserEntity

	err := db.Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toUserModel(&entity), nil
}

// Update replaces the mutable columns of the row with the given value.
func (r *UserRepository) Update(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now().UTC()

	result := r.Write(ctx).
		Model(&UserEntity{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"email":          user.Email,
			"name":           user.Name,
			"credit_balance": user.CreditBalance,
			"updated_at":     now,
		})
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	updated := *user
	updated.UpdatedAt = now
	return &updated, nil
}

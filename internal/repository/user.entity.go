package repository

import (
	"github.com/nimasrn/credit-gateway/internal/model"
	"github.com/nimasrn/credit-gateway/pkg/pg"
)

type UserEntity struct {
	ID            string `db:"id"             gorm:"primaryKey;column:id;type:varchar(128)"`
	Email         string `db:"email"          gorm:"column:email;not null;default:''"`
	Name          string `db:"name"           gorm:"column:name;not null;default:''"`
	CreditBalance int64  `db:"credit_balance" gorm:"column:credit_balance;not null;default:0;check:chk_users_credit_balance,credit_balance >= 0"`
	pg.Timestamps
}

func (UserEntity) TableName() string {
	return "users"
}

func toUserEntity(m *model.User) *UserEntity {
	if m == nil {
		return nil
	}
	return &UserEntity{
		ID:            m.ID,
		Email:         m.Email,
		Name:          m.Name,
		CreditBalance: m.CreditBalance,
		Timestamps: pg.Timestamps{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
	}
}

func toUserModel(e *UserEntity) *model.User {
	if e == nil {
		return nil
	}
	return &model.User{
		ID:            e.ID,
		Email:         e.Email,
		Name:          e.Name,
		CreditBalance: e.CreditBalance,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

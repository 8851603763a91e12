package repository

import (
	"context"

	"github.com/shinyyama/retail-orders-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerRepository interface {
	FindByID(ctx context.Context, id string) (*model.Customer, error)
	Upsert(ctx context.Context, c *model.Customer) error
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var c model.Customer
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepository) Upsert(ctx context.Context, c *model.Customer) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "phone", "address", "updated_at"}),
	}).Create(c).Error
}

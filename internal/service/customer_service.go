package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/repository"
	"gorm.io/gorm"
)

type CustomerService interface {
	Get(ctx context.Context, id string) (*model.Customer, error)
	SaveProfile(ctx context.Context, id string, profile Billing) (*model.Customer, error)
}

type customerService struct {
	repo repository.CustomerRepository
}

func NewCustomerService(repo repository.CustomerRepository) CustomerService {
	return &customerService{repo: repo}
}

func (s *customerService) Get(ctx context.Context, id string) (*model.Customer, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *customerService) SaveProfile(ctx context.Context, id string, profile Billing) (*model.Customer, error) {
	if id == "" {
		return nil, ErrInvalidCustomer
	}
	c := &model.Customer{
		ID:      id,
		Name:    strings.TrimSpace(profile.Name),
		Email:   strings.TrimSpace(profile.Email),
		Phone:   strings.TrimSpace(profile.Phone),
		Address: strings.TrimSpace(profile.Address),
	}
	if len(c.Name) > 255 || len(c.Email) > 255 || len(c.Phone) > 32 {
		return nil, fmt.Errorf("%w: profile field too long", ErrInvalidCustomer)
	}
	if err := s.repo.Upsert(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

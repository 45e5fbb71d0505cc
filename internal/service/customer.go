package service

import (
	"context"

	"github.com/flexprice/rebill/internal/api/dto"
)

// CustomerService is the CRUD surface of customers
type CustomerService interface {
	Create(ctx context.Context, req *dto.CreateCustomerRequest) (*dto.CustomerResponse, error)
	Get(ctx context.Context, customerID string) (*dto.CustomerResponse, error)
	Update(ctx context.Context, customerID string, req *dto.UpdateCustomerRequest) (*dto.CustomerResponse, error)
}

type customerService struct {
	ServiceParams
}

// NewCustomerService creates a new customer service
func NewCustomerService(params ServiceParams) CustomerService {
	return &customerService{ServiceParams: params}
}

func (s *customerService) Create(ctx context.Context, req *dto.CreateCustomerRequest) (*dto.CustomerResponse, error) {
	cust := req.ToCustomer(ctx)
	if err := cust.Validate(); err != nil {
		return nil, err
	}
	if err := s.CustomerRepo.Create(ctx, cust); err != nil {
		return nil, err
	}

	s.Logger.Infow("created customer",
		"customer_id", cust.ID,
		"external_id", cust.ExternalID,
	)
	return &dto.CustomerResponse{Customer: cust}, nil
}

func (s *customerService) Get(ctx context.Context, customerID string) (*dto.CustomerResponse, error) {
	cust, err := s.CustomerRepo.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &dto.CustomerResponse{Customer: cust}, nil
}

func (s *customerService) Update(ctx context.Context, customerID string, req *dto.UpdateCustomerRequest) (*dto.CustomerResponse, error) {
	cust, err := s.CustomerRepo.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		cust.Name = *req.Name
	}
	if req.Email != nil {
		cust.Email = *req.Email
	}
	if req.GatewayCustomerID != nil {
		cust.GatewayCustomerID = req.GatewayCustomerID
	}
	if req.DefaultPaymentMethodID != nil {
		cust.DefaultPaymentMethodID = req.DefaultPaymentMethodID
	}

	if err := s.CustomerRepo.Update(ctx, cust); err != nil {
		return nil, err
	}
	return &dto.CustomerResponse{Customer: cust}, nil
}

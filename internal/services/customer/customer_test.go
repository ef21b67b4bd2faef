package customer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/models"
	"github.com/magabrotheeeer/payflow/internal/openpay"
	"github.com/magabrotheeeer/payflow/internal/storage"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) CreateUserWithAddress(ctx context.Context, user models.User, addr models.Address) (*models.User, error) {
	args := m.Called(ctx, user, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) DeleteUserByEmail(ctx context.Context, email, customerID string) (int64, error) {
	args := m.Called(ctx, email, customerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) GetAddress(ctx context.Context, id int64) (*models.Address, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Address), args.Error(1)
}

func (m *MockRepository) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Address), args.Error(1)
}

func (m *MockRepository) CreateCard(ctx context.Context, c models.Card) (*models.Card, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Card), args.Error(1)
}

func (m *MockRepository) ListCards(ctx context.Context, userID uuid.UUID) ([]*models.Card, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Card), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCustomer(ctx context.Context, req openpay.CustomerRequest) (*openpay.Customer, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openpay.Customer), args.Error(1)
}

func (m *MockGateway) CreateCard(ctx context.Context, customerID string, req openpay.CardRequest) (*openpay.Card, error) {
	args := m.Called(ctx, customerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openpay.Card), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishDrift(ctx context.Context, alert models.DriftAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) Compensation(saga string, ok bool) {
	m.Called(saga, ok)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

type fixture struct {
	repo    *MockRepository
	gateway *MockGateway
	alerts  *MockPublisher
	metrics *MockMetrics
	service *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:    &MockRepository{},
		gateway: &MockGateway{},
		alerts:  &MockPublisher{},
		metrics: &MockMetrics{},
	}
	f.service = New(f.repo, f.gateway, f.alerts, f.metrics, newNoopLogger(), "default-session")
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.repo.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.alerts.AssertExpectations(t)
	f.metrics.AssertExpectations(t)
}

func customerRequest() CustomerRequest {
	return CustomerRequest{
		Name:     "Ana",
		LastName: "Lopez",
		Email:    "a@x.com",
		Password: "secret123",
		Address: AddressRequest{
			Line1:       "Calle 1",
			City:        "CDMX",
			State:       "CDMX",
			PostalCode:  "01000",
			CountryCode: "MX",
		},
	}
}

func TestService_ProvisionCustomer(t *testing.T) {
	customerID := "cus_1"
	created := &models.User{ID: uuid.New(), Email: "a@x.com", GatewayCustomerID: &customerID}

	tests := []struct {
		name       string
		setupMocks func(f *fixture)
		wantKind   error
		wantUser   bool
	}{
		{
			name: "success",
			setupMocks: func(f *fixture) {
				f.repo.On("GetUserByEmail", mock.Anything, "a@x.com").Return(nil, storage.ErrNotFound)
				f.gateway.On("CreateCustomer", mock.Anything, mock.MatchedBy(func(r openpay.CustomerRequest) bool {
					return r.Email == "a@x.com" && !r.RequiresAccount && r.Address != nil && r.Address.CountryCode == "MX"
				})).Return(&openpay.Customer{ID: "cus_1"}, nil)
				f.repo.On("CreateUserWithAddress", mock.Anything, mock.MatchedBy(func(u models.User) bool {
					return u.CustomerID() == "cus_1" && u.PasswordHash != "" && u.PasswordHash != "secret123"
				}), mock.AnythingOfType("models.Address")).Return(created, nil)
			},
			wantUser: true,
		},
		{
			name: "duplicate email skips gateway",
			setupMocks: func(f *fixture) {
				f.repo.On("GetUserByEmail", mock.Anything, "a@x.com").Return(created, nil)
			},
			wantKind: apperr.ErrConflict,
		},
		{
			name: "email lookup fails",
			setupMocks: func(f *fixture) {
				f.repo.On("GetUserByEmail", mock.Anything, "a@x.com").Return(nil, errors.New("db down"))
			},
			wantKind: apperr.ErrPersistence,
		},
		{
			name: "gateway rejects customer",
			setupMocks: func(f *fixture) {
				f.repo.On("GetUserByEmail", mock.Anything, "a@x.com").Return(nil, storage.ErrNotFound)
				f.gateway.On("CreateCustomer", mock.Anything, mock.Anything).
					Return(nil, &openpay.Error{HTTPStatus: 400, ErrorCode: 1001, Description: "bad request"})
			},
			wantKind: apperr.ErrGateway,
		},
		{
			name: "local insert fails and is compensated",
			setupMocks: func(f *fixture) {
				f.repo.On("GetUserByEmail", mock.Anything, "a@x.com").Return(nil, storage.ErrNotFound)
				f.gateway.On("CreateCustomer", mock.Anything, mock.Anything).Return(&openpay.Customer{ID: "cus_1"}, nil)
				f.repo.On("CreateUserWithAddress", mock.Anything, mock.Anything, mock.Anything).
					Return(nil, errors.New("insert failed"))
				f.repo.On("DeleteUserByEmail", mock.Anything, "a@x.com", "cus_1").Return(int64(0), nil)
				f.metrics.On("Compensation", "customer", true).Return()
				f.alerts.On("PublishDrift", mock.Anything, mock.MatchedBy(func(a models.DriftAlert) bool {
					return a.Kind == models.DriftCustomerOrphaned && a.GatewayID == "cus_1" && a.Email == "a@x.com"
				})).Return(nil)
			},
			wantKind: apperr.ErrPersistence,
		},
		{
			name: "concurrent duplicate maps to conflict",
			setupMocks: func(f *fixture) {
				f.repo.On("GetUserByEmail", mock.Anything, "a@x.com").Return(nil, storage.ErrNotFound)
				f.gateway.On("CreateCustomer", mock.Anything, mock.Anything).Return(&openpay.Customer{ID: "cus_2"}, nil)
				f.repo.On("CreateUserWithAddress", mock.Anything, mock.Anything, mock.Anything).
					Return(nil, fmt.Errorf("storage.CreateUserWithAddress: %w", storage.ErrUniqueViolation))
				f.repo.On("DeleteUserByEmail", mock.Anything, "a@x.com", "cus_2").Return(int64(0), nil)
				f.metrics.On("Compensation", "customer", true).Return()
				f.alerts.On("PublishDrift", mock.Anything, mock.Anything).Return(nil)
			},
			wantKind: apperr.ErrConflict,
		},
		{
			name: "failed compensation keeps original error",
			setupMocks: func(f *fixture) {
				f.repo.On("GetUserByEmail", mock.Anything, "a@x.com").Return(nil, storage.ErrNotFound)
				f.gateway.On("CreateCustomer", mock.Anything, mock.Anything).Return(&openpay.Customer{ID: "cus_1"}, nil)
				f.repo.On("CreateUserWithAddress", mock.Anything, mock.Anything, mock.Anything).
					Return(nil, errors.New("insert failed"))
				f.repo.On("DeleteUserByEmail", mock.Anything, "a@x.com", "cus_1").Return(int64(0), errors.New("delete failed"))
				f.metrics.On("Compensation", "customer", false).Return()
				f.alerts.On("PublishDrift", mock.Anything, mock.MatchedBy(func(a models.DriftAlert) bool {
					return a.Kind == models.DriftCustomerOrphaned
				})).Return(nil)
				f.alerts.On("PublishDrift", mock.Anything, mock.MatchedBy(func(a models.DriftAlert) bool {
					return a.Kind == models.DriftCompensationFailed
				})).Return(errors.New("broker down"))
			},
			wantKind: apperr.ErrPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setupMocks(f)

			user, err := f.service.ProvisionCustomer(context.Background(), customerRequest())
			if tt.wantKind != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantKind)
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, created, user)
			}
			f.assertExpectations(t)
		})
	}
}

func TestService_ProvisionCustomer_PasswordTooLong(t *testing.T) {
	f := newFixture()
	f.repo.On("GetUserByEmail", mock.Anything, "a@x.com").Return(nil, storage.ErrNotFound)

	req := customerRequest()
	req.Password = strings.Repeat("p", 73)
	user, err := f.service.ProvisionCustomer(context.Background(), req)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Nil(t, user)
	f.gateway.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestService_ProvisionCustomer_DuplicateScenario(t *testing.T) {
	f := newFixture()
	customerID := "cus_1"
	created := &models.User{ID: uuid.New(), Email: "a@x.com", GatewayCustomerID: &customerID}

	f.repo.On("GetUserByEmail", mock.Anything, "a@x.com").Return(nil, storage.ErrNotFound).Once()
	f.gateway.On("CreateCustomer", mock.Anything, mock.Anything).Return(&openpay.Customer{ID: "cus_1"}, nil).Once()
	f.repo.On("CreateUserWithAddress", mock.Anything, mock.Anything, mock.Anything).Return(created, nil).Once()

	user, err := f.service.ProvisionCustomer(context.Background(), customerRequest())
	require.NoError(t, err)
	assert.Equal(t, "cus_1", user.CustomerID())

	f.repo.On("GetUserByEmail", mock.Anything, "a@x.com").Return(created, nil).Once()
	_, err = f.service.ProvisionCustomer(context.Background(), customerRequest())
	assert.ErrorIs(t, err, apperr.ErrConflict)

	f.gateway.AssertNumberOfCalls(t, "CreateCustomer", 1)
}

func TestService_ProvisionCustomer_Validation(t *testing.T) {
	f := newFixture()
	req := customerRequest()
	req.Email = "  "

	_, err := f.service.ProvisionCustomer(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	f.assertExpectations(t)
}

func TestService_ProvisionCard(t *testing.T) {
	userID := uuid.New()
	customerID := "cus_1"
	user := &models.User{ID: userID, GatewayCustomerID: &customerID}
	addr := &models.Address{ID: 5, UserID: userID, Line1: "Calle 1", City: "CDMX", State: "CDMX", PostalCode: "01000", CountryCode: "MX"}
	gwCard := &openpay.Card{ID: "card_1", Brand: "visa", CardNumber: "411111XXXXXX1111", HolderName: "Ana"}

	tests := []struct {
		name       string
		req        CardRequest
		setupMocks func(f *fixture)
		wantKind   error
	}{
		{
			name: "success with default device session",
			req:  CardRequest{AddressID: 5, CardNumber: "4111111111111111", CVV2: "123"},
			setupMocks: func(f *fixture) {
				f.repo.On("GetUserByID", mock.Anything, userID).Return(user, nil)
				f.repo.On("GetAddress", mock.Anything, int64(5)).Return(addr, nil)
				f.gateway.On("CreateCard", mock.Anything, "cus_1", mock.MatchedBy(func(r openpay.CardRequest) bool {
					return r.DeviceSessionID == "default-session" && r.Address.PostalCode == "01000"
				})).Return(gwCard, nil)
				f.repo.On("CreateCard", mock.Anything, mock.MatchedBy(func(c models.Card) bool {
					return c.ID == "card_1" && c.UserID == userID && c.AddressID == 5 && c.City == "CDMX" && !c.CreationDate.IsZero()
				})).Return(&models.Card{ID: "card_1"}, nil)
			},
		},
		{
			name: "user missing",
			req:  CardRequest{AddressID: 5},
			setupMocks: func(f *fixture) {
				f.repo.On("GetUserByID", mock.Anything, userID).Return(nil, storage.ErrNotFound)
			},
			wantKind: apperr.ErrNotFound,
		},
		{
			name: "user without gateway customer",
			req:  CardRequest{AddressID: 5},
			setupMocks: func(f *fixture) {
				f.repo.On("GetUserByID", mock.Anything, userID).Return(&models.User{ID: userID}, nil)
			},
			wantKind: apperr.ErrPreconditionFailed,
		},
		{
			name: "address missing",
			req:  CardRequest{AddressID: 9},
			setupMocks: func(f *fixture) {
				f.repo.On("GetUserByID", mock.Anything, userID).Return(user, nil)
				f.repo.On("GetAddress", mock.Anything, int64(9)).Return(nil, storage.ErrNotFound)
			},
			wantKind: apperr.ErrNotFound,
		},
		{
			name: "foreign address",
			req:  CardRequest{AddressID: 7},
			setupMocks: func(f *fixture) {
				f.repo.On("GetUserByID", mock.Anything, userID).Return(user, nil)
				f.repo.On("GetAddress", mock.Anything, int64(7)).Return(&models.Address{ID: 7, UserID: uuid.New()}, nil)
			},
			wantKind: apperr.ErrPreconditionFailed,
		},
		{
			name: "gateway declines card",
			req:  CardRequest{AddressID: 5, DeviceSessionID: "own"},
			setupMocks: func(f *fixture) {
				f.repo.On("GetUserByID", mock.Anything, userID).Return(user, nil)
				f.repo.On("GetAddress", mock.Anything, int64(5)).Return(addr, nil)
				f.gateway.On("CreateCard", mock.Anything, "cus_1", mock.MatchedBy(func(r openpay.CardRequest) bool {
					return r.DeviceSessionID == "own"
				})).Return(nil, &openpay.Error{HTTPStatus: 402, ErrorCode: 3001})
			},
			wantKind: apperr.ErrGateway,
		},
		{
			name: "local save fails raises drift alert",
			req:  CardRequest{AddressID: 5},
			setupMocks: func(f *fixture) {
				f.repo.On("GetUserByID", mock.Anything, userID).Return(user, nil)
				f.repo.On("GetAddress", mock.Anything, int64(5)).Return(addr, nil)
				f.gateway.On("CreateCard", mock.Anything, "cus_1", mock.Anything).Return(gwCard, nil)
				f.repo.On("CreateCard", mock.Anything, mock.Anything).Return(nil, errors.New("insert failed"))
				f.alerts.On("PublishDrift", mock.Anything, mock.MatchedBy(func(a models.DriftAlert) bool {
					return a.Kind == models.DriftCardOrphaned && a.GatewayID == "card_1" && a.CustomerID == "cus_1"
				})).Return(nil)
			},
			wantKind: apperr.ErrPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setupMocks(f)

			card, err := f.service.ProvisionCard(context.Background(), userID, tt.req)
			if tt.wantKind != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantKind)
				assert.Nil(t, card)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "card_1", card.ID)
			}
			f.assertExpectations(t)
		})
	}
}

func TestService_ListAddresses(t *testing.T) {
	userID := uuid.New()
	f := newFixture()
	f.repo.On("GetUserByID", mock.Anything, userID).Return(&models.User{ID: userID}, nil)
	f.repo.On("ListAddresses", mock.Anything, userID).Return([]models.Address{{ID: 1}, {ID: 2}}, nil)

	res, err := f.service.ListAddresses(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, res.Primary)
	assert.Equal(t, int64(1), res.Primary.ID)
	assert.Len(t, res.Addresses, 2)
}

func TestService_ListCards(t *testing.T) {
	userID := uuid.New()

	t.Run("missing user", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetUserByID", mock.Anything, userID).Return(nil, storage.ErrNotFound)
		_, err := f.service.ListCards(context.Background(), userID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("empty list", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetUserByID", mock.Anything, userID).Return(&models.User{ID: userID}, nil)
		f.repo.On("ListCards", mock.Anything, userID).Return(nil, nil)
		cards, err := f.service.ListCards(context.Background(), userID)
		require.NoError(t, err)
		assert.NotNil(t, cards)
		assert.Empty(t, cards)
	})
}

// Package customer создаёт клиентов и их карты одновременно в платёжном шлюзе
// и в локальном хранилище.
//
// Клиент создаётся сагой: сначала в шлюзе, затем локально. Если локальная
// запись не сохранилась, она удаляется компенсацией, а клиент в шлюзе остаётся
// и о нём публикуется сигнал customer.orphaned. Карты компенсаций не имеют.
package customer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/events"
	"github.com/magabrotheeeer/payflow/internal/lib/password"
	"github.com/magabrotheeeer/payflow/internal/lib/saga"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
	"github.com/magabrotheeeer/payflow/internal/openpay"
	"github.com/magabrotheeeer/payflow/internal/storage"
)

const (
	stepGatewayCustomer = "gateway.create_customer"
	stepStoreUser       = "store.create_user"
	stepGatewayCard     = "gateway.create_card"
	stepStoreCard       = "store.create_card"
)

// Repository описывает операции хранилища, нужные сервису.
type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUserWithAddress(ctx context.Context, user models.User, addr models.Address) (*models.User, error)
	DeleteUserByEmail(ctx context.Context, email, customerID string) (int64, error)
	GetAddress(ctx context.Context, id int64) (*models.Address, error)
	ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	CreateCard(ctx context.Context, c models.Card) (*models.Card, error)
	ListCards(ctx context.Context, userID uuid.UUID) ([]*models.Card, error)
}

// Gateway описывает операции платёжного шлюза, нужные сервису.
type Gateway interface {
	CreateCustomer(ctx context.Context, req openpay.CustomerRequest) (*openpay.Customer, error)
	CreateCard(ctx context.Context, customerID string, req openpay.CardRequest) (*openpay.Card, error)
}

// Metrics учитывает компенсации.
type Metrics interface {
	Compensation(saga string, ok bool)
}

// AddressRequest — адрес нового клиента.
type AddressRequest struct {
	Line1       string
	Line2       string
	City        string
	State       string
	PostalCode  string
	CountryCode string
}

// CustomerRequest — данные нового клиента.
type CustomerRequest struct {
	Name        string
	LastName    string
	Email       string
	PhoneNumber string
	Password    string
	BirthDate   *time.Time
	Address     AddressRequest
}

// CardRequest — данные карты. Номер и CVV уходят только в шлюз.
type CardRequest struct {
	AddressID       int64
	CardNumber      string
	HolderName      string
	ExpirationYear  string
	ExpirationMonth string
	CVV2            string
	DeviceSessionID string
}

// Addresses содержит адреса клиента в порядке создания. Первый считается основным.
type Addresses struct {
	Addresses []models.Address `json:"addresses"`
	Primary   *models.Address  `json:"primary"`
}

// Service создаёт клиентов и карты.
type Service struct {
	repo            Repository
	gateway         Gateway
	alerts          events.Publisher
	metrics         Metrics
	log             *slog.Logger
	deviceSessionID string
}

// New создаёт сервис. deviceSessionID подставляется в запросы карт без своего значения.
func New(repo Repository, gateway Gateway, alerts events.Publisher, metrics Metrics, log *slog.Logger, deviceSessionID string) *Service {
	return &Service{
		repo:            repo,
		gateway:         gateway,
		alerts:          alerts,
		metrics:         metrics,
		log:             log,
		deviceSessionID: deviceSessionID,
	}
}

// ProvisionCustomer создаёт клиента в шлюзе и локально вместе с первым адресом.
// Повторный email отклоняется как Conflict до обращения к шлюзу.
func (s *Service) ProvisionCustomer(ctx context.Context, req CustomerRequest) (*models.User, error) {
	const op = "services.customer.ProvisionCustomer"
	log := s.log.With(sl.Op(op), slog.String("email", req.Email))

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Name == "" || req.Password == "" {
		return nil, apperr.Validation("name, email and password are required")
	}

	_, err := s.repo.GetUserByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return nil, apperr.Conflict("customer with this email already exists", nil)
	case !errors.Is(err, storage.ErrNotFound):
		log.Error("failed to check email", sl.Err(err))
		return nil, apperr.Persistence("failed to check customer", err)
	}

	hash, err := password.Hash(req.Password)
	if errors.Is(err, password.ErrTooLong) {
		return nil, apperr.Validation("password must be at most 72 bytes")
	}
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return nil, apperr.Persistence("failed to hash password", err)
	}

	var (
		gwCustomer *openpay.Customer
		user       *models.User
	)
	address := openpay.Address{
		Line1:       req.Address.Line1,
		Line2:       req.Address.Line2,
		City:        req.Address.City,
		State:       req.Address.State,
		PostalCode:  req.Address.PostalCode,
		CountryCode: req.Address.CountryCode,
	}

	run := saga.New("customer", log,
		saga.Step{
			Name: stepGatewayCustomer,
			Do: func(ctx context.Context) error {
				var err error
				gwCustomer, err = s.gateway.CreateCustomer(ctx, openpay.CustomerRequest{
					Name:            req.Name,
					LastName:        req.LastName,
					Email:           req.Email,
					PhoneNumber:     req.PhoneNumber,
					RequiresAccount: false,
					Address:         &address,
				})
				return err
			},
		},
		saga.Step{
			Name: stepStoreUser,
			Do: func(ctx context.Context) error {
				customerID := gwCustomer.ID
				var err error
				user, err = s.repo.CreateUserWithAddress(ctx, models.User{
					Name:              req.Name,
					LastName:          req.LastName,
					Email:             req.Email,
					PhoneNumber:       req.PhoneNumber,
					BirthDate:         req.BirthDate,
					PasswordHash:      hash,
					Role:              models.RoleUser,
					GatewayCustomerID: &customerID,
				}, models.Address{
					Line1:       req.Address.Line1,
					Line2:       req.Address.Line2,
					City:        req.Address.City,
					State:       req.Address.State,
					PostalCode:  req.Address.PostalCode,
					CountryCode: req.Address.CountryCode,
				})
				return err
			},
			// удаляем только строку с нашим customer id: строку конкурента не трогаем
			Undo: func(ctx context.Context) error {
				_, err := s.repo.DeleteUserByEmail(ctx, req.Email, gwCustomer.ID)
				return err
			},
			UndoOnFailure: true,
		},
	)

	if err := run.Run(ctx); err != nil {
		var stepErr *saga.StepError
		if !errors.As(err, &stepErr) || stepErr.Step == stepGatewayCustomer {
			return nil, apperr.Gateway(openpay.Message(err), err)
		}

		s.metrics.Compensation("customer", stepErr.CompensationErr == nil)
		s.publish(ctx, models.DriftAlert{
			Kind:      models.DriftCustomerOrphaned,
			GatewayID: gwCustomer.ID,
			Email:     req.Email,
			Reason:    stepErr.Err.Error(),
		})
		if stepErr.CompensationErr != nil {
			s.publish(ctx, models.DriftAlert{
				Kind:       models.DriftCompensationFailed,
				GatewayID:  gwCustomer.ID,
				CustomerID: gwCustomer.ID,
				Email:      req.Email,
				Reason:     stepErr.CompensationErr.Error(),
			})
		}

		if errors.Is(err, storage.ErrUniqueViolation) {
			return nil, apperr.Conflict("customer with this email already exists", err)
		}
		return nil, apperr.Persistence("failed to save customer", err)
	}

	log.Info("customer provisioned",
		slog.String("user_id", user.ID.String()),
		slog.String("customer_id", gwCustomer.ID),
	)
	return user, nil
}

// ProvisionCard регистрирует карту клиента в шлюзе и сохраняет её дескриптор.
// Адрес карты копируется из адреса клиента.
func (s *Service) ProvisionCard(ctx context.Context, userID uuid.UUID, req CardRequest) (*models.Card, error) {
	const op = "services.customer.ProvisionCard"
	log := s.log.With(sl.Op(op), slog.String("user_id", userID.String()))

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	customerID := user.CustomerID()
	if customerID == "" {
		return nil, apperr.Precondition("user has no payment gateway customer")
	}

	addr, err := s.repo.GetAddress(ctx, req.AddressID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("address not found")
	}
	if err != nil {
		log.Error("failed to load address", sl.Err(err))
		return nil, apperr.Persistence("failed to load address", err)
	}
	if addr.UserID != user.ID {
		return nil, apperr.Precondition("address does not belong to user")
	}

	deviceSessionID := req.DeviceSessionID
	if deviceSessionID == "" {
		deviceSessionID = s.deviceSessionID
	}

	var (
		gwCard *openpay.Card
		card   *models.Card
	)
	run := saga.New("card", log,
		saga.Step{
			Name: stepGatewayCard,
			Do: func(ctx context.Context) error {
				var err error
				gwCard, err = s.gateway.CreateCard(ctx, customerID, openpay.CardRequest{
					CardNumber:      req.CardNumber,
					HolderName:      req.HolderName,
					ExpirationYear:  req.ExpirationYear,
					ExpirationMonth: req.ExpirationMonth,
					CVV2:            req.CVV2,
					DeviceSessionID: deviceSessionID,
					Address: &openpay.Address{
						Line1:       addr.Line1,
						Line2:       addr.Line2,
						City:        addr.City,
						State:       addr.State,
						PostalCode:  addr.PostalCode,
						CountryCode: addr.CountryCode,
					},
				})
				return err
			},
		},
		saga.Step{
			Name: stepStoreCard,
			Do: func(ctx context.Context) error {
				var err error
				card, err = s.repo.CreateCard(ctx, cardFromGateway(gwCard, user.ID, addr))
				return err
			},
		},
	)

	if err := run.Run(ctx); err != nil {
		var stepErr *saga.StepError
		if !errors.As(err, &stepErr) || stepErr.Step == stepGatewayCard {
			return nil, apperr.Gateway(openpay.Message(err), err)
		}
		s.publish(ctx, models.DriftAlert{
			Kind:       models.DriftCardOrphaned,
			GatewayID:  gwCard.ID,
			CustomerID: customerID,
			UserID:     user.ID.String(),
			Reason:     stepErr.Err.Error(),
		})
		return nil, apperr.Persistence("failed to save card", err)
	}

	log.Info("card provisioned", slog.String("card_id", card.ID))
	return card, nil
}

// ListCards возвращает карты пользователя, новые первыми.
func (s *Service) ListCards(ctx context.Context, userID uuid.UUID) ([]*models.Card, error) {
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	cards, err := s.repo.ListCards(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("failed to list cards", err)
	}
	if cards == nil {
		cards = []*models.Card{}
	}
	return cards, nil
}

// ListAddresses возвращает адреса пользователя и основной адрес.
func (s *Service) ListAddresses(ctx context.Context, userID uuid.UUID) (*Addresses, error) {
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	addrs, err := s.repo.ListAddresses(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("failed to list addresses", err)
	}
	res := &Addresses{Addresses: addrs}
	if res.Addresses == nil {
		res.Addresses = []models.Address{}
	}
	if len(addrs) > 0 {
		res.Primary = &addrs[0]
	}
	return res, nil
}

func (s *Service) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		s.log.Error("failed to load user", slog.String("user_id", userID.String()), sl.Err(err))
		return nil, apperr.Persistence("failed to load user", err)
	}
	return user, nil
}

func (s *Service) publish(ctx context.Context, alert models.DriftAlert) {
	if err := s.alerts.PublishDrift(context.WithoutCancel(ctx), alert); err != nil {
		s.log.Error("failed to publish drift alert",
			slog.String("kind", alert.Kind),
			slog.String("gateway_id", alert.GatewayID),
			sl.Err(err),
		)
	}
}

func cardFromGateway(c *openpay.Card, userID uuid.UUID, addr *models.Address) models.Card {
	created := c.CreationDate.Time
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return models.Card{
		ID:              c.ID,
		UserID:          userID,
		AddressID:       addr.ID,
		Type:            c.Type,
		Brand:           c.Brand,
		CardNumber:      c.CardNumber,
		HolderName:      c.HolderName,
		ExpirationYear:  c.ExpirationYear,
		ExpirationMonth: c.ExpirationMonth,
		AllowsCharges:   c.AllowsCharges,
		AllowsPayouts:   c.AllowsPayouts,
		BankName:        c.BankName,
		BankCode:        c.BankCode,
		PointsCard:      c.PointsCard,
		Line1:           addr.Line1,
		Line2:           addr.Line2,
		City:            addr.City,
		State:           addr.State,
		PostalCode:      addr.PostalCode,
		CountryCode:     addr.CountryCode,
		CreationDate:    created,
	}
}

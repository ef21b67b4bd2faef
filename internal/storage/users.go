package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/payflow/internal/models"
)

const userColumns = `id, name, last_name, email, phone_number, birth_date, password_hash,
	role, openpay_customer_id, has_active_subscription, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u          models.User
		birthDate  sql.NullTime
		customerID sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Name, &u.LastName, &u.Email, &u.PhoneNumber, &birthDate,
		&u.PasswordHash, &u.Role, &customerID, &u.HasActiveSubscription, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.BirthDate = timePtr(birthDate)
	u.GatewayCustomerID = stringPtr(customerID)
	return &u, nil
}

// CreateUserWithAddress сохраняет пользователя и его первый адрес в одной транзакции.
func (s *Storage) CreateUserWithAddress(ctx context.Context, user models.User, addr models.Address) (*models.User, error) {
	const op = "storage.CreateUserWithAddress"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO users (id, name, last_name, email, phone_number, birth_date,
			      password_hash, role, openpay_customer_id, has_active_subscription)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false)
			  RETURNING ` + userColumns
	created, err := scanUser(tx.QueryRowContext(ctx, query,
		user.ID, user.Name, user.LastName, user.Email, user.PhoneNumber, nullTime(user.BirthDate),
		user.PasswordHash, user.Role, nullString(user.GatewayCustomerID)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	addrQuery := `INSERT INTO addresses (user_id, line1, line2, city, state, postal_code, country_code)
				  VALUES ($1, $2, $3, $4, $5, $6, $7)
				  RETURNING id, created_at`
	addr.UserID = created.ID
	if err := tx.QueryRowContext(ctx, addrQuery,
		addr.UserID, addr.Line1, addr.Line2, addr.City, addr.State, addr.PostalCode, addr.CountryCode,
	).Scan(&addr.ID, &addr.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	created.Addresses = []models.Address{addr}
	return created, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, err := scanUser(s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (s *Storage) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.GetUserByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, err := scanUser(s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return u, nil
}

// DeleteUserByEmail удаляет пользователя с данным email, созданного для
// конкретного клиента шлюза. Условие на customerID не даёт удалить строку,
// записанную параллельным запросом. Возвращает число удалённых строк.
func (s *Storage) DeleteUserByEmail(ctx context.Context, email, customerID string) (int64, error) {
	const op = "storage.DeleteUserByEmail"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM users WHERE email = $1 AND openpay_customer_id = $2`, email, customerID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// SetActiveSubscription обновляет денормализованный флаг подписки пользователя.
func (s *Storage) SetActiveSubscription(ctx context.Context, userID uuid.UUID, active bool) error {
	const op = "storage.SetActiveSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET has_active_subscription = $2, updated_at = NOW() WHERE id = $1`, userID, active)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// GetAddress возвращает адрес по идентификатору.
func (s *Storage) GetAddress(ctx context.Context, id int64) (*models.Address, error) {
	const op = "storage.GetAddress"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var a models.Address
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, line1, line2, city, state, postal_code, country_code, created_at
		 FROM addresses WHERE id = $1`, id,
	).Scan(&a.ID, &a.UserID, &a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.CountryCode, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return &a, nil
}

// ListAddresses возвращает адреса пользователя в порядке создания. Первый адрес основной.
func (s *Storage) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	const op = "storage.ListAddresses"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, line1, line2, city, state, postal_code, country_code, created_at
		 FROM addresses WHERE user_id = $1 ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Address
	for rows.Next() {
		var a models.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Line1, &a.Line2, &a.City, &a.State,
			&a.PostalCode, &a.CountryCode, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

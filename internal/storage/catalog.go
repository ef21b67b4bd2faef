package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/payflow/internal/models"
)

const productColumns = `id, name, description, price, currency, quantity, category, image_url,
	is_active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Currency, &p.Quantity,
		&p.Category, &p.ImageURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct сохраняет товар.
func (s *Storage) CreateProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	const op = "storage.CreateProduct"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO products (name, description, price, currency, quantity, category, image_url, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING ` + productColumns
	created, err := scanProduct(s.DB.QueryRowContext(ctx, query,
		p.Name, p.Description, p.Price, p.Currency, p.Quantity, p.Category, p.ImageURL, p.IsActive))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return created, nil
}

// GetProduct возвращает товар по идентификатору, в том числе неактивный.
func (s *Storage) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	const op = "storage.GetProduct"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := scanProduct(s.DB.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return p, nil
}

// ListProducts возвращает товары. С activeOnly только активные.
func (s *Storage) ListProducts(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.Product, error) {
	const op = "storage.ListProducts"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE ($1 = false OR is_active)
		 ORDER BY id LIMIT $2 OFFSET $3`, activeOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

const planColumns = `id, openpay_id, name, amount, currency, repeat_every, repeat_unit,
	retry_times, status_after_retry, trial_days, created_at`

func scanPlan(row interface{ Scan(...any) error }) (*models.Plan, error) {
	var p models.Plan
	if err := row.Scan(&p.ID, &p.GatewayPlanID, &p.Name, &p.Amount, &p.Currency, &p.RepeatEvery,
		&p.RepeatUnit, &p.RetryTimes, &p.StatusAfterRetry, &p.TrialDays, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePlan сохраняет локальное зеркало плана.
func (s *Storage) CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error) {
	const op = "storage.CreatePlan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO plans (openpay_id, name, amount, currency, repeat_every, repeat_unit,
			      retry_times, status_after_retry, trial_days)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING ` + planColumns
	created, err := scanPlan(s.DB.QueryRowContext(ctx, query,
		p.GatewayPlanID, p.Name, p.Amount, p.Currency, p.RepeatEvery, p.RepeatUnit,
		p.RetryTimes, p.StatusAfterRetry, p.TrialDays))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return created, nil
}

// GetPlanByGatewayID ищет план по идентификатору шлюза.
func (s *Storage) GetPlanByGatewayID(ctx context.Context, gatewayID string) (*models.Plan, error) {
	const op = "storage.GetPlanByGatewayID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := scanPlan(s.DB.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM plans WHERE openpay_id = $1`, gatewayID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return p, nil
}

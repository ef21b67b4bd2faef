package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/payflow/internal/models"
)

const chargeColumns = `id, openpay_id, order_id, product_id, source_id, amount, currency, status,
	error_code, error_message, customer_id, customer_name, customer_email, description,
	authorization_code, metadata, creation_date, operation_date, created_at, updated_at`

func scanCharge(row interface{ Scan(...any) error }) (*models.Charge, error) {
	var (
		c             models.Charge
		productID     sql.NullInt64
		errCode       sql.NullString
		errMessage    sql.NullString
		metadata      []byte
		operationDate sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.GatewayChargeID, &c.OrderID, &productID, &c.SourceID, &c.Amount,
		&c.Currency, &c.Status, &errCode, &errMessage, &c.CustomerID, &c.CustomerName, &c.CustomerEmail,
		&c.Description, &c.AuthorizationCode, &metadata, &c.CreationDate, &operationDate,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if productID.Valid {
		id := productID.Int64
		c.ProductID = &id
	}
	c.ErrorCode = stringPtr(errCode)
	c.ErrorMessage = stringPtr(errMessage)
	if len(metadata) > 0 {
		c.Metadata = json.RawMessage(metadata)
	}
	c.OperationDate = timePtr(operationDate)
	return &c, nil
}

// CreateCharge сохраняет попытку платежа, успешную или нет.
func (s *Storage) CreateCharge(ctx context.Context, c models.Charge) (*models.Charge, error) {
	const op = "storage.CreateCharge"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var productID sql.NullInt64
	if c.ProductID != nil {
		productID = sql.NullInt64{Int64: *c.ProductID, Valid: true}
	}

	query := `INSERT INTO charges (openpay_id, order_id, product_id, source_id, amount, currency,
			      status, error_code, error_message, customer_id, customer_name, customer_email,
			      description, authorization_code, metadata, creation_date, operation_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			  RETURNING ` + chargeColumns
	created, err := scanCharge(s.DB.QueryRowContext(ctx, query,
		c.GatewayChargeID, c.OrderID, productID, c.SourceID, c.Amount, c.Currency,
		c.Status, nullString(c.ErrorCode), nullString(c.ErrorMessage), c.CustomerID, c.CustomerName,
		c.CustomerEmail, c.Description, c.AuthorizationCode, nullJSON(c.Metadata), c.CreationDate,
		nullTime(c.OperationDate)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return created, nil
}

// GetChargeByGatewayID возвращает платёж по идентификатору шлюза.
func (s *Storage) GetChargeByGatewayID(ctx context.Context, gatewayID string) (*models.Charge, error) {
	const op = "storage.GetChargeByGatewayID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := scanCharge(s.DB.QueryRowContext(ctx,
		`SELECT `+chargeColumns+` FROM charges WHERE openpay_id = $1`, gatewayID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return c, nil
}

// UpdateChargeStatus перезаписывает статус и метаданные платежа целиком.
func (s *Storage) UpdateChargeStatus(ctx context.Context, gatewayID, status string, metadata json.RawMessage) error {
	const op = "storage.UpdateChargeStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.DB.ExecContext(ctx,
		`UPDATE charges SET status = $2, metadata = $3, updated_at = NOW() WHERE openpay_id = $1`,
		gatewayID, status, nullJSON(metadata))
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

// ListCharges возвращает платежи по фильтру, новые первыми.
func (s *Storage) ListCharges(ctx context.Context, f models.ChargeFilter) ([]*models.Charge, error) {
	const op = "storage.ListCharges"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		conds []string
		args  []any
	)
	if f.ProductID != nil {
		args = append(args, *f.ProductID)
		conds = append(conds, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.CustomerEmail != "" {
		args = append(args, f.CustomerEmail)
		conds = append(conds, fmt.Sprintf("customer_email = $%d", len(args)))
	}
	if f.Owner != nil {
		args = append(args, f.Owner.Email)
		owner := fmt.Sprintf("lower(customer_email) = lower($%d)", len(args))
		if f.Owner.CustomerID != "" {
			args = append(args, f.Owner.CustomerID)
			owner = fmt.Sprintf("(%s OR customer_id = $%d)", owner, len(args))
		}
		conds = append(conds, owner)
	}

	query := `SELECT ` + chargeColumns + ` FROM charges`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Charge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

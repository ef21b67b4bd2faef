package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/payflow/internal/models"
)

const cardColumns = `id, user_id, address_id, type, brand, card_number, holder_name,
	expiration_year, expiration_month, allows_charges, allows_payouts, bank_name, bank_code,
	points_card, line1, line2, line3, city, state, postal_code, country_code, creation_date, created_at`

// CreateCard сохраняет дескриптор карты, полученный от шлюза.
func (s *Storage) CreateCard(ctx context.Context, c models.Card) (*models.Card, error) {
	const op = "storage.CreateCard"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO cards (` + cardColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			      $15, $16, $17, $18, $19, $20, $21, $22, NOW())
			  RETURNING created_at`
	err := s.DB.QueryRowContext(ctx, query,
		c.ID, c.UserID, c.AddressID, c.Type, c.Brand, c.CardNumber, c.HolderName,
		c.ExpirationYear, c.ExpirationMonth, c.AllowsCharges, c.AllowsPayouts, c.BankName, c.BankCode,
		c.PointsCard, c.Line1, c.Line2, c.Line3, c.City, c.State, c.PostalCode, c.CountryCode, c.CreationDate,
	).Scan(&c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return &c, nil
}

// ListCards возвращает карты пользователя, новые первыми.
func (s *Storage) ListCards(ctx context.Context, userID uuid.UUID) ([]*models.Card, error) {
	const op = "storage.ListCards"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Card
	for rows.Next() {
		var c models.Card
		if err := rows.Scan(&c.ID, &c.UserID, &c.AddressID, &c.Type, &c.Brand, &c.CardNumber, &c.HolderName,
			&c.ExpirationYear, &c.ExpirationMonth, &c.AllowsCharges, &c.AllowsPayouts, &c.BankName, &c.BankCode,
			&c.PointsCard, &c.Line1, &c.Line2, &c.Line3, &c.City, &c.State, &c.PostalCode, &c.CountryCode,
			&c.CreationDate, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/payflow/internal/lib/money"
	"github.com/magabrotheeeer/payflow/internal/migrations"
	"github.com/magabrotheeeer/payflow/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(dsn, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	root, err := filepath.Abs("../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(root, "migrations")))

	return storage
}

// testFactory создаёт связанные тестовые записи.
type testFactory struct {
	t *testing.T
	s *Storage
}

func (f testFactory) user(email string) *models.User {
	f.t.Helper()
	customerID := "cus_" + uuid.NewString()[:8]
	u, err := f.s.CreateUserWithAddress(context.Background(), models.User{
		Name:              "Ana",
		LastName:          "Lopez",
		Email:             email,
		PasswordHash:      "hash",
		GatewayCustomerID: &customerID,
	}, models.Address{
		Line1:       "Calle 1",
		City:        "CDMX",
		State:       "CDMX",
		PostalCode:  "01000",
		CountryCode: "MX",
	})
	require.NoError(f.t, err)
	return u
}

func (f testFactory) plan(gatewayID string) *models.Plan {
	f.t.Helper()
	p, err := f.s.CreatePlan(context.Background(), models.Plan{
		GatewayPlanID:    gatewayID,
		Name:             "Gold",
		Amount:           money.MustParse("150.00"),
		Currency:         money.DefaultCurrency,
		RepeatEvery:      1,
		RepeatUnit:       "month",
		RetryTimes:       3,
		StatusAfterRetry: "cancelled",
		TrialDays:        30,
	})
	require.NoError(f.t, err)
	return p
}

func (f testFactory) subscription(u *models.User, p *models.Plan, gatewayID, status string) (*models.Subscription, error) {
	f.t.Helper()
	return f.s.CreateSubscription(context.Background(), models.Subscription{
		UserID:                u.ID,
		PlanID:                p.ID,
		GatewaySubscriptionID: gatewayID,
		GatewayPlanID:         p.GatewayPlanID,
		GatewayCustomerID:     u.CustomerID(),
		Status:                status,
		Card:                  []byte(`{"id":"card_1"}`),
	})
}

package events

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/payflow/internal/models"
)

type countingCounter struct {
	kinds []string
}

func (c *countingCounter) DriftPublished(kind string) {
	c.kinds = append(c.kinds, kind)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	counter := &countingCounter{}

	p := NewLogPublisher(log, counter)
	err := p.PublishDrift(context.Background(), models.DriftAlert{
		Kind:      models.DriftCustomerOrphaned,
		GatewayID: "cus_1",
		Email:     "a@x.com",
		Reason:    "local insert failed",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{models.DriftCustomerOrphaned}, counter.kinds)
	assert.Contains(t, buf.String(), "kind=customer.orphaned")
	assert.Contains(t, buf.String(), "gateway_id=cus_1")
}

func TestLogPublisher_NilCounter(t *testing.T) {
	p := NewLogPublisher(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), nil)
	assert.NoError(t, p.PublishDrift(context.Background(), models.DriftAlert{Kind: models.DriftCardOrphaned}))
}

func TestAMQPPublisher_CancelledContext(t *testing.T) {
	p := NewAMQPPublisher(nil, "payflow.alerts", slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.PublishDrift(ctx, models.DriftAlert{Kind: models.DriftCardOrphaned})
	assert.ErrorIs(t, err, context.Canceled)
}

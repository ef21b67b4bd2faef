// Package openpay реализует клиент REST API платёжного шлюза Openpay.
//
// Клиент переводит доменные запросы в ресурсы шлюза (клиенты, карты, платежи,
// планы, подписки) и нормализует ошибки в *Error, ErrTimeout или ErrUnreachable.
// Конфигурация передаётся явно при создании и не читается из окружения.
package openpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/magabrotheeeer/payflow/internal/lib/sl"
)

const (
	sandboxURL    = "https://sandbox-api.openpay.mx/v1"
	productionURL = "https://api.openpay.mx/v1"

	defaultTimeout = 30 * time.Second
)

// Config — параметры подключения к шлюзу.
type Config struct {
	MerchantID string
	PrivateKey string
	// BaseURL переопределяет адрес API (например, для тестов).
	BaseURL string
	Sandbox bool
	Timeout time.Duration
}

// Recorder получает результат каждого запроса к шлюзу.
// outcome: ok, error, timeout или unreachable.
type Recorder interface {
	ObserveGatewayRequest(operation, outcome string, elapsed time.Duration)
}

// Client выполняет запросы к шлюзу. Безопасен для конкурентного использования.
type Client struct {
	baseURL    string
	privateKey string
	timeout    time.Duration
	httpClient *http.Client
	log        *slog.Logger
	recorder   Recorder
}

// New создаёт клиента. Timeout ограничивает каждый запрос целиком.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	const op = "openpay.New"
	if cfg.MerchantID == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("%s: merchant id and private key are required", op)
	}

	base := cfg.BaseURL
	if base == "" {
		base = productionURL
		if cfg.Sandbox {
			base = sandboxURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(base, "/") + "/" + url.PathEscape(cfg.MerchantID),
		privateKey: cfg.PrivateKey,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}, nil
}

// WithRecorder подключает учёт запросов (метрики).
func (c *Client) WithRecorder(r Recorder) *Client {
	c.recorder = r
	return c
}

// CreateCustomer создаёт клиента в шлюзе.
func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error) {
	const op = "openpay.CreateCustomer"
	var out Customer
	if _, err := c.do(ctx, op, http.MethodPost, "/customers", req, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// CreateCard регистрирует карту клиента.
func (c *Client) CreateCard(ctx context.Context, customerID string, req CardRequest) (*Card, error) {
	const op = "openpay.CreateCard"
	var out Card
	path := "/customers/" + url.PathEscape(customerID) + "/cards"
	if _, err := c.do(ctx, op, http.MethodPost, path, req, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// CreateCharge выполняет разовый платёж. В Raw возвращается тело ответа целиком.
func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	const op = "openpay.CreateCharge"
	var out Charge
	raw, err := c.do(ctx, op, http.MethodPost, "/charges", req, &out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out.Raw = raw
	return &out, nil
}

// GetCharge читает текущее состояние платежа. Raw содержит ответ целиком.
func (c *Client) GetCharge(ctx context.Context, chargeID string) (*Charge, error) {
	const op = "openpay.GetCharge"
	var out Charge
	raw, err := c.do(ctx, op, http.MethodGet, "/charges/"+url.PathEscape(chargeID), nil, &out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out.Raw = raw
	return &out, nil
}

// CreatePlan создаёт план подписки.
func (c *Client) CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error) {
	const op = "openpay.CreatePlan"
	var out Plan
	if _, err := c.do(ctx, op, http.MethodPost, "/plans", req, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// CreateSubscription подписывает клиента на план.
func (c *Client) CreateSubscription(ctx context.Context, customerID string, req SubscriptionRequest) (*Subscription, error) {
	const op = "openpay.CreateSubscription"
	var out Subscription
	path := "/customers/" + url.PathEscape(customerID) + "/subscriptions"
	if _, err := c.do(ctx, op, http.MethodPost, path, req, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// CancelSubscription отменяет подписку. Отсутствие подписки в шлюзе
// возвращается как *Error, проверяемая через IsNotFound.
func (c *Client) CancelSubscription(ctx context.Context, customerID, subscriptionID string) error {
	const op = "openpay.CancelSubscription"
	path := "/customers/" + url.PathEscape(customerID) + "/subscriptions/" + url.PathEscape(subscriptionID)
	if _, err := c.do(ctx, op, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (raw []byte, err error) {
	start := time.Now()
	defer func() {
		if c.recorder != nil {
			c.recorder.ObserveGatewayRequest(strings.TrimPrefix(op, "openpay."), outcome(err), time.Since(start))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.privateKey, "")
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("openpay request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Duration("elapsed", time.Since(start)),
			sl.Err(err),
		)
		return nil, transportError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	c.log.Debug("openpay request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &Error{}
		if len(raw) == 0 || json.Unmarshal(raw, apiErr) != nil {
			apiErr = &Error{Description: http.StatusText(resp.StatusCode)}
		}
		apiErr.HTTPStatus = resp.StatusCode
		apiErr.Raw = raw
		return nil, apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return raw, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	default:
		return "error"
	}
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

package money

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Amount
		wantErr bool
	}{
		{name: "integer", in: "100", want: 10000},
		{name: "two decimals", in: "100.00", want: 10000},
		{name: "one decimal", in: "99.5", want: 9950},
		{name: "leading dot", in: ".75", want: 75},
		{name: "trailing zeros", in: "10.500", want: 1050},
		{name: "negative", in: "-1.01", want: -101},
		{name: "spaces", in: " 12.34 ", want: 1234},
		{name: "three decimals", in: "1.001", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "letters", in: "12a.00", wantErr: true},
		{name: "dot only", in: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmount_String(t *testing.T) {
	assert.Equal(t, "100.00", Amount(10000).String())
	assert.Equal(t, "0.05", Amount(5).String())
	assert.Equal(t, "-3.10", Amount(-310).String())
	assert.Equal(t, "-92233720368547758.08", Amount(math.MinInt64).String())
	assert.Equal(t, "92233720368547758.07", Amount(math.MaxInt64).String())
}

func TestAmount_JSON(t *testing.T) {
	type payload struct {
		Amount Amount `json:"amount"`
	}

	b, err := json.Marshal(payload{Amount: MustParse("100")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":100.00}`, string(b))
	assert.Contains(t, string(b), "100.00")

	tests := []struct {
		name string
		body string
		want Amount
	}{
		{name: "number", body: `{"amount":250.5}`, want: 25050},
		{name: "string", body: `{"amount":"250.50"}`, want: 25050},
		{name: "exponent", body: `{"amount":1e2}`, want: 10000},
		{name: "exponent with fraction", body: `{"amount":1.25E1}`, want: 1250},
		{name: "negative exponent", body: `{"amount":125e-2}`, want: 125},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			require.NoError(t, json.Unmarshal([]byte(tt.body), &p))
			assert.Equal(t, tt.want, p.Amount)
		})
	}

	invalid := []struct {
		name string
		body string
	}{
		{name: "letters", body: `{"amount":"abc"}`},
		{name: "three decimals", body: `{"amount":100.005}`},
		{name: "three decimals rounding up", body: `{"amount":12.349}`},
		{name: "three decimals as string", body: `{"amount":"100.005"}`},
		{name: "exponent overflow", body: `{"amount":1e20}`},
		{name: "exponent below cents", body: `{"amount":1e-3}`},
		{name: "integer overflow", body: `{"amount":100000000000000000000}`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			err := json.Unmarshal([]byte(tt.body), &p)
			assert.ErrorIs(t, err, ErrInvalidAmount)
			assert.Equal(t, Amount(0), p.Amount)
		})
	}
}

func TestAmount_Scan(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan("100.00"))
	assert.Equal(t, Amount(10000), a)

	require.NoError(t, a.Scan([]byte("7.25")))
	assert.Equal(t, Amount(725), a)

	require.NoError(t, a.Scan(float64(19.99)))
	assert.Equal(t, Amount(1999), a)

	assert.Error(t, a.Scan(true))
	assert.ErrorIs(t, a.Scan(int64(math.MaxInt64)), ErrInvalidAmount)
	assert.ErrorIs(t, a.Scan(1e20), ErrInvalidAmount)

	v, err := Amount(10000).Value()
	require.NoError(t, err)
	assert.Equal(t, "100.00", v)
}

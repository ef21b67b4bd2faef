// Package money реализует денежную сумму с точностью до двух знаков после запятой.
//
// Сумма хранится в сотых долях (центаво), поэтому не теряет точность при
// прохождении через JSON, PostgreSQL NUMERIC(12,2) и API платёжного шлюза.
package money

import (
	"bytes"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// DefaultCurrency используется, когда валюта не указана.
const DefaultCurrency = "MXN"

// ErrInvalidAmount возвращается для строк, не являющихся суммой.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount — сумма в сотых долях валюты.
type Amount int64

// FromCents создаёт сумму из сотых долей.
func FromCents(c int64) Amount {
	return Amount(c)
}

// Parse разбирает десятичную строку вида "100", "100.5" или "100.00".
// Больше двух знаков после запятой не допускается.
func Parse(s string) (Amount, error) {
	const op = "money.Parse"
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}
	if len(frac) > 2 {
		// допускаем хвостовые нули: "10.500"
		if strings.Trim(frac[2:], "0") != "" {
			return 0, fmt.Errorf("%s: %w: more than two decimal places", op, ErrInvalidAmount)
		}
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}
	if !digits(whole) || !digits(frac) {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > math.MaxInt64/100-1 {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}
	f, _ := strconv.ParseInt(frac, 10, 64)

	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return Amount(cents), nil
}

// MustParse как Parse, но паникует на ошибке. Только для констант и тестов.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Cents возвращает сумму в сотых долях.
func (a Amount) Cents() int64 {
	return int64(a)
}

// IsPositive сообщает, что сумма больше нуля.
func (a Amount) IsPositive() bool {
	return a > 0
}

func (a Amount) String() string {
	c := int64(a)
	sign := ""
	u := uint64(c)
	if c < 0 {
		sign = "-"
		u = uint64(-c)
	}
	return fmt.Sprintf("%s%d.%02d", sign, u/100, u%100)
}

// MarshalJSON пишет сумму числом с двумя знаками: 100.00.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON принимает как число, так и строку. Экспоненциальная
// запись (1e2, 1.5E1) допускается, если значение точно выражается
// в сотых долях.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if strings.ContainsAny(s, "eE") {
		v, err := parseExp(s)
		if err != nil {
			return err
		}
		*a = v
		return nil
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func parseExp(s string) (Amount, error) {
	const op = "money.parseExp"
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}
	r.Mul(r, big.NewRat(100, 1))
	if !r.IsInt() {
		return 0, fmt.Errorf("%s: %w: more than two decimal places", op, ErrInvalidAmount)
	}
	n := r.Num()
	if !n.IsInt64() {
		return 0, fmt.Errorf("%s: %w: out of range", op, ErrInvalidAmount)
	}
	return Amount(n.Int64()), nil
}

// Value реализует driver.Valuer: в базу уходит десятичная строка для NUMERIC.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan реализует sql.Scanner для NUMERIC-колонок.
func (a *Amount) Scan(src any) error {
	const op = "money.Scan"
	switch v := src.(type) {
	case nil:
		*a = 0
		return nil
	case string:
		p, err := Parse(v)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		*a = p
		return nil
	case []byte:
		p, err := Parse(string(v))
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		*a = p
		return nil
	case int64:
		if v > math.MaxInt64/100 || v < math.MinInt64/100 {
			return fmt.Errorf("%s: %w: out of range", op, ErrInvalidAmount)
		}
		*a = Amount(v * 100)
		return nil
	case float64:
		c := math.Round(v * 100)
		if math.IsNaN(c) || c >= math.MaxInt64 || c <= math.MinInt64 {
			return fmt.Errorf("%s: %w: out of range", op, ErrInvalidAmount)
		}
		*a = Amount(c)
		return nil
	default:
		return fmt.Errorf("%s: unsupported type %T", op, src)
	}
}

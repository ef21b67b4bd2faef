// Package password хеширует и проверяет пароли клиентов через bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Cost задаёт стоимость bcrypt для паролей клиентов.
const Cost = 12

// ErrMismatch возвращается, когда пароль не совпадает с хешем.
var ErrMismatch = errors.New("password mismatch")

// ErrTooLong возвращается для паролей длиннее 72 байт.
var ErrTooLong = bcrypt.ErrPasswordTooLong

// Hash возвращает bcrypt-хеш пароля.
func Hash(password string) (string, error) {
	const op = "password.Hash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// Compare сверяет пароль с хешем. Несовпадение даёт ErrMismatch,
// повреждённый хеш даёт другую ошибку.
func Compare(hash, password string) error {
	const op = "password.Compare"
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

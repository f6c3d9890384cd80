package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// TokenBytes - размер случайных токенов в байтах (remember-me, reset, CSRF).
// 24 байта энтропии, hex-представление - 48 символов.
const TokenBytes = 24

// NewToken генерирует криптографически случайный токен длиной n байт
// и возвращает его в hex-представлении.
// Каждый вызов использует независимую энтропию.
func NewToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// HashToken возвращает hex-представление SHA256 хеша токена.
// В БД хранится только хеш: компрометация хранилища не дает рабочих токенов.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// TokensEqual сравнивает два токена за константное время,
// чтобы исключить timing side channel при проверке
func TokensEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

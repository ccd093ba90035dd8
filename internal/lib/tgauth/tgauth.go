// Package tgauth проверяет данные, которые Telegram Login Widget передает после входа.
//
// Алгоритм описан в https://core.telegram.org/widgets/login#checking-authorization:
// все поля, кроме hash, сортируются по ключу и склеиваются строками "key=value" через "\n",
// от результата берется HMAC-SHA256 с ключом SHA256(bot_token).
package tgauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	FieldHash     = "hash"
	FieldID       = "id"
	FieldAuthDate = "auth_date"
)

var (
	ErrNoBotToken     = errors.New("bot token is not configured")
	ErrMissingHash    = errors.New("hash is missing")
	ErrInvalidID      = errors.New("id is missing or not a positive integer")
	ErrInvalidDate    = errors.New("auth_date is missing or malformed")
	ErrHashMismatch   = errors.New("hash mismatch")
	ErrAuthDateTooOld = errors.New("auth_date is too old")
)

// DataCheckString собирает строку для подписи. Исходная карта не меняется.
func DataCheckString(data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		if k == FieldHash {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+data[k])
	}
	return strings.Join(lines, "\n")
}

// Sign возвращает hex подписи для набора полей
func Sign(data map[string]string, botToken string) string {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(DataCheckString(data)))
	return hex.EncodeToString(mac.Sum(nil))
}

// CheckHash сравнивает подпись за постоянное время
func CheckHash(data map[string]string, botToken string) error {
	if botToken == "" {
		return ErrNoBotToken
	}
	got, ok := data[FieldHash]
	if !ok || got == "" {
		return ErrMissingHash
	}
	want := Sign(data, botToken)
	if !hmac.Equal([]byte(strings.ToLower(got)), []byte(want)) {
		return ErrHashMismatch
	}
	return nil
}

// TelegramID разбирает поле id
func TelegramID(data map[string]string) (int64, error) {
	id, err := strconv.ParseInt(data[FieldID], 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// AuthDate разбирает поле auth_date (unix seconds)
func AuthDate(data map[string]string) (time.Time, error) {
	raw, ok := data[FieldAuthDate]
	if !ok {
		return time.Time{}, ErrInvalidDate
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}, ErrInvalidDate
	}
	return time.Unix(sec, 0), nil
}

// CheckFresh проверяет, что подпись выдана не раньше maxAge назад
func CheckFresh(authDate, now time.Time, maxAge time.Duration) error {
	if now.Sub(authDate) > maxAge {
		return ErrAuthDateTooOld
	}
	return nil
}

package repository

import (
	"time"
)

// CacheRepository определяет методы для работы с кешем.
// Кеш является советующим: промах или ошибка кеша не считаются фатальными,
// данные всегда могут быть перечитаны из базы.
type CacheRepository interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string) (string, error)
	Delete(key string) error
	SetJSON(key string, value interface{}, expiration time.Duration) error
	GetJSON(key string, dest interface{}) error
	Exists(key string) (bool, error)
}

package repository

import "github.com/yourusername/terms-api/internal/domain/entity"

// UserTermsRepository интерфейс для работы с записями о принятии условий
type UserTermsRepository interface {
	// Create сохраняет запись о принятии. При нарушении уникальности
	// (user_id, terms_id) возвращает apperrors.ErrConflict.
	Create(acceptance *entity.UserTermsAndConditions) error

	// Exists проверяет наличие записи о принятии для пары (user, terms)
	Exists(userID, termsID uint) (bool, error)

	// GetByUserAndTerms возвращает запись о принятии для пары (user, terms)
	GetByUserAndTerms(userID, termsID uint) (*entity.UserTermsAndConditions, error)

	// GetAllByUserID возвращает все принятия пользователя (история), новые первыми
	GetAllByUserID(userID uint) ([]*entity.UserTermsAndConditions, error)

	// FindAllWithTerms возвращает все записи о принятии вместе с версиями условий
	// для выгрузки аудиторского следа
	FindAllWithTerms() ([]entity.UserTermsAndConditions, error)
}

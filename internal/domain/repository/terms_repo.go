package repository

import (
	"time"

	"github.com/yourusername/terms-api/internal/domain/entity"
)

// TermsRepository интерфейс для работы с версиями условий использования
type TermsRepository interface {
	// Create сохраняет новую версию условий (обычно черновик, date_active = NULL)
	Create(terms *entity.TermsAndConditions) error

	// GetByID возвращает версию условий по ID
	GetByID(id uint) (*entity.TermsAndConditions, error)

	// GetBySlugAndVersion возвращает конкретную версию документа
	GetBySlugAndVersion(slug string, version float64) (*entity.TermsAndConditions, error)

	// FindActive возвращает активную версию для slug: date_active не NULL,
	// не позже now и максимальна среди таких строк
	FindActive(slug string, now time.Time) (*entity.TermsAndConditions, error)

	// FindActiveIDs возвращает ID активных версий по всем slug —
	// по одному победителю на slug, отсортированные по slug.
	// Если таблица еще не создана (миграции не применены), возвращает пустой список.
	FindActiveIDs(now time.Time) ([]uint, error)

	// FindByIDs возвращает версии по списку ID, отсортированные по slug
	FindByIDs(ids []uint) ([]entity.TermsAndConditions, error)

	// FindNotAgreedTo возвращает подмножество activeIDs, для которых у пользователя
	// нет записи о принятии, отсортированное по slug
	FindNotAgreedTo(userID uint, activeIDs []uint) ([]entity.TermsAndConditions, error)

	// ListVersions возвращает все версии документа (включая черновики),
	// новые активации первыми
	ListVersions(slug string) ([]entity.TermsAndConditions, error)

	// SetDateActive выставляет дату активации версии
	SetDateActive(id uint, at time.Time) error
}

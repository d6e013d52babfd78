package postgres

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yourusername/terms-api/internal/domain/entity"
	apperrors "github.com/yourusername/terms-api/internal/pkg/errors"
)

// TermsRepo реализует repository.TermsRepository
type TermsRepo struct {
	db *gorm.DB
}

// NewTermsRepo создает новый репозиторий версий условий
func NewTermsRepo(db *gorm.DB) *TermsRepo {
	return &TermsRepo{db: db}
}

// isUndefinedTable распознает ошибку "таблица не существует" (SQLSTATE 42P01).
// Возникает при запросах до применения миграций на старте.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

// Create сохраняет новую версию условий
func (r *TermsRepo) Create(terms *entity.TermsAndConditions) error {
	if err := r.db.Create(terms).Error; err != nil {
		return fmt.Errorf("failed to create terms version: %w", err)
	}
	return nil
}

// GetByID возвращает версию условий по ID
func (r *TermsRepo) GetByID(id uint) (*entity.TermsAndConditions, error) {
	var terms entity.TermsAndConditions
	err := r.db.First(&terms, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get terms by id: %w", err)
	}
	return &terms, nil
}

// GetBySlugAndVersion возвращает конкретную версию документа
func (r *TermsRepo) GetBySlugAndVersion(slug string, version float64) (*entity.TermsAndConditions, error) {
	var terms entity.TermsAndConditions
	err := r.db.Where("slug = ? AND version_number = ?", slug, version).First(&terms).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get terms by slug and version: %w", err)
	}
	return &terms, nil
}

// FindActive возвращает активную версию для slug — строку с непустой date_active,
// не позже now и максимальной среди таких
func (r *TermsRepo) FindActive(slug string, now time.Time) (*entity.TermsAndConditions, error) {
	var terms entity.TermsAndConditions
	err := r.db.
		Where("slug = ? AND date_active IS NOT NULL AND date_active <= ?", slug, now).
		Order("date_active DESC").
		First(&terms).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		if isUndefinedTable(err) {
			log.Printf("[TermsRepo] Таблица terms_and_conditions еще не создана, активная версия для slug=%s недоступна", slug)
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find active terms: %w", err)
	}
	return &terms, nil
}

// FindActiveIDs возвращает ID активных версий по всем slug.
// Победитель на slug выбирается явным GROUP BY slug / MAX(date_active),
// потому что для каждого slug существует несколько исторических версий.
func (r *TermsRepo) FindActiveIDs(now time.Time) ([]uint, error) {
	ids := []uint{}
	err := r.db.Raw(`
		SELECT t.id
		FROM terms_and_conditions t
		JOIN (
			SELECT slug, MAX(date_active) AS max_date_active
			FROM terms_and_conditions
			WHERE date_active IS NOT NULL AND date_active <= ?
			GROUP BY slug
		) latest ON latest.slug = t.slug AND latest.max_date_active = t.date_active
		ORDER BY t.slug`, now).Scan(&ids).Error
	if err != nil {
		if isUndefinedTable(err) {
			log.Printf("[TermsRepo] Таблица terms_and_conditions еще не создана, список активных версий пуст")
			return []uint{}, nil
		}
		return nil, fmt.Errorf("failed to find active terms ids: %w", err)
	}
	return ids, nil
}

// FindByIDs возвращает версии по списку ID, отсортированные по slug
func (r *TermsRepo) FindByIDs(ids []uint) ([]entity.TermsAndConditions, error) {
	if len(ids) == 0 {
		return []entity.TermsAndConditions{}, nil
	}

	var list []entity.TermsAndConditions
	err := r.db.Where("id IN ?", ids).Order("slug").Find(&list).Error
	if err != nil {
		if isUndefinedTable(err) {
			return []entity.TermsAndConditions{}, nil
		}
		return nil, fmt.Errorf("failed to find terms by ids: %w", err)
	}
	return list, nil
}

// FindNotAgreedTo возвращает активные версии, которые пользователь еще не принял
func (r *TermsRepo) FindNotAgreedTo(userID uint, activeIDs []uint) ([]entity.TermsAndConditions, error) {
	if len(activeIDs) == 0 {
		return []entity.TermsAndConditions{}, nil
	}

	var list []entity.TermsAndConditions
	err := r.db.
		Where("id IN ?", activeIDs).
		Where("id NOT IN (?)",
			r.db.Model(&entity.UserTermsAndConditions{}).Select("terms_id").Where("user_id = ?", userID)).
		Order("slug").
		Find(&list).Error
	if err != nil {
		if isUndefinedTable(err) {
			return []entity.TermsAndConditions{}, nil
		}
		return nil, fmt.Errorf("failed to find terms not agreed to: %w", err)
	}
	return list, nil
}

// ListVersions возвращает все версии документа, включая черновики.
// Активированные версии идут первыми (новые активации выше), черновики в конце.
func (r *TermsRepo) ListVersions(slug string) ([]entity.TermsAndConditions, error) {
	var list []entity.TermsAndConditions
	err := r.db.
		Where("slug = ?", slug).
		Order("date_active DESC NULLS LAST").
		Order("date_created DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list terms versions: %w", err)
	}
	return list, nil
}

// SetDateActive выставляет дату активации версии
func (r *TermsRepo) SetDateActive(id uint, at time.Time) error {
	result := r.db.Model(&entity.TermsAndConditions{}).
		Where("id = ?", id).
		Update("date_active", at)
	if result.Error != nil {
		return fmt.Errorf("failed to set date_active: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yourusername/terms-api/internal/domain/entity"
	apperrors "github.com/yourusername/terms-api/internal/pkg/errors"
)

// UserTermsRepo реализует repository.UserTermsRepository
type UserTermsRepo struct {
	db *gorm.DB
}

// NewUserTermsRepo создает новый репозиторий записей о принятии условий
func NewUserTermsRepo(db *gorm.DB) *UserTermsRepo {
	return &UserTermsRepo{db: db}
}

// isUniqueViolation распознает нарушение уникальности (SQLSTATE 23505).
// Уникальный индекс на (user_id, terms_id) — единственная защита от гонки
// двух одновременных принятий одной и той же версии.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// Create сохраняет запись о принятии условий пользователем
func (r *UserTermsRepo) Create(acceptance *entity.UserTermsAndConditions) error {
	if err := r.db.Create(acceptance).Error; err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create user terms acceptance: %w", err)
	}
	return nil
}

// Exists проверяет наличие записи о принятии для пары (user, terms)
func (r *UserTermsRepo) Exists(userID, termsID uint) (bool, error) {
	var count int64
	err := r.db.Model(&entity.UserTermsAndConditions{}).
		Where("user_id = ? AND terms_id = ?", userID, termsID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check user terms acceptance: %w", err)
	}
	return count > 0, nil
}

// GetByUserAndTerms возвращает запись о принятии для пары (user, terms)
func (r *UserTermsRepo) GetByUserAndTerms(userID, termsID uint) (*entity.UserTermsAndConditions, error) {
	var acceptance entity.UserTermsAndConditions
	err := r.db.Where("user_id = ? AND terms_id = ?", userID, termsID).First(&acceptance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user terms acceptance: %w", err)
	}
	return &acceptance, nil
}

// GetAllByUserID возвращает все принятия пользователя, новые первыми
func (r *UserTermsRepo) GetAllByUserID(userID uint) ([]*entity.UserTermsAndConditions, error) {
	var acceptances []*entity.UserTermsAndConditions
	err := r.db.Where("user_id = ?", userID).
		Order("date_accepted DESC").
		Find(&acceptances).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user terms acceptances: %w", err)
	}
	return acceptances, nil
}

// FindAllWithTerms возвращает все записи о принятии вместе с версиями условий
func (r *UserTermsRepo) FindAllWithTerms() ([]entity.UserTermsAndConditions, error) {
	var acceptances []entity.UserTermsAndConditions
	err := r.db.Preload("Terms").
		Order("date_accepted DESC").
		Find(&acceptances).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load acceptances with terms: %w", err)
	}
	return acceptances, nil
}

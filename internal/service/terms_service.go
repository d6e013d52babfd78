package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/terms-api/internal/domain/entity"
	"github.com/yourusername/terms-api/internal/domain/repository"
	apperrors "github.com/yourusername/terms-api/internal/pkg/errors"
)

// Ключи кеша резолвера активных условий.
// Ключ списка непринятых условий обязан включать ID пользователя,
// иначе один пользователь получит результат, посчитанный для другого.
const (
	cacheKeyActiveTermsPrefix = "tandc.active_terms_"
	cacheKeyActiveTermsIDs    = "tandc.active_terms_ids"
	cacheKeyActiveTermsList   = "tandc.active_terms_list"
	cacheKeyNotAgreedPrefix   = "tandc.not_agreed_terms."
)

// DefaultTermsSlug используется, когда slug не задан ни в запросе, ни в конфигурации
const DefaultTermsSlug = "site-terms"

// TermsService предоставляет методы для работы с версиями условий использования
// и записями об их принятии. Все читающие методы работают через сквозной кеш:
// сначала кеш, при промахе — база с последующим заполнением кеша.
type TermsService struct {
	termsRepo     repository.TermsRepository
	userTermsRepo repository.UserTermsRepository
	cache         repository.CacheRepository
	defaultSlug   string
	cacheTTL      time.Duration
}

// NewTermsService создает новый сервис условий использования.
// Кеш и slug по умолчанию передаются явно, а не берутся из глобального состояния.
func NewTermsService(
	termsRepo repository.TermsRepository,
	userTermsRepo repository.UserTermsRepository,
	cache repository.CacheRepository,
	defaultSlug string,
	cacheTTL time.Duration,
) *TermsService {
	if defaultSlug == "" {
		defaultSlug = DefaultTermsSlug
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &TermsService{
		termsRepo:     termsRepo,
		userTermsRepo: userTermsRepo,
		cache:         cache,
		defaultSlug:   defaultSlug,
		cacheTTL:      cacheTTL,
	}
}

// DefaultSlug возвращает slug документа по умолчанию
func (s *TermsService) DefaultSlug() string {
	return s.defaultSlug
}

// GetActive возвращает активную версию условий для slug или nil, если
// ни одна версия не активирована. Отсутствие активной версии не является
// ошибкой для вызывающего кода — оно логируется и превращается в nil.
func (s *TermsService) GetActive(slug string) (*entity.TermsAndConditions, error) {
	if slug == "" {
		slug = s.defaultSlug
	}

	cacheKey := cacheKeyActiveTermsPrefix + slug

	var cached entity.TermsAndConditions
	if err := s.cache.GetJSON(cacheKey, &cached); err == nil {
		return &cached, nil
	}

	active, err := s.termsRepo.FindActive(slug, time.Now())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[TermsService] Запрошена активная версия условий slug=%s, но ни одна версия не активирована", slug)
			return nil, nil
		}
		return nil, err
	}

	if err := s.cache.SetJSON(cacheKey, active, s.cacheTTL); err != nil {
		log.Printf("[TermsService] Не удалось закешировать активную версию slug=%s: %v", slug, err)
	}

	return active, nil
}

// GetActiveTermsIDs возвращает ID активных версий по всем slug —
// по одному победителю на slug, отсортированные по slug
func (s *TermsService) GetActiveTermsIDs() ([]uint, error) {
	var cached []uint
	if err := s.cache.GetJSON(cacheKeyActiveTermsIDs, &cached); err == nil {
		return cached, nil
	}

	ids, err := s.termsRepo.FindActiveIDs(time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetJSON(cacheKeyActiveTermsIDs, ids, s.cacheTTL); err != nil {
		log.Printf("[TermsService] Не удалось закешировать список ID активных версий: %v", err)
	}

	return ids, nil
}

// GetActiveTermsList возвращает полные записи активных версий по всем slug,
// отсортированные по slug
func (s *TermsService) GetActiveTermsList() ([]entity.TermsAndConditions, error) {
	var cached []entity.TermsAndConditions
	if err := s.cache.GetJSON(cacheKeyActiveTermsList, &cached); err == nil {
		return cached, nil
	}

	ids, err := s.GetActiveTermsIDs()
	if err != nil {
		return nil, err
	}

	list, err := s.termsRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetJSON(cacheKeyActiveTermsList, list, s.cacheTTL); err != nil {
		log.Printf("[TermsService] Не удалось закешировать список активных версий: %v", err)
	}

	return list, nil
}

// AgreedToTerms проверяет, принял ли пользователь конкретную версию условий.
// Нулевой termsID (версия не найдена/не передана) — это "не принял", а не ошибка.
func (s *TermsService) AgreedToTerms(userID, termsID uint) (bool, error) {
	if userID == 0 || termsID == 0 {
		return false, nil
	}

	exists, err := s.userTermsRepo.Exists(userID, termsID)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// AgreedToLatest проверяет, принял ли пользователь текущую активную версию slug.
// Если активной версии нет, результат — false.
func (s *TermsService) AgreedToLatest(userID uint, slug string) (bool, error) {
	active, err := s.GetActive(slug)
	if err != nil {
		return false, err
	}
	if active == nil {
		return false, nil
	}
	return s.AgreedToTerms(userID, active.ID)
}

// GetActiveTermsNotAgreedTo возвращает активные версии, которые пользователь
// еще не принял, отсортированные по slug. Результат кешируется с ключом,
// включающим ID пользователя.
func (s *TermsService) GetActiveTermsNotAgreedTo(userID uint) ([]entity.TermsAndConditions, error) {
	cacheKey := fmt.Sprintf("%s%d", cacheKeyNotAgreedPrefix, userID)

	var cached []entity.TermsAndConditions
	if err := s.cache.GetJSON(cacheKey, &cached); err == nil {
		return cached, nil
	}

	ids, err := s.GetActiveTermsIDs()
	if err != nil {
		return nil, err
	}

	notAgreed, err := s.termsRepo.FindNotAgreedTo(userID, ids)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetJSON(cacheKey, notAgreed, s.cacheTTL); err != nil {
		log.Printf("[TermsService] Не удалось закешировать непринятые условия userID=%d: %v", userID, err)
	}

	return notAgreed, nil
}

// Accept записывает принятие пользователем конкретной версии условий.
// Повторное принятие той же версии (в том числе при гонке двух запросов)
// идемпотентно: уникальный индекс отбрасывает дубликат, а вызывающему
// возвращается уже существующая запись без ошибки.
func (s *TermsService) Accept(userID, termsID uint, ipAddress string) (*entity.UserTermsAndConditions, error) {
	if userID == 0 || termsID == 0 {
		return nil, apperrors.ErrValidation
	}

	if _, err := s.termsRepo.GetByID(termsID); err != nil {
		return nil, err
	}

	acceptance := &entity.UserTermsAndConditions{
		UserID:    userID,
		TermsID:   termsID,
		IPAddress: ipAddress,
	}

	err := s.userTermsRepo.Create(acceptance)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			log.Printf("[TermsService] Пользователь %d уже принял версию %d, повторное принятие игнорируется", userID, termsID)
			return s.userTermsRepo.GetByUserAndTerms(userID, termsID)
		}
		return nil, err
	}

	s.invalidateUserCache(userID)

	return acceptance, nil
}

// GetUserAcceptances возвращает историю принятий пользователя, новые первыми
func (s *TermsService) GetUserAcceptances(userID uint) ([]*entity.UserTermsAndConditions, error) {
	if userID == 0 {
		return nil, apperrors.ErrValidation
	}
	return s.userTermsRepo.GetAllByUserID(userID)
}

// ListAcceptances возвращает все записи о принятии с версиями условий
// для выгрузки аудиторского следа
func (s *TermsService) ListAcceptances() ([]entity.UserTermsAndConditions, error) {
	return s.userTermsRepo.FindAllWithTerms()
}

// CreateTerms сохраняет новую версию условий. Версия создается черновиком,
// если дата активации не задана явно.
func (s *TermsService) CreateTerms(terms *entity.TermsAndConditions) error {
	if terms == nil || terms.Name == "" {
		return apperrors.ErrValidation
	}
	if terms.Slug == "" {
		terms.Slug = s.defaultSlug
	}
	if terms.VersionNumber <= 0 {
		terms.VersionNumber = 1.0
	}

	if err := s.termsRepo.Create(terms); err != nil {
		return err
	}

	// Версия с датой активации в прошлом сразу становится кандидатом в активные
	if terms.DateActive != nil {
		s.invalidateActiveCache(terms.Slug)
	}

	return nil
}

// Activate выставляет дату активации версии и инвалидирует кеш резолвера.
// Нулевое время означает "активировать сейчас".
func (s *TermsService) Activate(termsID uint, at time.Time) (*entity.TermsAndConditions, error) {
	terms, err := s.termsRepo.GetByID(termsID)
	if err != nil {
		return nil, err
	}

	if at.IsZero() {
		at = time.Now()
	}

	if err := s.termsRepo.SetDateActive(termsID, at); err != nil {
		return nil, err
	}

	s.invalidateActiveCache(terms.Slug)

	return s.termsRepo.GetByID(termsID)
}

// GetBySlugAndVersion возвращает конкретную версию документа.
// Отсутствие версии отдается как apperrors.ErrNotFound.
func (s *TermsService) GetBySlugAndVersion(slug string, version float64) (*entity.TermsAndConditions, error) {
	if slug == "" {
		slug = s.defaultSlug
	}
	return s.termsRepo.GetBySlugAndVersion(slug, version)
}

// ListVersions возвращает все версии документа, включая черновики
func (s *TermsService) ListVersions(slug string) ([]entity.TermsAndConditions, error) {
	if slug == "" {
		slug = s.defaultSlug
	}
	return s.termsRepo.ListVersions(slug)
}

// invalidateActiveCache сбрасывает общие ключи резолвера активных версий.
// Per-user ключи непринятых условий перечислить нельзя — их добивает TTL.
func (s *TermsService) invalidateActiveCache(slug string) {
	for _, key := range []string{
		cacheKeyActiveTermsPrefix + slug,
		cacheKeyActiveTermsIDs,
		cacheKeyActiveTermsList,
	} {
		if err := s.cache.Delete(key); err != nil {
			log.Printf("[TermsService] Не удалось инвалидировать ключ кеша %s: %v", key, err)
		}
	}
}

// invalidateUserCache сбрасывает кеш непринятых условий конкретного пользователя
func (s *TermsService) invalidateUserCache(userID uint) {
	key := fmt.Sprintf("%s%d", cacheKeyNotAgreedPrefix, userID)
	if err := s.cache.Delete(key); err != nil {
		log.Printf("[TermsService] Не удалось инвалидировать ключ кеша %s: %v", key, err)
	}
}

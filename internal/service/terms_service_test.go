package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/terms-api/internal/domain/entity"
	apperrors "github.com/yourusername/terms-api/internal/pkg/errors"
)

// ============================================================================
// Моки для TermsService
// ============================================================================

// MockTermsRepo реализует repository.TermsRepository
type MockTermsRepo struct {
	mock.Mock
}

func (m *MockTermsRepo) Create(terms *entity.TermsAndConditions) error {
	args := m.Called(terms)
	return args.Error(0)
}

func (m *MockTermsRepo) GetByID(id uint) (*entity.TermsAndConditions, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.TermsAndConditions), args.Error(1)
}

func (m *MockTermsRepo) GetBySlugAndVersion(slug string, version float64) (*entity.TermsAndConditions, error) {
	args := m.Called(slug, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.TermsAndConditions), args.Error(1)
}

func (m *MockTermsRepo) FindActive(slug string, now time.Time) (*entity.TermsAndConditions, error) {
	args := m.Called(slug, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.TermsAndConditions), args.Error(1)
}

func (m *MockTermsRepo) FindActiveIDs(now time.Time) ([]uint, error) {
	args := m.Called(now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint), args.Error(1)
}

func (m *MockTermsRepo) FindByIDs(ids []uint) ([]entity.TermsAndConditions, error) {
	args := m.Called(ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.TermsAndConditions), args.Error(1)
}

func (m *MockTermsRepo) FindNotAgreedTo(userID uint, activeIDs []uint) ([]entity.TermsAndConditions, error) {
	args := m.Called(userID, activeIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.TermsAndConditions), args.Error(1)
}

func (m *MockTermsRepo) ListVersions(slug string) ([]entity.TermsAndConditions, error) {
	args := m.Called(slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.TermsAndConditions), args.Error(1)
}

func (m *MockTermsRepo) SetDateActive(id uint, at time.Time) error {
	args := m.Called(id, at)
	return args.Error(0)
}

// MockUserTermsRepo реализует repository.UserTermsRepository
type MockUserTermsRepo struct {
	mock.Mock
}

func (m *MockUserTermsRepo) Create(acceptance *entity.UserTermsAndConditions) error {
	args := m.Called(acceptance)
	return args.Error(0)
}

func (m *MockUserTermsRepo) Exists(userID, termsID uint) (bool, error) {
	args := m.Called(userID, termsID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserTermsRepo) GetByUserAndTerms(userID, termsID uint) (*entity.UserTermsAndConditions, error) {
	args := m.Called(userID, termsID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.UserTermsAndConditions), args.Error(1)
}

func (m *MockUserTermsRepo) GetAllByUserID(userID uint) ([]*entity.UserTermsAndConditions, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.UserTermsAndConditions), args.Error(1)
}

func (m *MockUserTermsRepo) FindAllWithTerms() ([]entity.UserTermsAndConditions, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.UserTermsAndConditions), args.Error(1)
}

// MockCacheRepo реализует repository.CacheRepository
type MockCacheRepo struct {
	mock.Mock
}

func (m *MockCacheRepo) Set(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepo) Get(key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepo) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockCacheRepo) SetJSON(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepo) GetJSON(key string, dest interface{}) error {
	args := m.Called(key, dest)
	return args.Error(0)
}

func (m *MockCacheRepo) Exists(key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

// newTestTermsService собирает сервис с кешем, который всегда промахивается
func newTestTermsService(termsRepo *MockTermsRepo, userTermsRepo *MockUserTermsRepo, cache *MockCacheRepo) *TermsService {
	return NewTermsService(termsRepo, userTermsRepo, cache, "site-terms", time.Hour)
}

func missingCache(cache *MockCacheRepo) {
	cache.On("GetJSON", mock.Anything, mock.Anything).Return(apperrors.ErrNotFound)
	cache.On("SetJSON", mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

// ============================================================================
// GetActive
// ============================================================================

func TestTermsService_GetActive_ReturnsLatestActivated(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)
	missingCache(cache)

	latest := time.Now().Add(-time.Hour)
	active := &entity.TermsAndConditions{ID: 7, Slug: "site-terms", Name: "Site Terms", VersionNumber: 2.0, DateActive: &latest}

	termsRepo.On("FindActive", "site-terms", mock.AnythingOfType("time.Time")).Return(active, nil)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	result, err := svc.GetActive("site-terms")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, result, "Активная версия должна быть найдена")
	assert.Equal(t, uint(7), result.ID)
	cache.AssertCalled(t, "SetJSON", "tandc.active_terms_site-terms", active, time.Hour)
}

func TestTermsService_GetActive_EmptySlugUsesDefault(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)
	missingCache(cache)

	activatedAt := time.Now().Add(-time.Minute)
	active := &entity.TermsAndConditions{ID: 1, Slug: "site-terms", DateActive: &activatedAt}
	termsRepo.On("FindActive", "site-terms", mock.AnythingOfType("time.Time")).Return(active, nil)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	result, err := svc.GetActive("")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, result)
	termsRepo.AssertCalled(t, "FindActive", "site-terms", mock.AnythingOfType("time.Time"))
}

func TestTermsService_GetActive_NoActivatedVersion(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)
	cache.On("GetJSON", mock.Anything, mock.Anything).Return(apperrors.ErrNotFound)

	termsRepo.On("FindActive", "privacy", mock.AnythingOfType("time.Time")).Return(nil, apperrors.ErrNotFound)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	result, err := svc.GetActive("privacy")

	// Assert: отсутствие активной версии — не ошибка, а пустой результат
	require.NoError(t, err)
	assert.Nil(t, result)
	cache.AssertNotCalled(t, "SetJSON", mock.Anything, mock.Anything, mock.Anything)
}

func TestTermsService_GetActive_CacheHit(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)

	activatedAt := time.Now().Add(-time.Hour)
	cached := entity.TermsAndConditions{ID: 3, Slug: "site-terms", VersionNumber: 1.5, DateActive: &activatedAt}

	cache.On("GetJSON", "tandc.active_terms_site-terms", mock.Anything).
		Run(func(args mock.Arguments) {
			dest := args.Get(1).(*entity.TermsAndConditions)
			*dest = cached
		}).
		Return(nil)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	result, err := svc.GetActive("site-terms")

	// Assert: база не должна быть затронута
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, uint(3), result.ID)
	termsRepo.AssertNotCalled(t, "FindActive", mock.Anything, mock.Anything)
}

// ============================================================================
// GetActiveTermsIDs / GetActiveTermsList
// ============================================================================

func TestTermsService_GetActiveTermsIDs(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)
	missingCache(cache)

	termsRepo.On("FindActiveIDs", mock.AnythingOfType("time.Time")).Return([]uint{4, 9}, nil)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	ids, err := svc.GetActiveTermsIDs()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []uint{4, 9}, ids, "Должен вернуться по одному ID на slug")
	cache.AssertCalled(t, "SetJSON", "tandc.active_terms_ids", []uint{4, 9}, time.Hour)
}

func TestTermsService_GetActiveTermsIDs_EmptyWhenNoTerms(t *testing.T) {
	// Arrange: таблица пуста или еще не создана — репозиторий отдает пустой список
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)
	missingCache(cache)

	termsRepo.On("FindActiveIDs", mock.AnythingOfType("time.Time")).Return([]uint{}, nil)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	ids, err := svc.GetActiveTermsIDs()

	// Assert
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestTermsService_GetActiveTermsList(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)
	missingCache(cache)

	activatedAt := time.Now().Add(-time.Hour)
	list := []entity.TermsAndConditions{
		{ID: 4, Slug: "privacy", DateActive: &activatedAt},
		{ID: 9, Slug: "site-terms", DateActive: &activatedAt},
	}

	termsRepo.On("FindActiveIDs", mock.AnythingOfType("time.Time")).Return([]uint{4, 9}, nil)
	termsRepo.On("FindByIDs", []uint{4, 9}).Return(list, nil)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	result, err := svc.GetActiveTermsList()

	// Assert
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "privacy", result[0].Slug, "Список должен быть отсортирован по slug")
	assert.Equal(t, "site-terms", result[1].Slug)
}

// ============================================================================
// AgreedToTerms / AgreedToLatest
// ============================================================================

func TestTermsService_AgreedToTerms(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)

	userTermsRepo.On("Exists", uint(42), uint(7)).Return(true, nil)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	agreed, err := svc.AgreedToTerms(42, 7)

	// Assert
	require.NoError(t, err)
	assert.True(t, agreed)
}

func TestTermsService_AgreedToTerms_ZeroTermsID(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act: termsID = 0 соответствует "версия не найдена/не передана"
	agreed, err := svc.AgreedToTerms(42, 0)

	// Assert: это "не принял", а не ошибка
	require.NoError(t, err)
	assert.False(t, agreed)
	userTermsRepo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
}

func TestTermsService_AgreedToLatest(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)
	missingCache(cache)

	activatedAt := time.Now().Add(-time.Hour)
	active := &entity.TermsAndConditions{ID: 7, Slug: "site-terms", DateActive: &activatedAt}

	termsRepo.On("FindActive", "site-terms", mock.AnythingOfType("time.Time")).Return(active, nil)
	userTermsRepo.On("Exists", uint(42), uint(7)).Return(true, nil)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	agreed, err := svc.AgreedToLatest(42, "site-terms")

	// Assert
	require.NoError(t, err)
	assert.True(t, agreed)
}

func TestTermsService_AgreedToLatest_NoActiveVersion(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)
	cache.On("GetJSON", mock.Anything, mock.Anything).Return(apperrors.ErrNotFound)

	termsRepo.On("FindActive", "site-terms", mock.AnythingOfType("time.Time")).Return(nil, apperrors.ErrNotFound)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	agreed, err := svc.AgreedToLatest(42, "site-terms")

	// Assert
	require.NoError(t, err)
	assert.False(t, agreed)
	userTermsRepo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
}

// ============================================================================
// GetActiveTermsNotAgreedTo
// ============================================================================

func TestTermsService_GetActiveTermsNotAgreedTo(t *testing.T) {
	// Arrange: активны условия A и B, пользователь принял только A
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)
	missingCache(cache)

	activatedAt := time.Now().Add(-time.Hour)
	termsB := entity.TermsAndConditions{ID: 9, Slug: "site-terms", DateActive: &activatedAt}

	termsRepo.On("FindActiveIDs", mock.AnythingOfType("time.Time")).Return([]uint{4, 9}, nil)
	termsRepo.On("FindNotAgreedTo", uint(42), []uint{4, 9}).Return([]entity.TermsAndConditions{termsB}, nil)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	notAgreed, err := svc.GetActiveTermsNotAgreedTo(42)

	// Assert
	require.NoError(t, err)
	require.Len(t, notAgreed, 1, "Должна вернуться ровно одна непринятая версия")
	assert.Equal(t, uint(9), notAgreed[0].ID)

	// Ключ кеша обязан включать ID пользователя
	cache.AssertCalled(t, "SetJSON", "tandc.not_agreed_terms.42", []entity.TermsAndConditions{termsB}, time.Hour)
}

// ============================================================================
// Accept
// ============================================================================

func TestTermsService_Accept(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)

	terms := &entity.TermsAndConditions{ID: 7, Slug: "site-terms"}
	termsRepo.On("GetByID", uint(7)).Return(terms, nil)
	userTermsRepo.On("Create", mock.AnythingOfType("*entity.UserTermsAndConditions")).Return(nil)
	cache.On("Delete", "tandc.not_agreed_terms.42").Return(nil)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	acceptance, err := svc.Accept(42, 7, "203.0.113.7")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, acceptance)
	assert.Equal(t, uint(42), acceptance.UserID)
	assert.Equal(t, uint(7), acceptance.TermsID)
	assert.Equal(t, "203.0.113.7", acceptance.IPAddress)
	cache.AssertCalled(t, "Delete", "tandc.not_agreed_terms.42")
}

func TestTermsService_Accept_DuplicateIsIdempotent(t *testing.T) {
	// Arrange: уникальный индекс отбросил дубликат
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)

	terms := &entity.TermsAndConditions{ID: 7, Slug: "site-terms"}
	existing := &entity.UserTermsAndConditions{ID: 100, UserID: 42, TermsID: 7}

	termsRepo.On("GetByID", uint(7)).Return(terms, nil)
	userTermsRepo.On("Create", mock.AnythingOfType("*entity.UserTermsAndConditions")).Return(apperrors.ErrConflict)
	userTermsRepo.On("GetByUserAndTerms", uint(42), uint(7)).Return(existing, nil)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	acceptance, err := svc.Accept(42, 7, "203.0.113.7")

	// Assert: повторное принятие — успех для вызывающего кода
	require.NoError(t, err)
	require.NotNil(t, acceptance)
	assert.Equal(t, uint(100), acceptance.ID)
}

func TestTermsService_Accept_UnknownTerms(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)

	termsRepo.On("GetByID", uint(999)).Return(nil, apperrors.ErrNotFound)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	acceptance, err := svc.Accept(42, 999, "")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Nil(t, acceptance)
	userTermsRepo.AssertNotCalled(t, "Create", mock.Anything)
}

// ============================================================================
// Activate / CreateTerms
// ============================================================================

func TestTermsService_Activate_InvalidatesResolverCache(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)

	draft := &entity.TermsAndConditions{ID: 5, Slug: "privacy", Name: "Privacy Policy"}
	termsRepo.On("GetByID", uint(5)).Return(draft, nil)
	termsRepo.On("SetDateActive", uint(5), mock.AnythingOfType("time.Time")).Return(nil)
	cache.On("Delete", mock.Anything).Return(nil)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	activated, err := svc.Activate(5, time.Time{})

	// Assert
	require.NoError(t, err)
	require.NotNil(t, activated)
	cache.AssertCalled(t, "Delete", "tandc.active_terms_privacy")
	cache.AssertCalled(t, "Delete", "tandc.active_terms_ids")
	cache.AssertCalled(t, "Delete", "tandc.active_terms_list")
}

func TestTermsService_CreateTerms_Defaults(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)

	termsRepo.On("Create", mock.AnythingOfType("*entity.TermsAndConditions")).Return(nil)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)
	terms := &entity.TermsAndConditions{Name: "Site Terms"}

	// Act
	err := svc.CreateTerms(terms)

	// Assert: slug и номер версии подставляются по умолчанию
	require.NoError(t, err)
	assert.Equal(t, "site-terms", terms.Slug)
	assert.Equal(t, 1.0, terms.VersionNumber)
}

func TestTermsService_CreateTerms_RequiresName(t *testing.T) {
	// Arrange
	termsRepo := new(MockTermsRepo)
	userTermsRepo := new(MockUserTermsRepo)
	cache := new(MockCacheRepo)

	svc := newTestTermsService(termsRepo, userTermsRepo, cache)

	// Act
	err := svc.CreateTerms(&entity.TermsAndConditions{})

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	termsRepo.AssertNotCalled(t, "Create", mock.Anything)
}

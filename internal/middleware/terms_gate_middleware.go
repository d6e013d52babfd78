package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/terms-api/internal/domain/entity"
)

// TermsChecker — часть TermsService, нужная для гейтинга запросов
type TermsChecker interface {
	GetActiveTermsNotAgreedTo(userID uint) ([]entity.TermsAndConditions, error)
}

// TermsGate блокирует запросы пользователей, не принявших все активные
// версии условий использования. Должен стоять после RequireAuth.
type TermsGate struct {
	terms TermsChecker
}

// NewTermsGate создает новый гейтинг-middleware
func NewTermsGate(terms TermsChecker) *TermsGate {
	return &TermsGate{terms: terms}
}

// RequireAcceptedTerms отклоняет запрос с 403 и списком непринятых условий,
// пока пользователь не примет все активные версии
func (g *TermsGate) RequireAcceptedTerms() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
			c.Abort()
			return
		}

		notAgreed, err := g.terms.GetActiveTermsNotAgreedTo(userID)
		if err != nil {
			// При ошибке резолвера пропускаем запрос (fail-open), но логируем
			log.Printf("[TermsGate] Ошибка проверки условий для userID=%d: %v. Запрос пропущен (fail-open).", userID, err)
			c.Next()
			return
		}

		if len(notAgreed) > 0 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":          "Active terms and conditions must be accepted",
				"error_type":     "terms_not_accepted",
				"required_terms": notAgreed,
			})
			return
		}

		c.Next()
	}
}

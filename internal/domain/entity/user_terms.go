package entity

import "time"

// UserTermsAndConditions хранит факт принятия пользователем конкретной версии условий.
// Пара (user_id, terms_id) уникальна: одну и ту же версию нельзя принять дважды.
// Записи не изменяются и не удаляются — это аудиторский след.
type UserTermsAndConditions struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index;uniqueIndex:uidx_user_terms_user_terms" json:"user_id"`
	TermsID      uint      `gorm:"not null;uniqueIndex:uidx_user_terms_user_terms" json:"terms_id"`
	IPAddress    string    `gorm:"size:50" json:"ip_address,omitempty"`
	DateAccepted time.Time `gorm:"not null;autoCreateTime" json:"date_accepted"`

	Terms *TermsAndConditions `gorm:"foreignKey:TermsID" json:"terms,omitempty"`
}

// TableName определяет имя таблицы для GORM
func (UserTermsAndConditions) TableName() string {
	return "user_terms_and_conditions"
}

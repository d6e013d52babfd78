package entity

import (
	"fmt"
	"time"
)

// TermsAndConditions хранит версию документа "Условия использования".
// Версии одного документа группируются по slug. Активной для slug считается
// версия с непустой date_active, не лежащей в будущем и максимальной среди таких.
type TermsAndConditions struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Slug          string     `gorm:"size:50;not null;index" json:"slug"`
	Name          string     `gorm:"size:255;not null" json:"name"`
	VersionNumber float64    `gorm:"type:numeric(6,2);not null;default:1.0" json:"version_number"`
	Text          string     `gorm:"type:text" json:"text,omitempty"`
	Info          string     `gorm:"type:text" json:"info,omitempty"`
	DateActive    *time.Time `gorm:"index" json:"date_active,omitempty"` // NULL = черновик, никогда не активировался
	DateCreated   time.Time  `gorm:"not null;autoCreateTime" json:"date_created"`
}

// TableName определяет имя таблицы для GORM
func (TermsAndConditions) TableName() string {
	return "terms_and_conditions"
}

// IsDraft возвращает true, если версия еще ни разу не активировалась
func (t *TermsAndConditions) IsDraft() bool {
	return t.DateActive == nil
}

// IsActiveAt проверяет, что версия активирована и дата активации не в будущем
// относительно переданного момента времени
func (t *TermsAndConditions) IsActiveAt(now time.Time) bool {
	return t.DateActive != nil && !t.DateActive.After(now)
}

// Label возвращает человекочитаемый идентификатор версии, например "site-terms-1.20"
func (t *TermsAndConditions) Label() string {
	return fmt.Sprintf("%s-%.2f", t.Slug, t.VersionNumber)
}

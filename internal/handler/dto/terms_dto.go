package dto

import "time"

// CreateTermsRequest — запрос на создание новой версии условий
type CreateTermsRequest struct {
	Slug          string     `json:"slug"`
	Name          string     `json:"name" binding:"required"`
	VersionNumber float64    `json:"version_number"`
	Text          string     `json:"text"`
	Info          string     `json:"info"`
	DateActive    *time.Time `json:"date_active"` // оставить пустым, чтобы создать черновик
}

// ActivateTermsRequest — запрос на активацию версии условий
type ActivateTermsRequest struct {
	// DateActive: момент активации; пустое значение означает "сейчас"
	DateActive *time.Time `json:"date_active"`
}

// AcceptTermsRequest — запрос на принятие версии условий пользователем
type AcceptTermsRequest struct {
	TermsID uint `json:"terms_id" binding:"required"`
}

// EmailTermsRequest — запрос на отправку копии условий на почту
type EmailTermsRequest struct {
	Email         string  `json:"email" binding:"required,email"`
	Slug          string  `json:"slug"`
	VersionNumber float64 `json:"version_number"` // 0 = текущая активная версия
}

// AgreedResponse — результат проверки принятия условий
type AgreedResponse struct {
	Slug    string `json:"slug"`
	TermsID uint   `json:"terms_id,omitempty"`
	Agreed  bool   `json:"agreed"`
}

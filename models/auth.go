package models

import "time"

type JsonModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type GoogleAuthSignIn struct {
	IdToken  string `json:"idToken" validate:"required"`
	Platform string `json:"platform" validate:"required"`
}

type AppleAuthRequest struct {
	IdentityToken     string `json:"identity_token" validate:"required"`
	Platform          string `json:"platform" validate:"required"`
	AuthorizationCode string `json:"authorization_code" validate:"required"`
}

type FinishProfileIn struct {
	Name               string  `json:"name" validate:"required,max=100"`
	GenderPresentation *string `json:"gender_presentation" validate:"omitempty,max=20"`
	UTMSource          string  `json:"utm_source" validate:"omitempty,max=100"`
}

type UserMeInfoOut struct {
	Id                   string  `json:"id"`
	Name                 string  `json:"name"`
	Email                string  `json:"email"`
	Status               string  `json:"-"`
	AvatarURL            string  `json:"avatar_url"`
	Subscription         *string `json:"subscription"`
	GenderPresentation   string  `json:"gender_presentation"`
	ReceiveNotifications bool    `json:"receive_notifications"`
	ClosetItemCount      int64   `json:"closet_item_count"`
	TodayGenerationCount int64   `json:"today_generation_count"`
}

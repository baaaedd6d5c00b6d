package models

import "time"

type CalendarEvent struct {
	JsonModel
	Owner   UserAccount `json:"-"`
	OwnerID uint        `json:"-"`
	Title   string      `json:"title"`
	// coarse occasion tag the client picked, e.g. "formal", "casual"
	FormalityTag    *string        `json:"formality_tag"`
	StartsAt        time.Time      `json:"starts_at"`
	OutfitRequestID *uint          `json:"outfit_request_id"`
	OutfitRequest   *OutfitRequest `json:"outfit_request"`
	RemindMe        bool           `json:"remind_me"`
	Reminded        bool           `json:"-"`
}

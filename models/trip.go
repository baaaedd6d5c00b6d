package models

import "time"

type Trip struct {
	JsonModel
	Owner       UserAccount `json:"-"`
	OwnerID     uint        `json:"-"`
	Name        string      `json:"name"`
	Destination string      `json:"destination"`
	StartsAt    time.Time   `json:"starts_at"`
	EndsAt      time.Time   `json:"ends_at"`
	// expected weather at the destination, fetched at creation
	ExpectedTempC         *float64 `json:"expected_temp_c"`
	ExpectedPrecipitation *float64 `json:"expected_precipitation"`
	WeatherSummary        *string  `json:"weather_summary"`

	Items []TripItem `json:"items"`
}

type TripItem struct {
	JsonModel
	TripID       uint       `json:"-"`
	Trip         Trip       `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	ClosetItemID uint       `json:"closet_item_id"`
	ClosetItem   ClosetItem `json:"closet_item"`
	Packed       bool       `json:"packed"`
}

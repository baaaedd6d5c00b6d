package models

import (
	"time"

	"github.com/lib/pq"
)

type OutfitRequest struct {
	JsonModel
	Owner   UserAccount `json:"-"`
	OwnerID uint        `json:"-"`
	// verbatim user request, e.g. "yellow midi dress for a wedding"
	OccasionText string `gorm:"type:text" json:"occasion_text"`
	// resolved attire level, e.g. "formal attire"
	Formality    string     `json:"formality"`
	OccasionDate *time.Time `json:"occasion_date"`
	Location     *string    `json:"location"`
	// weather snapshot at creation, when a date and location were given
	WeatherTempC         *float64 `json:"weather_temp_c"`
	WeatherPrecipitation *float64 `json:"weather_precipitation"`
	WeatherSummary       *string  `json:"weather_summary"`
	// pending, completed, partial, failed
	Status               string  `json:"status"`
	GenerationRetryTimes int     `json:"-"`
	ErrorMessage         *string `json:"error_message"`

	Variations []OutfitVariation `json:"variations"`
}

type OutfitVariation struct {
	JsonModel
	OutfitRequestID uint          `json:"-"`
	OutfitRequest   OutfitRequest `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	// 0, 1 or 2 within the request
	VariationIndex int    `json:"variation_index"`
	StyleName      string `json:"style_name"`
	// exact prompts sent to the image model
	Prompt         string  `gorm:"type:text" json:"-"`
	NegativePrompt string  `gorm:"type:text" json:"-"`
	Seed           int     `json:"seed"`
	GuidanceScale  float64 `json:"guidance_scale"`
	// object key of the generated image in storage
	ImageURL        *string        `json:"image_url"`
	Reasoning       pq.StringArray `gorm:"type:text[]" json:"reasoning"`
	ConfidenceScore float64        `json:"confidence_score"`
	// affiliate search string derived from the styled outfit
	ShoppingQuery string `json:"shopping_query"`
	Clicked       bool   `json:"clicked"`
	Selected      bool   `json:"selected"`
	ShareToken    *string `gorm:"uniqueIndex" json:"share_token"`
	// pending, completed, failed
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message"`

	Duration            *float64 `json:"duration"` // in seconds
	LLMModel            *string  `json:"llm_model"`
	LLMInputTokenCount  *int32   `json:"llm_input_token_count"`
	LLMOutputTokenCount *int32   `json:"llm_output_token_count"`
	LLMTotalTokenCount  *int32   `json:"llm_total_token_count"`
}

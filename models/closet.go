package models

import (
	"regexp"

	"github.com/go-playground/validator"
)

type ClosetItem struct {
	JsonModel
	Name        string      `json:"name"`
	Description *string     `gorm:"type:text" json:"description"`
	Category    string      `json:"category"` // top, bottom, dress, outerwear, shoes, accessory
	Owner       UserAccount `json:"-"`
	OwnerID     uint        `json:"-"`
	// AI extracted attributes, filled by the analysis task
	Color  *string `json:"color"`
	Fabric *string `json:"fabric"`
	// pending, completed, failed; empty until analysis is requested
	AnalysisStatus       string  `json:"analysis_status"`
	AnalysisRetryTimes   int     `json:"-"`
	AnalysisErrorMessage *string `json:"analysis_error_message"`
	// object **key** in storage, not a public URL
	ImageURL *string `json:"image_url"`
}

var closetCategoryRule = regexp.MustCompile("^(top|bottom|dress|outerwear|shoes|accessory)$")

func ValidateClosetCategory(fl validator.FieldLevel) bool {
	return closetCategoryRule.MatchString(fl.Field().String())
}

func ValidateClosetCategoryRaw(value string) bool {
	return closetCategoryRule.MatchString(value)
}

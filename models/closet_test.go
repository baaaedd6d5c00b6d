package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateClosetCategoryRaw(t *testing.T) {
	for _, category := range []string{"top", "bottom", "dress", "outerwear", "shoes", "accessory"} {
		assert.True(t, ValidateClosetCategoryRaw(category), category)
	}

	// near-misses must not slip past the grouping switch in listings
	for _, category := range []string{"sundress", "bottoms", "topcoat", "spaceship", ""} {
		assert.False(t, ValidateClosetCategoryRaw(category), category)
	}
}

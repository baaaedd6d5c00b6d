package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractGarmentDetailsWeddingDress(t *testing.T) {
	details := ExtractGarmentDetails("yellow midi dress for a wedding")

	assert.Equal(t, "dress", details.GarmentType)
	assert.Equal(t, "yellow", details.Color)
	assert.Equal(t, "midi", details.Length)
	assert.Equal(t, "", details.Fabric)
	assert.Equal(t, "", details.Fit)
}

func TestExtractGarmentDetailsDefaultsToOutfit(t *testing.T) {
	details := ExtractGarmentDetails("casual brunch")

	assert.Equal(t, "outfit", details.GarmentType)
	assert.Equal(t, "", details.Color)
}

func TestExtractGarmentDetailsListOrderWins(t *testing.T) {
	// "gown" sits before "dress" in the list, so it wins even when the
	// text mentions dress first
	details := ExtractGarmentDetails("a dress, maybe a gown")

	assert.Equal(t, "gown", details.GarmentType)
}

func TestResolveFormality(t *testing.T) {
	assert.Equal(t, "formal attire", ResolveFormality("yellow midi dress for a wedding", ""))
	assert.Equal(t, "casual attire", ResolveFormality("casual brunch", ""))
	assert.Equal(t, "professional attire", ResolveFormality("big interview tomorrow", ""))
	assert.Equal(t, "party attire", ResolveFormality("birthday night", ""))
	assert.Equal(t, "athletic attire", ResolveFormality("morning yoga", ""))

	// occasion keywords beat the coarse tag
	assert.Equal(t, "formal attire", ResolveFormality("gala dinner", "casual"))

	// tag fallback, then casual
	assert.Equal(t, "semi-formal attire", ResolveFormality("no keywords here", "semi-formal"))
	assert.Equal(t, "casual attire", ResolveFormality("no keywords here", ""))
}

func TestComposeKeepsMandatoryColorAcrossVariations(t *testing.T) {
	for index := 0; index < 3; index++ {
		prompt := ComposeOutfitPrompt("yellow midi dress for a wedding", "formal attire", "woman", index)

		mandatory := prompt.Positive[strings.Index(prompt.Positive, "MANDATORY"):strings.Index(prompt.Positive, "STYLE INTERPRETATION")]
		assert.Contains(t, mandatory, "YELLOW")
		assert.Contains(t, mandatory, "midi")
		assert.Contains(t, mandatory, "dress")
	}
}

func TestComposeStyleOnlyVariesUnspecifiedAspects(t *testing.T) {
	prompt := ComposeOutfitPrompt("yellow midi dress for a wedding", "formal attire", "woman", 0)

	styleBlock := prompt.Positive[strings.Index(prompt.Positive, "STYLE INTERPRETATION"):]
	assert.NotContains(t, styleBlock, "Color palette", "user picked a color, style must not suggest one")
	assert.Contains(t, styleBlock, "Neckline, sleeve style and embellishments")

	open := ComposeOutfitPrompt("something for a gala", "formal attire", "woman", 0)
	openStyleBlock := open.Positive[strings.Index(open.Positive, "STYLE INTERPRETATION"):]
	assert.Contains(t, openStyleBlock, "Color palette")
	assert.Contains(t, openStyleBlock, "Silhouette")
}

func TestComposeOnePieceGarmentNegatives(t *testing.T) {
	for _, garment := range []string{"dress", "gown", "jumpsuit", "romper"} {
		for index := 0; index < 3; index++ {
			prompt := ComposeOutfitPrompt(fmt.Sprintf("red %v for a party", garment), "party attire", "", index)

			for _, phrase := range partialGarmentExclusions {
				assert.Contains(t, prompt.Negative, phrase)
			}
		}
	}

	// two-piece garments skip the partial exclusions
	prompt := ComposeOutfitPrompt("linen pants for brunch", "casual attire", "", 0)
	assert.NotContains(t, prompt.Negative, "partial garment")
}

func TestComposeGenderConditionedNegatives(t *testing.T) {
	woman := ComposeOutfitPrompt("black dress", "casual attire", "woman", 0)
	assert.Contains(t, woman.Negative, "little girl")
	assert.Contains(t, woman.Negative, "kids clothing")

	man := ComposeOutfitPrompt("navy suit", "casual attire", "man", 0)
	assert.Contains(t, man.Negative, "little boy")

	unset := ComposeOutfitPrompt("navy suit", "casual attire", "", 0)
	assert.Contains(t, unset.Negative, "kids clothing")
	assert.NotContains(t, unset.Negative, "little girl")
	assert.NotContains(t, unset.Negative, "little boy")
}

func TestComposeIncludesStyleAndAccessoryNegatives(t *testing.T) {
	prompt := ComposeOutfitPrompt("black dress", "casual attire", "woman", 0)

	for _, phrase := range StyleCatalog[0].Exclusions {
		assert.Contains(t, prompt.Negative, phrase)
	}
	assert.Contains(t, prompt.Negative, "jewelry")
	assert.Contains(t, prompt.Negative, "multiple outfits")
}

func TestThreeVariationsPickDistinctStyles(t *testing.T) {
	seen := map[string]bool{}
	for index := 0; index < 3; index++ {
		style := StyleForVariation(index)
		require.False(t, seen[style.Name], "style %v repeated", style.Name)
		seen[style.Name] = true
	}
	assert.Len(t, seen, 3)
}

func TestVariationSeedRangesAreDisjoint(t *testing.T) {
	for i := 0; i < 200; i++ {
		seed0 := VariationSeed(0)
		seed1 := VariationSeed(1)
		seed2 := VariationSeed(2)

		assert.GreaterOrEqual(t, seed0, 1000)
		assert.Less(t, seed0, 2000)
		assert.GreaterOrEqual(t, seed1, 3000)
		assert.Less(t, seed1, 4000)
		assert.GreaterOrEqual(t, seed2, 5000)
		assert.Less(t, seed2, 6000)
	}
}

func TestVariationGuidanceScale(t *testing.T) {
	assert.Equal(t, 7.5, VariationGuidanceScale(0))
	assert.Equal(t, 9.0, VariationGuidanceScale(1))
	assert.Equal(t, 10.5, VariationGuidanceScale(2))
}

func TestBuildShoppingQuery(t *testing.T) {
	details := ExtractGarmentDetails("yellow midi dress for a wedding")
	query := BuildShoppingQuery(details, StyleCatalog[0])

	assert.Equal(t, "yellow midi dress romantic style", query)
}

func TestConfidenceScore(t *testing.T) {
	assert.Equal(t, 0.7, ConfidenceScore(ExtractGarmentDetails("something nice")))

	scored := ConfidenceScore(ExtractGarmentDetails("yellow midi dress for a wedding"))
	assert.InDelta(t, 0.85, scored, 0.0001)

	full := ConfidenceScore(ExtractGarmentDetails("fitted yellow silk midi dress"))
	assert.Equal(t, 0.95, full)
}

func TestComposeReasoningMentionsColorChoice(t *testing.T) {
	details := ExtractGarmentDetails("yellow midi dress for a wedding")
	reasons := ComposeReasoning(details, StyleCatalog[1], "formal attire")

	require.Len(t, reasons, 3)
	assert.Contains(t, reasons[2], "yellow")
}

package services

import (
	"fmt"
	"math/rand"
	"strings"
)

// GarmentDetails holds whatever garment attributes were found in the
// user's occasion text. Empty fields mean the user did not specify them.
type GarmentDetails struct {
	GarmentType string
	Color       string
	Fabric      string
	Length      string
	Fit         string
}

// Matching walks each list in order and takes the first list entry found
// anywhere in the text, not the first occurrence in the text. Keep the
// lists ordered with the more specific words first ("gown" before "dress").
var garmentTypeKeywords = []string{
	"gown",
	"dress",
	"jumpsuit",
	"romper",
	"suit",
	"blazer",
	"skirt",
	"blouse",
	"shirt",
	"sweater",
	"hoodie",
	"jacket",
	"coat",
	"jeans",
	"trousers",
	"pants",
	"shorts",
	"top",
}

var colorKeywords = []string{
	"black",
	"white",
	"ivory",
	"cream",
	"beige",
	"red",
	"burgundy",
	"navy",
	"blue",
	"teal",
	"green",
	"olive",
	"yellow",
	"gold",
	"orange",
	"coral",
	"pink",
	"lavender",
	"purple",
	"brown",
	"silver",
	"grey",
}

var fabricKeywords = []string{
	"silk",
	"satin",
	"velvet",
	"lace",
	"chiffon",
	"tulle",
	"sequin",
	"denim",
	"leather",
	"suede",
	"linen",
	"cotton",
	"wool",
	"cashmere",
	"tweed",
	"knit",
}

var lengthKeywords = []string{
	"floor-length",
	"knee-length",
	"ankle-length",
	"full-length",
	"mini",
	"midi",
	"maxi",
	"cropped",
}

var fitKeywords = []string{
	"bodycon",
	"fitted",
	"tailored",
	"oversized",
	"relaxed",
	"loose",
	"flowy",
	"a-line",
	"wrap",
	"slim",
}

func firstKeywordMatch(text string, keywords []string) string {
	for _, word := range keywords {
		if strings.Contains(text, word) {
			return word
		}
	}
	return ""
}

// ExtractGarmentDetails scans the lower-cased occasion text against the
// fixed keyword lists. Total over any input, garment type falls back to
// the generic "outfit".
func ExtractGarmentDetails(occasionText string) GarmentDetails {
	text := strings.ToLower(occasionText)
	details := GarmentDetails{
		GarmentType: firstKeywordMatch(text, garmentTypeKeywords),
		Color:       firstKeywordMatch(text, colorKeywords),
		Fabric:      firstKeywordMatch(text, fabricKeywords),
		Length:      firstKeywordMatch(text, lengthKeywords),
		Fit:         firstKeywordMatch(text, fitKeywords),
	}
	if details.GarmentType == "" {
		details.GarmentType = "outfit"
	}
	return details
}

type occasionFormality struct {
	Keywords []string
	Attire   string
}

// Checked top to bottom, first hit wins.
var occasionFormalities = []occasionFormality{
	{Keywords: []string{"wedding", "gala", "black tie", "black-tie", "opera", "ceremony"}, Attire: "formal attire"},
	{Keywords: []string{"cocktail", "date night", "dinner party", "anniversary", "graduation"}, Attire: "semi-formal attire"},
	{Keywords: []string{"interview", "office", "work", "business", "meeting", "conference", "presentation"}, Attire: "professional attire"},
	{Keywords: []string{"party", "birthday", "club", "concert", "festival", "night out", "celebration"}, Attire: "party attire"},
	{Keywords: []string{"gym", "workout", "yoga", "running", "hike", "hiking", "sport", "tennis"}, Attire: "athletic attire"},
	{Keywords: []string{"brunch", "picnic", "beach", "errands", "coffee", "casual", "weekend"}, Attire: "casual attire"},
}

var formalityTagAttire = map[string]string{
	"formal":       "formal attire",
	"black-tie":    "formal attire",
	"semi-formal":  "semi-formal attire",
	"professional": "professional attire",
	"business":     "professional attire",
	"party":        "party attire",
	"athletic":     "athletic attire",
	"casual":       "casual attire",
}

// ResolveFormality maps the occasion text plus an optional coarse tag to
// one of the canned attire descriptors. Occasion keywords win over the
// tag, everything else is casual.
func ResolveFormality(occasionText string, formalityTag string) string {
	text := strings.ToLower(occasionText)
	for _, level := range occasionFormalities {
		for _, word := range level.Keywords {
			if strings.Contains(text, word) {
				return level.Attire
			}
		}
	}
	if attire, ok := formalityTagAttire[strings.ToLower(formalityTag)]; ok {
		return attire
	}
	return "casual attire"
}

// StyleInterpretation is one entry of the fixed style catalog. The
// exclusions keep the three variations visually distinct from each other.
type StyleInterpretation struct {
	Name        string
	Description string
	Palette     string
	Silhouette  string
	Exclusions  []string
}

var StyleCatalog = []StyleInterpretation{
	{
		Name:        "Romantic",
		Description: "soft, dreamy styling with delicate feminine details",
		Palette:     "soft blush, dusty rose and cream tones",
		Silhouette:  "flowing, softly draped silhouette",
		Exclusions:  []string{"harsh lines", "dark gothic elements", "heavy hardware", "neon colors"},
	},
	{
		Name:        "Elegant",
		Description: "refined, timeless styling with a polished finish",
		Palette:     "muted jewel tones and classic neutrals",
		Silhouette:  "clean, structured silhouette",
		Exclusions:  []string{"casual streetwear", "distressed fabric", "loud prints", "sporty elements"},
	},
	{
		Name:        "Edgy",
		Description: "bold, modern styling with a rebellious attitude",
		Palette:     "black, charcoal and deep contrast tones",
		Silhouette:  "sharp, asymmetric silhouette",
		Exclusions:  []string{"pastel colors", "frilly details", "dainty florals", "preppy styling"},
	},
	{
		Name:        "Minimalist",
		Description: "pared-back, architectural styling with no excess",
		Palette:     "monochrome and warm neutral tones",
		Silhouette:  "streamlined, unembellished silhouette",
		Exclusions:  []string{"busy patterns", "heavy embellishment", "layered extras", "loud color blocking"},
	},
	{
		Name:        "Bohemian",
		Description: "free-spirited, artisanal styling with earthy texture",
		Palette:     "earthy terracotta, olive and warm sand tones",
		Silhouette:  "relaxed, free-flowing silhouette",
		Exclusions:  []string{"corporate tailoring", "stiff structure", "glossy synthetic fabric", "formal rigidity"},
	},
	{
		Name:        "Glam",
		Description: "high-shine, statement styling made to turn heads",
		Palette:     "metallic gold, silver and rich saturated tones",
		Silhouette:  "figure-flattering, dramatic silhouette",
		Exclusions:  []string{"plain basics", "matte minimalism", "utilitarian details", "washed-out colors"},
	},
}

// StyleForVariation picks the catalog entry for a variation index. Indices
// 0..2 always land on three distinct entries.
func StyleForVariation(variationIndex int) StyleInterpretation {
	return StyleCatalog[variationIndex%len(StyleCatalog)]
}

var completeGarmentTypes = map[string]bool{
	"dress":    true,
	"gown":     true,
	"jumpsuit": true,
	"romper":   true,
}

var partialGarmentExclusions = []string{
	"separate top and bottom",
	"two-piece set",
	"disconnected garment parts",
	"partial garment",
}

var multiOutfitExclusions = []string{
	"multiple outfits",
	"outfit grid",
	"collage",
	"side by side comparison",
	"clothing rack",
	"mannequin lineup",
}

var accessoryExclusions = []string{
	"handbag",
	"jewelry",
	"necklace",
	"earrings",
	"sunglasses",
	"hat",
	"shoes",
	"heels",
	"sneakers",
	"watch",
}

var childrenExclusions = []string{
	"children",
	"child",
	"kids clothing",
	"toddler",
	"baby clothes",
	"school uniform",
}

// OutfitPrompt is one fully composed variation ready to send to the image
// model.
type OutfitPrompt struct {
	Positive string
	Negative string
	Style    StyleInterpretation
	Details  GarmentDetails
}

// ComposeOutfitPrompt builds the positive and negative prompt for one
// variation. Pure string assembly, never fails. Attributes the user
// spelled out go into the mandatory block unchanged for every variation,
// the style interpretation only touches whatever was left open.
func ComposeOutfitPrompt(occasionText string, formality string, genderPresentation string, variationIndex int) OutfitPrompt {
	details := ExtractGarmentDetails(occasionText)
	style := StyleForVariation(variationIndex)

	var b strings.Builder
	fmt.Fprintf(&b, "Generate a photorealistic fashion photograph of a single complete outfit for this request: \"%v\".\n\n", occasionText)

	b.WriteString("MANDATORY SPECIFICATIONS (must match exactly, do not reinterpret):\n")
	fmt.Fprintf(&b, "- Garment type: %v\n", details.GarmentType)
	if details.Color != "" {
		fmt.Fprintf(&b, "- Color: %v\n", strings.ToUpper(details.Color))
	}
	if details.Fabric != "" {
		fmt.Fprintf(&b, "- Fabric: %v\n", details.Fabric)
	}
	if details.Length != "" {
		fmt.Fprintf(&b, "- Length: %v\n", details.Length)
	}
	if details.Fit != "" {
		fmt.Fprintf(&b, "- Fit: %v\n", details.Fit)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "STYLE INTERPRETATION (%v): %v. Apply this style only to aspects not listed above:\n", style.Name, style.Description)
	if details.Color == "" {
		fmt.Fprintf(&b, "- Color palette: %v\n", style.Palette)
	}
	if details.Length == "" && details.Fit == "" {
		fmt.Fprintf(&b, "- Silhouette: %v\n", style.Silhouette)
	}
	fmt.Fprintf(&b, "- Neckline, sleeve style and embellishments: choose in the %v spirit\n\n", strings.ToLower(style.Name))

	fmt.Fprintf(&b, "OCCASION CONTEXT: appropriate for the described occasion, styled as %v.\n\n", formality)

	b.WriteString("COMPOSITION RULES:\n")
	b.WriteString("- one single cohesive outfit on a plain studio background\n")
	b.WriteString("- no accessories, bags, jewelry or footwear in frame\n")
	b.WriteString("- adult clothing only\n")
	b.WriteString("- show the garment as one complete piece, never separated parts\n")

	negative := make([]string, 0, 24)
	negative = append(negative, childrenExclusions...)
	switch genderPresentation {
	case "woman":
		negative = append(negative, "little girl", "girls dress")
	case "man":
		negative = append(negative, "little boy", "boys outfit")
	}
	negative = append(negative, multiOutfitExclusions...)
	if completeGarmentTypes[details.GarmentType] {
		negative = append(negative, partialGarmentExclusions...)
	}
	negative = append(negative, style.Exclusions...)
	negative = append(negative, accessoryExclusions...)

	return OutfitPrompt{
		Positive: b.String(),
		Negative: strings.Join(negative, ", "),
		Style:    style,
		Details:  details,
	}
}

// Seed ranges per variation index do not overlap so the image model is
// nudged toward genuinely different outputs.
func VariationSeed(variationIndex int) int {
	return 1000 + variationIndex*2000 + rand.Intn(1000)
}

func VariationGuidanceScale(variationIndex int) float64 {
	return 7.5 + 1.5*float64(variationIndex)
}

// BuildShoppingQuery derives the affiliate search string for a styled
// variation, e.g. "yellow midi dress romantic style".
func BuildShoppingQuery(details GarmentDetails, style StyleInterpretation) string {
	parts := make([]string, 0, 6)
	for _, part := range []string{details.Color, details.Fabric, details.Length, details.Fit} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	parts = append(parts, details.GarmentType, strings.ToLower(style.Name), "style")
	return strings.Join(parts, " ")
}

// ComposeReasoning produces the short explanation lines shown next to a
// variation in the client.
func ComposeReasoning(details GarmentDetails, style StyleInterpretation, formality string) []string {
	reasons := []string{
		fmt.Sprintf("The %v interpretation keeps your %v as requested while adding %v.", strings.ToLower(style.Name), details.GarmentType, style.Description),
		fmt.Sprintf("The look matches the occasion, sitting comfortably at the %v level.", formality),
	}
	if details.Color != "" {
		reasons = append(reasons, fmt.Sprintf("Kept your %v color choice untouched across the whole look.", details.Color))
	} else {
		reasons = append(reasons, fmt.Sprintf("Leaned on a palette of %v since no color was specified.", style.Palette))
	}
	return reasons
}

// ConfidenceScore grows with how much of the request was explicit. Capped
// so the UI never claims certainty.
func ConfidenceScore(details GarmentDetails) float64 {
	score := 0.7
	for _, part := range []string{details.Color, details.Fabric, details.Length, details.Fit} {
		if part != "" {
			score += 0.05
		}
	}
	if details.GarmentType != "outfit" {
		score += 0.05
	}
	if score > 0.95 {
		score = 0.95
	}
	return score
}

package languageutil

import (
	"math/rand"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var TitleCaser = cases.Title(language.English)
var LowerCaser = cases.Lower(language.English)

var Adjs []string = []string{
	"polished",
	"breezy",
	"bold",
	"soft",
	"crisp",
	"sleek",
	"playful",
	"refined",
	"vivid",
	"muted",
	"airy",
	"structured",
	"relaxed",
	"dramatic",
	"understated",
	"luminous",
	"earthy",
	"modern",
	"timeless",
	"effortless",
	"daring",
	"delicate",
	"sculpted",
	"fluid",
	"radiant",
	"moody",
	"fresh",
	"classic",
	"striking",
	"easygoing",
}

var Nouns []string = []string{
	"silhouette",
	"palette",
	"drape",
	"texture",
	"layer",
	"hemline",
	"neckline",
	"contour",
	"finish",
	"accent",
	"cut",
	"shade",
	"tone",
	"weave",
	"pleat",
	"seam",
	"shape",
	"profile",
	"flow",
	"detail",
}

func RandomAdjective() string {

	pick := rand.Intn(len(Adjs))
	return Adjs[pick]
}

func RandomNounlike() string {

	pick := rand.Intn(len(Nouns))
	return Nouns[pick]
}

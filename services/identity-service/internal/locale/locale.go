// Package locale resolves user-supplied locale and timezone identifiers onto
// the identifiers the rest of the system understands. Resolution never fails:
// unusable input falls back to the supplied default.
package locale

import (
	"errors"
	"time"

	"golang.org/x/text/language"
)

// supported lists the languages the UI ships translations for, keyed by the
// numeric id stored on user records.
var supported = []struct {
	ID  int64
	Tag language.Tag
}{
	{1, language.English},
	{2, language.German},
	{3, language.Spanish},
	{4, language.French},
	{5, language.Italian},
	{6, language.Portuguese},
	{7, language.Russian},
	{8, language.Chinese},
	{9, language.Japanese},
}

var matcher language.Matcher

func init() {
	tags := make([]language.Tag, len(supported))
	for i, entry := range supported {
		tags[i] = entry.Tag
	}
	matcher = language.NewMatcher(tags)
}

// Resolve parses a BCP-47 tag and matches it against the supported set. It
// returns the closest supported language id and the country code carried by
// the tag, with ok reporting whether the tag parsed at all. An unknown but
// well-formed language resolves to the default id.
func Resolve(tag string, defaultLanguageID int64) (languageID int64, country string, ok bool) {
	parsed, err := language.Parse(tag)
	if err != nil {
		// A ValueError means the tag is well-formed but carries unknown
		// subtags; the parsed tag is still usable.
		var valueErr language.ValueError
		if !errors.As(err, &valueErr) {
			return defaultLanguageID, "", false
		}
	}

	languageID = defaultLanguageID
	if _, index, confidence := matcher.Match(parsed); confidence > language.No {
		languageID = supported[index].ID
	}

	if region, confidence := parsed.Region(); confidence == language.Exact {
		country = region.String()
	}

	return languageID, country, true
}

// LanguageID resolves a tag to the closest supported language id, falling
// back to the default.
func LanguageID(tag string, defaultLanguageID int64) int64 {
	languageID, _, _ := Resolve(tag, defaultLanguageID)
	return languageID
}

// TimeZoneID canonicalizes an IANA timezone name, falling back to the default
// when the name is empty or unknown.
func TimeZoneID(name, def string) string {
	if name == "" {
		return def
	}

	location, err := time.LoadLocation(name)
	if err != nil {
		return def
	}

	return location.String()
}

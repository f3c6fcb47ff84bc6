package models

import (
	"regexp"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Quality struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

var Qualities = []Quality{
	{Value: 0, Label: "Unknown"},
	{Value: 360, Label: "360p"},
	{Value: 480, Label: "480p"},
	{Value: 720, Label: "720p"},
	{Value: 1080, Label: "1080p"},
	{Value: 2160, Label: "4K"},
}

// QualityLabel returns an empty label for unknown quality.
func QualityLabel(value int) string {
	if value <= 0 {
		return ""
	}
	for _, q := range Qualities {
		if q.Value == value {
			return q.Label
		}
	}
	return ""
}

type SortPreset struct {
	Value []SortKey `json:"value"`
	Label string    `json:"label"`
}

var SortPresets = []SortPreset{
	{Value: []SortKey{{SortFieldQuality, true}, {SortFieldSeeders, true}}, Label: "By quality then seeders"},
	{Value: []SortKey{{SortFieldQuality, true}, {SortFieldSize, true}}, Label: "By quality then size"},
	{Value: []SortKey{{SortFieldSeeders, true}}, Label: "By seeders"},
	{Value: []SortKey{{SortFieldQuality, true}}, Label: "By quality"},
	{Value: []SortKey{{SortFieldSize, true}}, Label: "By size"},
}

const LanguageMulti = "multi"

type Language struct {
	Value   string         `json:"value"`
	Emoji   string         `json:"emoji"`
	Label   string         `json:"label"`
	Pattern *regexp.Regexp `json:"-"`
}

func newLanguage(value, emoji, pattern string) Language {
	return Language{
		Value:   value,
		Emoji:   emoji,
		Label:   emoji + " " + cases.Title(language.English).String(value),
		Pattern: regexp.MustCompile("(?i)" + pattern),
	}
}

var Languages = []Language{
	newLanguage(LanguageMulti, "🌎", `multi`),
	newLanguage("arabic", "🇦🇪", `arabic`),
	newLanguage("chinese", "🇨🇳", `chinese`),
	newLanguage("german", "🇩🇪", `german`),
	newLanguage("english", "🇺🇸", `(eng(lish)?)`),
	newLanguage("spanish", "🇪🇸", `spanish`),
	newLanguage("french", "🇫🇷", `french`),
	newLanguage("dutch", "🇳🇱", `dutch`),
	newLanguage("italian", "🇮🇹", `italian`),
	newLanguage("korean", "🇰🇷", `korean`),
	newLanguage("portuguese", "🇵🇹", `portuguese`),
	newLanguage("russian", "🇷🇺", `rus(sian)?`),
	newLanguage("swedish", "🇸🇪", `swedish`),
	newLanguage("tamil", "🇮🇳", `tamil`),
	newLanguage("turkish", "🇹🇷", `turkish`),
}

// DetectLanguages returns the values of all languages whose pattern matches title.
func DetectLanguages(title string) []string {
	var res []string
	for _, l := range Languages {
		if l.Pattern.MatchString(title) {
			res = append(res, l.Value)
		}
	}
	return res
}

func LanguageEmoji(value string) string {
	for _, l := range Languages {
		if l.Value == value {
			return l.Emoji
		}
	}
	return ""
}

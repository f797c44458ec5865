// Package i18n negotiates response locales against the embedded catalogs.
package i18n

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/careercounsel/cardroom/internal/platform/i18n/catalog"
)

// LangParam is the query parameter used to select a language.
const LangParam = "lang"

var supportedTags = []language.Tag{
	language.MustParse(catalog.BaseLocale),
	language.MustParse("zh-TW"),
}

var tagMatcher = language.NewMatcher(supportedTags)

// SupportedTags returns the list of supported language tags. The first entry
// is the default.
func SupportedTags() []language.Tag {
	tags := make([]language.Tag, len(supportedTags))
	copy(tags, supportedTags)
	return tags
}

// DefaultTag returns the default language tag.
func DefaultTag() language.Tag {
	return supportedTags[0]
}

// ParseTag parses value and reports whether it matches a supported tag
// exactly or by confident match.
func ParseTag(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return language.Tag{}, false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return language.Tag{}, false
	}
	_, index, confidence := tagMatcher.Match(tag)
	if confidence < language.High {
		return language.Tag{}, false
	}
	return supportedTags[index], true
}

// MatchTags returns the supported tag that best matches the preference list.
func MatchTags(tags []language.Tag) language.Tag {
	if len(tags) == 0 {
		return DefaultTag()
	}
	_, index, _ := tagMatcher.Match(tags...)
	return supportedTags[index]
}

// Locale returns the catalog locale identifier for tag.
func Locale(tag language.Tag) string {
	return tag.String()
}

// ResolveRequest picks the locale for r from the lang query parameter, then
// Accept-Language, then the default.
func ResolveRequest(r *http.Request) string {
	if r == nil {
		return Locale(DefaultTag())
	}
	if tag, ok := ParseTag(r.URL.Query().Get(LangParam)); ok {
		return Locale(tag)
	}
	return MatchAcceptLanguage(r.Header.Get("Accept-Language"))
}

// MatchAcceptLanguage resolves an Accept-Language header value to a locale.
func MatchAcceptLanguage(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return Locale(DefaultTag())
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return Locale(DefaultTag())
	}
	return Locale(MatchTags(tags))
}

// Printer returns a message printer for locale with catalogs registered.
func Printer(locale string) *message.Printer {
	_ = catalog.Default()
	tag, ok := ParseTag(locale)
	if !ok {
		tag = DefaultTag()
	}
	return message.NewPrinter(tag)
}

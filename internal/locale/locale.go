// Package locale picks the language for outgoing waitlist email.
package locale

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/revo-marketplace/waitlist/internal/domain"
)

// Resolve returns the explicit locale when it is supported, otherwise the first
// supported language in the Accept-Language header, otherwise English.
func Resolve(explicit *string, acceptLanguage string) domain.Locale {
	if explicit != nil {
		if loc, ok := supported(*explicit); ok {
			return loc
		}
	}
	if loc, ok := FromAcceptLanguage(acceptLanguage); ok {
		return loc
	}
	return domain.LocaleEN
}

// FromAcceptLanguage scans the header in preference order.
func FromAcceptLanguage(header string) (domain.Locale, bool) {
	if strings.TrimSpace(header) == "" {
		return "", false
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return "", false
	}
	for _, tag := range tags {
		base, _ := tag.Base()
		if loc, ok := supported(base.String()); ok {
			return loc, true
		}
	}
	return "", false
}

func supported(raw string) (domain.Locale, bool) {
	switch domain.Locale(strings.ToLower(strings.TrimSpace(raw))) {
	case domain.LocaleEN:
		return domain.LocaleEN, true
	case domain.LocaleES:
		return domain.LocaleES, true
	}
	return "", false
}

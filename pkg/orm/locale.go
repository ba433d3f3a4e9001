package orm

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// ValidateLocale checks that a locale code ("en_US", "es") names a BCP 47
// language and returns it trimmed. The code itself is kept: it is the column
// name of the locale in multi-language tables. The empty locale is valid.
func ValidateLocale(locale string) (string, error) {
	_, code, err := localeTag(locale)
	return code, err
}

// ValidateLocales validates a locale list and rejects codes naming the same
// language twice, such as "en_US" and "en-US"
func ValidateLocales(locales []string) ([]string, error) {
	out := make([]string, 0, len(locales))
	seen := make(map[string]string, len(locales))
	for _, l := range locales {
		tag, code, err := localeTag(l)
		if err != nil {
			return nil, err
		}
		if other, dup := seen[tag]; dup {
			return nil, fmt.Errorf("duplicate locale %q (same as %q)", code, other)
		}
		seen[tag] = code
		out = append(out, code)
	}
	return out, nil
}

// localeTag returns the canonical BCP 47 form of a locale code, used to
// compare codes, along with the trimmed code
func localeTag(locale string) (string, string, error) {
	code := strings.TrimSpace(locale)
	if code == "" {
		return "", "", nil
	}
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return "", "", fmt.Errorf("invalid locale %q: %w", code, err)
	}
	return tag.String(), code, nil
}

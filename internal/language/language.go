// Package language enumerates supported capture locales and the pivot language.
package language

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a BCP-47 style locale tag such as "en-US".
type Code string

// Pivot is the language grammar conversion and emotion classification operate in.
const Pivot Code = "en-US"

// ErrUnsupported indicates a locale outside the supported catalog.
var ErrUnsupported = errors.New("unsupported language")

// Info describes one selectable capture locale.
type Info struct {
	Code Code
	Name string
}

var catalog = []Info{
	{Code: "en-US", Name: "English (United States)"},
	{Code: "en-IN", Name: "English (India)"},
	{Code: "hi-IN", Name: "Hindi"},
	{Code: "bn-IN", Name: "Bengali"},
	{Code: "ta-IN", Name: "Tamil"},
	{Code: "te-IN", Name: "Telugu"},
	{Code: "mr-IN", Name: "Marathi"},
	{Code: "gu-IN", Name: "Gujarati"},
	{Code: "kn-IN", Name: "Kannada"},
	{Code: "ml-IN", Name: "Malayalam"},
	{Code: "fr-FR", Name: "French"},
	{Code: "es-ES", Name: "Spanish"},
	{Code: "de-DE", Name: "German"},
}

// Catalog returns the supported locales in display order.
func Catalog() []Info {
	out := make([]Info, len(catalog))
	copy(out, catalog)
	return out
}

// Parse normalizes raw ("hi_in", " HI-in ") and checks it against the catalog.
func Parse(raw string) (Code, error) {
	normalized := normalize(raw)
	if normalized == "" {
		return "", fmt.Errorf("%w: empty language code", ErrUnsupported)
	}
	for _, info := range catalog {
		if string(info.Code) == normalized {
			return info.Code, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupported, raw)
}

// IsPivot reports whether c needs no translation step.
func (c Code) IsPivot() bool {
	return c == Pivot
}

func (c Code) String() string {
	return string(c)
}

func normalize(raw string) string {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "_", "-")
	lang, region, found := strings.Cut(raw, "-")
	if !found {
		return strings.ToLower(lang)
	}
	return strings.ToLower(lang) + "-" + strings.ToUpper(region)
}

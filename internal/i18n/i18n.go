// Package i18n localizes user-facing status strings.
package i18n

import (
	"embed"
	"fmt"
	gosync "sync"

	"github.com/BurntSushi/toml"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var locales embed.FS

var (
	bundleOnce gosync.Once
	bundle     *goi18n.Bundle
	bundleErr  error
)

// Bundle returns the translation bundle with every embedded locale loaded.
func Bundle() (*goi18n.Bundle, error) {
	bundleOnce.Do(func() {
		b := goi18n.NewBundle(language.English)
		b.RegisterUnmarshalFunc("toml", toml.Unmarshal)
		for _, name := range []string{"locales/active.en.toml", "locales/active.ja.toml"} {
			if _, err := b.LoadMessageFileFS(locales, name); err != nil {
				bundleErr = fmt.Errorf("loading %s: %w", name, err)
				return
			}
		}
		bundle = b
	})
	return bundle, bundleErr
}

// Translator renders messages in one language, falling back to English.
type Translator struct {
	loc *goi18n.Localizer
}

// New returns a translator for lang ("en", "ja", or a BCP 47 tag).
func New(lang string) *Translator {
	b, err := Bundle()
	if err != nil {
		return &Translator{}
	}
	return &Translator{loc: goi18n.NewLocalizer(b, lang, language.English.String())}
}

// T translates id with optional template data. Unknown ids come back
// unchanged.
func (t *Translator) T(id string, data map[string]any) string {
	if t == nil || t.loc == nil {
		return id
	}
	msg, err := t.loc.Localize(&goi18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		return id
	}
	return msg
}

// Plural translates id for count; Count is available to the template.
func (t *Translator) Plural(id string, count int) string {
	if t == nil || t.loc == nil {
		return id
	}
	msg, err := t.loc.Localize(&goi18n.LocalizeConfig{
		MessageID:    id,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
	if err != nil {
		return id
	}
	return msg
}

// Supported lists the languages with a locale file.
func Supported() []language.Tag {
	b, err := Bundle()
	if err != nil {
		return []language.Tag{language.English}
	}
	return b.LanguageTags()
}

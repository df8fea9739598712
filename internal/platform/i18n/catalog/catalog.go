// Package catalog loads the player-facing message catalogs and exposes
// x/text printers for them.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// BaseLocale is the canonical source locale for catalogs.
	BaseLocale = "en-US"
)

type catalogFile struct {
	Locale   string            `toml:"locale"`
	Messages map[string]string `toml:"messages"`
}

// Bundle contains all locale catalogs loaded from a filesystem.
type Bundle struct {
	locales map[string]map[string]string
	tags    []language.Tag
	matcher language.Matcher
}

//go:embed locales/*.toml
var embeddedCatalogFS embed.FS

var (
	defaultOnce   sync.Once
	defaultBundle *Bundle
)

// Default returns the process-wide embedded catalog bundle, registered with
// x/text/message on first use.
func Default() *Bundle {
	defaultOnce.Do(func() {
		bundle, err := LoadFromFS(embeddedCatalogFS)
		if err != nil {
			panic(err)
		}
		if err := bundle.Register(); err != nil {
			panic(err)
		}
		defaultBundle = bundle
	})
	return defaultBundle
}

// LoadFromFS loads locales/*.toml catalog files from the provided filesystem.
func LoadFromFS(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*.toml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	bundle := &Bundle{locales: map[string]map[string]string{}}
	for _, p := range paths {
		data, err := fs.ReadFile(catalogFS, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if _, err := toml.Decode(string(data), &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := bundle.addFile(p, file); err != nil {
			return nil, err
		}
	}

	base, ok := bundle.locales[BaseLocale]
	if !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	for locale, messages := range bundle.locales {
		for key := range base {
			if _, ok := messages[key]; !ok {
				return nil, fmt.Errorf("locale %s: missing key %q", locale, key)
			}
		}
	}

	bundle.tags = []language.Tag{language.MustParse(BaseLocale)}
	for _, locale := range bundle.Locales() {
		if locale == BaseLocale {
			continue
		}
		bundle.tags = append(bundle.tags, language.MustParse(locale))
	}
	bundle.matcher = language.NewMatcher(bundle.tags)
	return bundle, nil
}

func (b *Bundle) addFile(p string, file catalogFile) error {
	localeFromPath := strings.TrimSuffix(path.Base(p), path.Ext(p))
	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return fmt.Errorf("catalog %s: locale is required", p)
	}
	if locale != localeFromPath {
		return fmt.Errorf("catalog %s: locale %q must match file name %q", p, locale, localeFromPath)
	}
	if _, err := language.Parse(locale); err != nil {
		return fmt.Errorf("catalog %s: %w", p, err)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("catalog %s: messages are required", p)
	}
	messages := make(map[string]string, len(file.Messages))
	for key, value := range file.Messages {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		messages[trimmed] = value
	}
	b.locales[locale] = messages
	return nil
}

// Register registers all catalog messages with x/text/message.
func (b *Bundle) Register() error {
	if b == nil {
		return nil
	}
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		for key, value := range b.locales[locale] {
			if err := message.SetString(tag, key, value); err != nil {
				return fmt.Errorf("register %s/%s: %w", locale, key, err)
			}
		}
	}
	return nil
}

// HasLocale reports whether the locale exists in this bundle.
func (b *Bundle) HasLocale(locale string) bool {
	if b == nil {
		return false
	}
	_, ok := b.locales[strings.TrimSpace(locale)]
	return ok
}

// Locales returns all available locale identifiers.
func (b *Bundle) Locales() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.locales))
	for locale := range b.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Message returns one raw message value with base-locale fallback.
func (b *Bundle) Message(locale string, key string) (string, bool) {
	if b == nil {
		return "", false
	}
	if messages, ok := b.locales[strings.TrimSpace(locale)]; ok {
		if value, ok := messages[key]; ok {
			return value, true
		}
	}
	value, ok := b.locales[BaseLocale][key]
	return value, ok
}

// Printer returns a printer for the supported locale closest to locale.
func (b *Bundle) Printer(locale string) *message.Printer {
	tag := language.MustParse(BaseLocale)
	if requested, err := language.Parse(strings.TrimSpace(locale)); err == nil && b != nil && b.matcher != nil {
		_, index, confidence := b.matcher.Match(requested)
		if confidence != language.No {
			tag = b.tags[index]
		}
	}
	return message.NewPrinter(tag)
}

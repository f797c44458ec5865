// Package i18n renders localized messages from a catalog namespace. The
// "errors" namespace backs client-facing error text.
package i18n

import (
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/careercounsel/cardroom/internal/platform/i18n/catalog"
)

// Namespace is the catalog namespace holding error templates.
const Namespace = "errors"

// Catalog holds the parsed message templates of one locale.
type Catalog struct {
	locale    string
	raw       map[string]string
	templates map[string]*template.Template
}

var (
	errorCatalogsMu sync.Mutex
	errorCatalogs   = map[string]*Catalog{}
)

// GetCatalog returns the error catalog for locale, falling back to the base
// locale. Catalogs are built once per resolved locale.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = i18ncatalog.BaseLocale
	}
	resolved, messages := i18ncatalog.Default().NamespaceMessagesWithFallback(requested, Namespace)

	errorCatalogsMu.Lock()
	defer errorCatalogsMu.Unlock()
	if c, ok := errorCatalogs[resolved]; ok {
		return c
	}
	c := NewCatalog(resolved, messages)
	errorCatalogs[resolved] = c
	return c
}

// NewCatalog parses messages as text/template sources keyed by message id.
// Entries that fail to parse are kept and rendered verbatim.
func NewCatalog(locale string, messages map[string]string) *Catalog {
	c := &Catalog{
		locale:    locale,
		raw:       make(map[string]string, len(messages)),
		templates: make(map[string]*template.Template, len(messages)),
	}
	for key, source := range messages {
		c.raw[key] = source
		if t, err := template.New(key).Option("missingkey=zero").Parse(source); err == nil {
			c.templates[key] = t
		}
	}
	return c
}

// Locale returns the locale the catalog was built for.
func (c *Catalog) Locale() string {
	return c.locale
}

// Has reports whether the catalog carries a message for key.
func (c *Catalog) Has(key string) bool {
	_, ok := c.raw[key]
	return ok
}

// Format renders key with metadata. Unknown keys render as the key itself;
// templates that fail to parse or execute render their source. Missing
// metadata renders empty.
func (c *Catalog) Format(key string, metadata map[string]string) string {
	source, ok := c.raw[key]
	if !ok {
		return key
	}
	t, ok := c.templates[key]
	if !ok {
		return source
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var b strings.Builder
	if err := t.Execute(&b, metadata); err != nil {
		return source
	}
	return b.String()
}

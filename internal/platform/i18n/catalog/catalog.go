// Package catalog loads the locale message catalogs embedded in the binary
// and registers them with golang.org/x/text/message.
//
// Catalogs live at locales/<locale>/<namespace>.yaml and use a flat subset
// of YAML:
//
//	locale: "en-US"
//	namespace: "errors"
//	messages:
//	  "KEY": "value"
package catalog

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BaseLocale is the canonical locale every other locale falls back to.
const BaseLocale = "en-US"

//go:embed locales/*/*.yaml
var embedded embed.FS

var defaultBundle = mustLoadEmbedded()

// Bundle holds messages by locale and namespace. Keys are unique within a
// locale across namespaces so they can share one x/text catalog.
type Bundle struct {
	locales map[string]map[string]map[string]string
}

type catalogFile struct {
	Locale    string
	Namespace string
	Messages  map[string]string
}

// Default returns the embedded bundle. Its messages are registered with
// x/text/message when the package initializes.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded loads the catalogs compiled into this package.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embedded)
}

// LoadFromFS loads every locales/*/*.yaml file in fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	slices.Sort(paths)

	b := &Bundle{locales: map[string]map[string]map[string]string{}}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		file, err := parseCatalogFile(data)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := b.add(p, file); err != nil {
			return nil, err
		}
	}
	if !b.HasLocale(BaseLocale) {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return b, nil
}

func (b *Bundle) add(p string, file catalogFile) error {
	wantLocale := path.Base(path.Dir(p))
	wantNamespace := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if file.Locale != wantLocale {
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", p, file.Locale, wantLocale)
	}
	if file.Namespace != wantNamespace {
		return fmt.Errorf("catalog %s: namespace %q must match file name %q", p, file.Namespace, wantNamespace)
	}

	namespaces, ok := b.locales[file.Locale]
	if !ok {
		namespaces = map[string]map[string]string{}
		b.locales[file.Locale] = namespaces
	}
	if _, exists := namespaces[file.Namespace]; exists {
		return fmt.Errorf("catalog %s: namespace %q already defined for %s", p, file.Namespace, file.Locale)
	}
	for key := range file.Messages {
		for ns, messages := range namespaces {
			if _, dup := messages[key]; dup {
				return fmt.Errorf("catalog %s: key %q already defined in namespace %q", p, key, ns)
			}
		}
	}
	namespaces[file.Namespace] = file.Messages
	return nil
}

// Register installs every message with x/text/message so printers for a
// supported tag translate message keys.
func (b *Bundle) Register() error {
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		for ns, messages := range b.locales[locale] {
			for key, value := range messages {
				if err := message.SetString(tag, key, value); err != nil {
					return fmt.Errorf("register %s %s %q: %w", locale, ns, key, err)
				}
			}
		}
	}
	return nil
}

// HasLocale reports whether the bundle defines locale.
func (b *Bundle) HasLocale(locale string) bool {
	_, ok := b.locales[strings.TrimSpace(locale)]
	return ok
}

// Locales returns the defined locales in sorted order.
func (b *Bundle) Locales() []string {
	return slices.Sorted(maps.Keys(b.locales))
}

// Namespaces returns the namespaces defined for locale in sorted order.
func (b *Bundle) Namespaces(locale string) []string {
	return slices.Sorted(maps.Keys(b.locales[strings.TrimSpace(locale)]))
}

// NamespaceMessages returns a copy of one namespace for an exact locale.
func (b *Bundle) NamespaceMessages(locale, namespace string) map[string]string {
	messages := b.locales[strings.TrimSpace(locale)][strings.TrimSpace(namespace)]
	out := make(map[string]string, len(messages))
	maps.Copy(out, messages)
	return out
}

// NamespaceMessagesWithFallback returns the namespace for locale, or for
// BaseLocale when locale does not define it, along with the locale used.
func (b *Bundle) NamespaceMessagesWithFallback(locale, namespace string) (string, map[string]string) {
	locale = strings.TrimSpace(locale)
	if messages := b.NamespaceMessages(locale, namespace); len(messages) > 0 {
		return locale, messages
	}
	return BaseLocale, b.NamespaceMessages(BaseLocale, namespace)
}

func mustLoadEmbedded() *Bundle {
	b, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	if err := b.Register(); err != nil {
		panic(err)
	}
	return b
}

func parseCatalogFile(data []byte) (catalogFile, error) {
	out := catalogFile{Messages: map[string]string{}}
	inMessages := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "messages:" {
			inMessages = true
			continue
		}
		if header, value, ok := strings.Cut(line, ":"); ok && !inMessages {
			unquoted, err := strconv.Unquote(strings.TrimSpace(value))
			if err != nil {
				return catalogFile{}, fmt.Errorf("parse %s: %w", header, err)
			}
			switch header {
			case "locale":
				out.Locale = unquoted
			case "namespace":
				out.Namespace = unquoted
			default:
				return catalogFile{}, fmt.Errorf("unexpected header %q", header)
			}
			continue
		}
		if !inMessages {
			return catalogFile{}, fmt.Errorf("unexpected line %q", line)
		}
		key, value, err := parseMessageEntry(line)
		if err != nil {
			return catalogFile{}, fmt.Errorf("parse message entry %q: %w", line, err)
		}
		out.Messages[key] = value
	}
	if err := scanner.Err(); err != nil {
		return catalogFile{}, err
	}

	switch {
	case out.Locale == "":
		return catalogFile{}, fmt.Errorf("missing locale")
	case out.Namespace == "":
		return catalogFile{}, fmt.Errorf("missing namespace")
	case len(out.Messages) == 0:
		return catalogFile{}, fmt.Errorf("missing messages")
	}
	return out, nil
}

// parseMessageEntry splits `"key": "value"` where both sides are Go-quoted.
func parseMessageEntry(line string) (string, string, error) {
	if !strings.HasPrefix(line, `"`) {
		return "", "", fmt.Errorf("expected quoted key")
	}
	keyToken, err := strconv.QuotedPrefix(line)
	if err != nil {
		return "", "", fmt.Errorf("unterminated key")
	}
	key, err := strconv.Unquote(keyToken)
	if err != nil {
		return "", "", fmt.Errorf("unquote key: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		return "", "", fmt.Errorf("message key cannot be blank")
	}
	rest, ok := strings.CutPrefix(strings.TrimSpace(line[len(keyToken):]), ":")
	if !ok {
		return "", "", fmt.Errorf("missing ':' separator")
	}
	value, err := strconv.Unquote(strings.TrimSpace(rest))
	if err != nil {
		return "", "", fmt.Errorf("unquote value: %w", err)
	}
	return key, value, nil
}

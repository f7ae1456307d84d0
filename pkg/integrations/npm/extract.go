package npm

import (
	"regexp"
	"strings"

	"github.com/matzehuels/pkgintel/pkg/integrations"
)

// Person is an author, maintainer or contributor entry.
type Person struct {
	Name  string
	Email string
	URL   string
}

var personRe = regexp.MustCompile(`^([^<(]*?)\s*(?:<([^>]*)>)?\s*(?:\(([^)]*)\))?\s*$`)

// ParsePerson reads a person in any registry shape: an object with
// name/email/url, or a "Name <email> (url)" string where every part is
// optional. Returns nil when nothing usable is present.
func ParsePerson(v any) *Person {
	switch p := v.(type) {
	case string:
		s := strings.TrimSpace(p)
		if s == "" {
			return nil
		}
		m := personRe.FindStringSubmatch(s)
		if m == nil {
			return &Person{Name: s}
		}
		person := &Person{
			Name:  strings.TrimSpace(m[1]),
			Email: strings.TrimSpace(m[2]),
			URL:   strings.TrimSpace(m[3]),
		}
		if *person == (Person{}) {
			return nil
		}
		return person
	case map[string]any:
		person := &Person{
			Name:  extractString(p["name"]),
			Email: extractString(p["email"]),
			URL:   coalesceString(extractString(p["url"]), extractString(p["web"])),
		}
		if *person == (Person{}) {
			return nil
		}
		return person
	}
	return nil
}

// ParsePeople reads a list of persons, skipping unusable entries.
func ParsePeople(v any) []Person {
	var out []Person
	switch list := v.(type) {
	case []any:
		for _, item := range list {
			if p := ParsePerson(item); p != nil {
				out = append(out, *p)
			}
		}
	default:
		if p := ParsePerson(v); p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// ExtractLicense reads a license given as a string, a {type} object or a
// list of either. Lists are joined with " OR ".
func ExtractLicense(v any) string {
	switch l := v.(type) {
	case string:
		return l
	case map[string]any:
		return extractString(l["type"])
	case []any:
		var licenses []string
		for _, item := range l {
			if s := ExtractLicense(item); s != "" {
				licenses = append(licenses, s)
			}
		}
		return strings.Join(licenses, " OR ")
	}
	return ""
}

// ExtractRepoURL returns the normalized repository URL from the first
// candidate that has one.
func ExtractRepoURL(candidates ...any) string {
	for _, repo := range candidates {
		switch r := repo.(type) {
		case string:
			if r != "" {
				return integrations.NormalizeRepoURL(r)
			}
		case map[string]any:
			if u := extractString(r["url"]); u != "" {
				return integrations.NormalizeRepoURL(u)
			}
		case []any:
			if len(r) > 0 {
				if u := ExtractRepoURL(r[0]); u != "" {
					return u
				}
			}
		}
	}
	return ""
}

// ExtractKeywords reads keywords given as a list or a comma/space
// separated string.
func ExtractKeywords(v any) []string {
	switch k := v.(type) {
	case []any:
		keywords := make([]string, 0, len(k))
		for _, item := range k {
			if s, ok := item.(string); ok && s != "" {
				keywords = append(keywords, s)
			}
		}
		return keywords
	case string:
		return strings.FieldsFunc(k, func(r rune) bool { return r == ',' || r == ' ' })
	}
	return nil
}

// ExtractDeprecated returns the deprecation notice. Some old documents
// use a bare boolean.
func ExtractDeprecated(v any) string {
	switch d := v.(type) {
	case string:
		return d
	case bool:
		if d {
			return "deprecated"
		}
	}
	return ""
}

// ExtractString returns v when it is a string, or the first string of a list.
func ExtractString(v any) string {
	return extractString(v)
}

func extractString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if arr, ok := v.([]any); ok && len(arr) > 0 {
		if s, ok := arr[0].(string); ok {
			return s
		}
	}
	return ""
}

// Namespace returns the scope of a scoped name without the "@", or "".
func Namespace(name string) string {
	if scope, _, ok := strings.Cut(name, "/"); ok && strings.HasPrefix(scope, "@") {
		return strings.TrimPrefix(scope, "@")
	}
	return ""
}

// BaseName returns the unscoped part of a package name.
func BaseName(name string) string {
	if _, base, ok := strings.Cut(name, "/"); ok && strings.HasPrefix(name, "@") {
		return base
	}
	return name
}

func coalesceString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

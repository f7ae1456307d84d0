package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// Search bounds enforced at the adapter boundary.
const (
	MinSearchLimit = 1
	MaxSearchLimit = 100
	maxQueryLength = 256
)

// ValidatePackageName validates a package name for safety.
// It rejects names that could be used for path traversal or argument
// injection into a package manager command line.
//
//   - No empty names
//   - No control characters or null bytes
//   - No path traversal sequences (.., //, \)
//   - No leading dash (would be read as a flag)
//   - Maximum length of 256 characters
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPackage, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidPackage, "package name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPackage, "package name contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidPackage, "package name contains invalid characters: %q", pattern)
		}
	}

	if strings.HasPrefix(name, "-") {
		return New(ErrCodeInvalidPackage, "package name cannot start with '-'")
	}

	return nil
}

// npmPackageNameRegex matches valid npm package names.
var npmPackageNameRegex = regexp.MustCompile(`^(@[a-z0-9-~][a-z0-9-._~]*/)?[a-z0-9-~][a-z0-9-._~]*$`)

// ValidateNpmPackageName validates an npm package name, scoped or not.
func ValidateNpmPackageName(name string) error {
	if err := ValidatePackageName(name); err != nil {
		return err
	}

	if strings.ToLower(name) != name {
		return New(ErrCodeInvalidPackage, "npm package names must be lowercase: %q", name)
	}

	if !npmPackageNameRegex.MatchString(name) {
		return New(ErrCodeInvalidPackage, "invalid npm package name: %q", name)
	}

	return nil
}

// ValidatePackageSpec validates an install argument such as "lodash",
// "lodash@4.17.21" or "@types/node@^20". The name part must be a valid npm
// name; the version part may be any range without whitespace.
func ValidatePackageSpec(spec string) error {
	name, version := SplitPackageSpec(spec)
	if err := ValidateNpmPackageName(name); err != nil {
		return err
	}
	if strings.ContainsFunc(version, unicode.IsSpace) {
		return New(ErrCodeInvalidPackage, "version in %q cannot contain whitespace", spec)
	}
	return nil
}

// SplitPackageSpec splits "name@version" into its parts. The leading "@"
// of a scoped name is not treated as a separator.
func SplitPackageSpec(spec string) (name, version string) {
	at := strings.LastIndex(spec, "@")
	if at <= 0 {
		return spec, ""
	}
	return spec[:at], spec[at+1:]
}

// ValidateQuery validates a registry search query.
func ValidateQuery(query string) error {
	q := strings.TrimSpace(query)
	if q == "" {
		return New(ErrCodeInvalidInput, "search query cannot be empty")
	}
	if len(q) > maxQueryLength {
		return New(ErrCodeInvalidInput, "search query too long (max %d characters)", maxQueryLength)
	}
	for _, r := range q {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "search query contains invalid control characters")
		}
	}
	return nil
}

// ValidatePagination validates search limit and offset.
func ValidatePagination(limit, offset int) error {
	if limit < MinSearchLimit || limit > MaxSearchLimit {
		return New(ErrCodeInvalidInput, "limit must be between %d and %d, got %d", MinSearchLimit, MaxSearchLimit, limit)
	}
	if offset < 0 {
		return New(ErrCodeInvalidInput, "offset cannot be negative, got %d", offset)
	}
	return nil
}

// ValidatePath validates a project directory argument.
// Absolute paths are allowed; NUL and control characters are not.
func ValidatePath(path string) error {
	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidInput, "path too long (max %d characters)", maxPathLength)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "path contains invalid characters")
		}
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

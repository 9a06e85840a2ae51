package domain

import "strings"

// SanitizePackageName normalizes an Android application ID to the charset
// the packaging toolchain accepts: lowercase ASCII letters, digits, dots and
// underscores. Everything else is stripped. An empty result falls back to
// the default package name.
func SanitizePackageName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return DefaultConfig().PackageName
	}
	return b.String()
}

// RepoNameForApp derives the remote repository name for an app: lowercased
// display name with every non-alphanumeric character replaced by '-',
// suffixed with "-studio".
func RepoNameForApp(appName string) string {
	if strings.TrimSpace(appName) == "" {
		appName = DefaultConfig().AppName
	}
	var b strings.Builder
	for _, r := range strings.ToLower(appName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String() + "-studio"
}

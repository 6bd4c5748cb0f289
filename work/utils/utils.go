package utils

import (
	"net/url"
	"strings"
)

// LogURL returns the URL as-is or an obfuscated version, depending on the
// obfuscation flag. Every log line that carries an upstream or proxied URL
// goes through here so credentials embedded in query strings never reach the
// operator logs unless explicitly allowed.
func LogURL(obfuscate bool, url string) string {
	if obfuscate {
		return ObfuscateURL(url)
	}
	return url
}

// SanitizeChannelName converts a display channel name into a URL-safe
// identifier used in route segments and playlist entries. Characters with
// special meaning in URLs or M3U attribute lists collapse to underscores.
func SanitizeChannelName(name string) string {
	sanitized := name
	replacements := map[string]string{
		" ":  "_",
		",":  "_",
		"\"": "",
		"'":  "",
		"/":  "_",
		"\\": "_",
		"?":  "_",
		"&":  "_",
		"=":  "_",
		":":  "_",
		";":  "_",
		"|":  "_",
		"*":  "_",
		"<":  "_",
		">":  "_",
	}

	for old, repl := range replacements {
		sanitized = strings.ReplaceAll(sanitized, old, repl)
	}

	// collapse runs of underscores left by adjacent replacements
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}

	return strings.Trim(sanitized, "_")
}

// ObfuscateURL masks the path, query and fragment of a URL, keeping only
// scheme and host. Unparseable input is masked entirely.
func ObfuscateURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return "***OBFUSCATED***"
	}

	result := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		result += "/***"
	}
	if u.RawQuery != "" {
		result += "?***"
	}
	if u.Fragment != "" {
		result += "#***"
	}

	return result
}

package logging

import "regexp"

const redacted = "[REDACTED]"

// redactRule replaces matches of re with repl. repl may reference groups.
type redactRule struct {
	name string
	re   *regexp.Regexp
	repl string
}

// Sanitizer redacts credentials from log output. Provider errors and store
// DSNs are the usual carriers.
type Sanitizer struct {
	rules []redactRule
}

var defaultRules = []redactRule{
	// keep scheme and user, drop the password
	{"dsn", regexp.MustCompile(`(?i)((?:mongodb(?:\+srv)?|postgres(?:ql)?|rediss?)://[^:/@\s]+:)[^@\s]+@`), "${1}" + redacted + "@"},
	{"openai", regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`), redacted},
	{"google", regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`), redacted},
	{"vision-key", regexp.MustCompile(`(?i)\bkey\s+[a-f0-9]{32}\b`), redacted},
	{"aws-access-key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`), redacted},
	{"aws-secret", regexp.MustCompile(`(?i)aws[_-]?secret[_-]?access[_-]?key["'\s:=]+[A-Za-z0-9/+=]{40}`), redacted},
	{"s3-signature", regexp.MustCompile(`(?i)(X-Amz-Signature=)[a-f0-9]{64}`), "${1}" + redacted},
	{"bearer", regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`), redacted},
	{"api-key", regexp.MustCompile(`(?i)api[_-]?key["'\s:=]+[a-zA-Z0-9_-]{20,}`), redacted},
	{"secret", regexp.MustCompile(`(?i)secret["'\s:=]+[a-zA-Z0-9_-]{20,}`), redacted},
	{"password", regexp.MustCompile(`(?i)password["'\s:=]+[^\s"']{8,}`), redacted},
}

// NewSanitizer returns a sanitizer with the built-in rules.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{rules: defaultRules}
}

// Sanitize applies every rule in order.
func (s *Sanitizer) Sanitize(input string) string {
	for _, r := range s.rules {
		input = r.re.ReplaceAllString(input, r.repl)
	}
	return input
}

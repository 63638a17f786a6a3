package security

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

// FieldKind selects the acceptance rule applied to a raw input.
type FieldKind string

const (
	FieldUsername    FieldKind = "username"
	FieldEmail       FieldKind = "email"
	FieldPassword    FieldKind = "password"
	FieldName        FieldKind = "name"
	FieldTitle       FieldKind = "title"
	FieldDescription FieldKind = "description"
)

const (
	ReasonRequired  = "input is required"
	ReasonInjection = "input contains potentially malicious content"
	ReasonSQL       = "input contains potentially dangerous SQL content"
)

const passwordSymbols = "@$!%*?&"

var (
	usernamePattern    = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	emailPattern       = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	passwordPattern    = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]{8,50}$`)
	namePattern        = regexp.MustCompile(`^[a-zA-Z\s]{2,50}$`)
	titlePattern       = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.,!?]{1,100}$`)
	descriptionPattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.,!?\n\r]{0,500}$`)

	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?is)<iframe[^>]*>.*?</iframe>`),
		regexp.MustCompile(`(?is)<object[^>]*>.*?</object>`),
		regexp.MustCompile(`(?is)<embed[^>]*>.*?</embed>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)vbscript:`),
		regexp.MustCompile(`(?i)onload\s*=`),
		regexp.MustCompile(`(?i)onclick\s*=`),
		regexp.MustCompile(`(?i)onerror\s*=`),
	}
	tagPattern = regexp.MustCompile(`<[^>]*>`)

	sqlMarkers = []string{
		"union", "select", "insert", "update", "delete", "drop", "create", "alter",
		"exec", "execute", "sp_", "xp_", "'-", `"`, ";", "--", "/*", "*/",
	}

	entityEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#x27;",
		"/", "&#x2F;",
	)
)

var formatReasons = map[FieldKind]string{
	FieldUsername:    "username must be 3-20 characters of letters, digits or underscore",
	FieldEmail:       "email must be a valid address",
	FieldPassword:    "password must be 8-50 characters with uppercase, lowercase, digit and one of " + passwordSymbols,
	FieldName:        "name must be 2-50 letters or spaces",
	FieldTitle:       "title must be 1-100 characters of letters, digits, spaces or - _ . , ! ?",
	FieldDescription: "description must be at most 500 characters of letters, digits, spaces or - _ . , ! ?",
}

// Result is the outcome of a validation. Reason is empty when Valid.
type Result struct {
	Valid  bool
	Reason string
}

func valid() Result { return Result{Valid: true} }

func invalid(reason string) Result { return Result{Reason: reason} }

// InputValidator applies allowlist rules and markup/SQL denylists to raw strings.
// It holds no state and is safe for concurrent use.
type InputValidator struct{}

// NewInputValidator returns a validator using the built-in rule set.
func NewInputValidator() *InputValidator {
	return &InputValidator{}
}

// Classify checks input against the rule for kind. Empty input is always invalid.
func (v *InputValidator) Classify(input string, kind FieldKind) Result {
	if input == "" {
		return invalid(ReasonRequired)
	}

	var ok bool
	switch kind {
	case FieldUsername:
		ok = usernamePattern.MatchString(input)
	case FieldEmail:
		ok = emailPattern.MatchString(input)
	case FieldPassword:
		ok = isStrongPassword(input)
	case FieldName:
		ok = namePattern.MatchString(input)
	case FieldTitle:
		ok = titlePattern.MatchString(input)
	case FieldDescription:
		ok = descriptionPattern.MatchString(input)
	default:
		return invalid("unsupported field kind " + string(kind))
	}

	if !ok {
		return invalid(formatReasons[kind])
	}
	return valid()
}

// ContainsInjectionMarkers reports script, event-handler or embedded markup fragments.
func (v *InputValidator) ContainsInjectionMarkers(input string) bool {
	for _, p := range injectionPatterns {
		if p.MatchString(input) {
			return true
		}
	}
	return false
}

// ContainsSQLMarkers is a keyword heuristic. Persistence must still use bound parameters.
func (v *InputValidator) ContainsSQLMarkers(input string) bool {
	lowered := strings.ToLower(input)
	for _, marker := range sqlMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// Sanitize strips injection markers and tags, then entity-escapes & < > " ' and /.
// Entities are decoded first, so Sanitize(Sanitize(x)) == Sanitize(x).
func (v *InputValidator) Sanitize(input string) string {
	text := html.UnescapeString(strings.TrimSpace(input))
	for {
		stripped := text
		for _, p := range injectionPatterns {
			stripped = p.ReplaceAllString(stripped, "")
		}
		stripped = strings.TrimSpace(tagPattern.ReplaceAllString(stripped, ""))
		if stripped == text {
			break
		}
		text = stripped
	}
	return entityEscaper.Replace(text)
}

// ValidateSecurely runs the injection check, the SQL check and Classify, stopping at the first failure.
func (v *InputValidator) ValidateSecurely(input string, kind FieldKind) Result {
	if input == "" {
		return invalid(ReasonRequired)
	}
	if v.ContainsInjectionMarkers(input) {
		return invalid(ReasonInjection)
	}
	if v.ContainsSQLMarkers(input) {
		return invalid(ReasonSQL)
	}
	return v.Classify(input, kind)
}

func isStrongPassword(input string) bool {
	if !passwordPattern.MatchString(input) {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range input {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

package logger

import (
	"encoding/json"
	"mime"
	nethttp "net/http"
	"net/url"
	"strings"
)

const (
	// DefaultMaskValue replaces sensitive values in log output
	DefaultMaskValue = "***"

	// DefaultMaxDepth bounds recursion into nested maps and slices
	DefaultMaxDepth = 8
)

// FilterConfig defines the configuration for sensitive data filtering
type FilterConfig struct {
	// SensitiveFields contains key fragments (case-insensitive) whose values are masked
	SensitiveFields []string
	// SensitiveQueryParams contains exact parameter names (case-insensitive) masked in
	// URL queries, fragments and form bodies in addition to SensitiveFields
	SensitiveQueryParams []string
	// MaskValue is the value used to replace sensitive data (default: "***")
	MaskValue string
}

// DefaultFilterConfig returns the fields an identity client must never log in clear.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd",
			"secret", "client_secret",
			"token", "access_token", "refresh_token", "id_token",
			"authorization", "proxy-authorization",
			"cookie",
			"assertion", "code_verifier",
			"api_key", "apikey",
			"credential",
		},
		SensitiveQueryParams: []string{"code", "device_code", "user_code"},
		MaskValue:            DefaultMaskValue,
	}
}

// SensitiveDataFilter masks values whose key looks sensitive
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a new filter with the given configuration
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString filters sensitive data from string values.
// URL values are always passed through FilterURL, whatever their key.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if f.isSensitiveField(key) {
		return f.maskString(value)
	}
	if isURL(value) {
		return f.FilterURL(value)
	}
	return value
}

// FilterURL masks the user info password and the values of sensitive query and
// fragment parameters. Parameter order and the rest of the URL are kept.
func (f *SensitiveDataFilter) FilterURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return f.config.MaskValue
	}

	var b strings.Builder
	if parsed.Scheme != "" {
		b.WriteString(parsed.Scheme)
		b.WriteString("://")
	}
	if parsed.User != nil {
		b.WriteString(parsed.User.Username())
		if _, hasPassword := parsed.User.Password(); hasPassword {
			b.WriteByte(':')
			b.WriteString(f.config.MaskValue)
		}
		b.WriteByte('@')
	}
	b.WriteString(parsed.Host)
	b.WriteString(parsed.EscapedPath())
	if parsed.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(f.filterQuery(parsed.RawQuery))
	}
	if parsed.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(f.filterQuery(parsed.EscapedFragment()))
	}
	return b.String()
}

// FilterBody masks sensitive fields in form-encoded and JSON bodies.
// Other content types, and bodies that fail to parse, are returned unchanged.
func (f *SensitiveDataFilter) FilterBody(contentType string, body []byte) []byte {
	if len(body) == 0 {
		return body
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body
	}

	switch {
	case mediaType == "application/x-www-form-urlencoded":
		return []byte(f.filterQuery(string(body)))
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return f.filterJSON(body)
	}
	return body
}

func (f *SensitiveDataFilter) filterJSON(body []byte) []byte {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return body
	}
	if !f.containsSensitiveKey(decoded, DefaultMaxDepth) {
		return body
	}
	masked, err := json.Marshal(f.filterValue("", decoded, DefaultMaxDepth))
	if err != nil {
		return []byte(f.config.MaskValue)
	}
	return masked
}

func (f *SensitiveDataFilter) containsSensitiveKey(value any, depth int) bool {
	if depth <= 0 {
		return false
	}
	switch v := value.(type) {
	case map[string]any:
		for k, nested := range v {
			if f.isSensitiveField(k) || f.containsSensitiveKey(nested, depth-1) {
				return true
			}
		}
	case []any:
		for _, nested := range v {
			if f.containsSensitiveKey(nested, depth-1) {
				return true
			}
		}
	}
	return false
}

// filterQuery masks values in an encoded "k=v&k2=v2" string without re-encoding
// the parameters it leaves alone.
func (f *SensitiveDataFilter) filterQuery(raw string) string {
	parts := strings.Split(raw, "&")
	for i, part := range parts {
		rawKey, _, hasValue := strings.Cut(part, "=")
		if !hasValue {
			continue
		}
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			key = rawKey
		}
		if f.isSensitiveParam(key) {
			parts[i] = rawKey + "=" + f.config.MaskValue
		}
	}
	return strings.Join(parts, "&")
}

func (f *SensitiveDataFilter) isSensitiveParam(name string) bool {
	if f.isSensitiveField(name) {
		return true
	}
	for _, param := range f.config.SensitiveQueryParams {
		if strings.EqualFold(name, param) {
			return true
		}
	}
	return false
}

func isURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}

// FilterValue filters sensitive data from structured values.
// Header maps and string maps are filtered per entry; other values pass through.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	return f.filterValue(key, value, DefaultMaxDepth)
}

// FilterFields filters a map of fields for sensitive data
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

func (f *SensitiveDataFilter) filterValue(key string, value any, depth int) any {
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}
	if value == nil || depth <= 0 {
		return value
	}

	switch v := value.(type) {
	case string:
		return v
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = f.FilterString(k, s)
		}
		return out
	case nethttp.Header:
		return f.filterMultiMap(v)
	case map[string][]string:
		return f.filterMultiMap(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, nested := range v {
			out[k] = f.filterValue(k, nested, depth-1)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, nested := range v {
			out[i] = f.filterValue(key, nested, depth-1)
		}
		return out
	}
	return value
}

func (f *SensitiveDataFilter) filterMultiMap(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, values := range m {
		if f.isSensitiveField(k) {
			masked := make([]string, len(values))
			for i := range values {
				masked[i] = f.config.MaskValue
			}
			out[k] = masked
			continue
		}
		out[k] = append([]string(nil), values...)
	}
	return out
}

func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, sensitive := range f.config.SensitiveFields {
		if strings.Contains(lower, strings.ToLower(sensitive)) {
			return true
		}
	}
	return false
}

func (f *SensitiveDataFilter) maskString(value string) string {
	if value == "" {
		return value
	}
	if isURL(value) {
		return f.FilterURL(value)
	}
	return f.config.MaskValue
}

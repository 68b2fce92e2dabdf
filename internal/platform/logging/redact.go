package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

var (
	jwtPattern    = regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`)
	bearerPattern = regexp.MustCompile(`(?i)^(bearer|basic)\s+.+$`)
	// credentialURLPattern matches redis or http URLs with a user:password part.
	credentialURLPattern = regexp.MustCompile(`^(rediss?|https?)://[^:@/]*:[^@/]+@`)
)

// redactedFields are attribute keys whose values never reach a log sink.
var redactedFields = []string{
	"password",
	"redis_password",
	"token",
	"access_token",
	"api_key",
	"authorization",
	"cookie",
	"credentials",
}

// DefaultRedactOptions returns the masq options applied to every json and
// text handler built by this package.
func DefaultRedactOptions() []masq.Option {
	opts := make([]masq.Option, 0, len(redactedFields)+4)
	for _, name := range redactedFields {
		opts = append(opts, masq.WithFieldName(name))
	}

	return append(opts,
		masq.WithFieldPrefix("secret"),
		masq.WithRegex(jwtPattern),
		masq.WithRegex(bearerPattern),
		masq.WithRegex(credentialURLPattern),
	)
}

// NewReplaceAttr returns a slog ReplaceAttr func redacting what
// DefaultRedactOptions matches plus opts.
func NewReplaceAttr(opts ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(append(DefaultRedactOptions(), opts...)...)
}

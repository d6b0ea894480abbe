package utils

import (
	"strings"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RecoveryWithZap is ginzap's panic recovery with Authorization and Cookie headers blanked out of
// the request dump it logs.
func RecoveryWithZap(logger *zap.Logger, stack bool) gin.HandlerFunc {
	return ginzap.RecoveryWithZap(RedactRequests(logger), stack)
}

// RedactRequests returns a logger that blanks credential headers in any "request" field.
func RedactRequests(logger *zap.Logger) *zap.Logger {
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return redactingCore{Core: c}
	}))
}

type redactingCore struct {
	zapcore.Core
}

func (r redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return redactingCore{Core: r.Core.With(redactFields(fields))}
}

func (r redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if r.Enabled(ent.Level) {
		return ce.AddCore(ent, r)
	}
	return ce
}

func (r redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return r.Core.Write(ent, redactFields(fields))
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	var out []zapcore.Field
	for i, f := range fields {
		if f.Key != "request" {
			continue
		}
		var redacted zapcore.Field
		switch f.Type {
		case zapcore.StringType:
			redacted = zap.String(f.Key, string(redactAuthorization([]byte(f.String))))
		case zapcore.ByteStringType:
			b, _ := f.Interface.([]byte)
			redacted = zap.ByteString(f.Key, redactAuthorization(b))
		default:
			continue
		}
		if out == nil {
			out = append([]zapcore.Field(nil), fields...)
		}
		out[i] = redacted
	}
	if out == nil {
		return fields
	}
	return out
}

func redactAuthorization(dump []byte) []byte {
	lines := strings.Split(string(dump), "\r\n")
	for i, line := range lines {
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "authorization:") || strings.HasPrefix(lower, "cookie:") {
			lines[i] = line[:strings.Index(line, ":")] + ": *"
		}
	}
	return []byte(strings.Join(lines, "\r\n"))
}

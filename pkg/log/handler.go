package log

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

const (
	// ErrAttrKey is the field an error value is logged under.
	ErrAttrKey = "error"
)

// appendFields copies slog-style key/value pairs onto a zerolog event. An error
// found in key position is logged under ErrAttrKey together with its stack
// trace and hints.
func appendFields(e *zerolog.Event, fields []any) *zerolog.Event {
	for i := 0; i < len(fields); i++ {
		if err, ok := fields[i].(error); ok {
			e = appendError(e, ErrAttrKey, err)
			continue
		}
		if i+1 >= len(fields) {
			e = e.Interface("!BADKEY", fields[i])
			break
		}
		key := fmt.Sprintf("%v", fields[i])
		e = appendValue(e, key, fields[i+1])
		i++
	}
	return e
}

func appendContext(c zerolog.Context, fields []any) zerolog.Context {
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		switch v := fields[i+1].(type) {
		case error:
			c = c.Str(key, v.Error())
		default:
			c = c.Interface(key, v)
		}
	}
	return c
}

func appendValue(e *zerolog.Event, key string, value any) *zerolog.Event {
	switch v := value.(type) {
	case error:
		return appendError(e, key, v)
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case float64:
		return e.Float64(key, v)
	case bool:
		return e.Bool(key, v)
	case []string:
		return e.Strs(key, v)
	case zerolog.LogObjectMarshaler:
		return e.Object(key, v)
	default:
		return e.Interface(key, v)
	}
}

func appendError(e *zerolog.Event, key string, err error) *zerolog.Event {
	e = e.Str(key, err.Error())
	if st := extractStacktrace(err); st != "" {
		e = e.Str(StacktraceKey, st)
	}
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		e = e.Strs(SuggestionKey, hints)
	}
	return e
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

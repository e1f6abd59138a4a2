package sl

import "log/slog"

// Err wraps err as a slog attribute under the "error" key.  A nil error
// yields an empty string value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

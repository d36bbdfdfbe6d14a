package logger

import "log/slog"

// Err returns the conventional "error" attribute for a log record.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

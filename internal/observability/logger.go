package observability

import (
	"log/slog"
	"os"
	"strings"
)

// SetupLogger configures a JSON slog logger tagged with service/env fields,
// matching the teacher's SetupLogger shape.
func SetupLogger(serviceName, appEnv string) *slog.Logger {
	opts := &slog.HandlerOptions{}
	if strings.ToLower(appEnv) != "production" {
		opts.Level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(h).With(
		slog.String("service", serviceName),
		slog.String("env", appEnv),
	)
}

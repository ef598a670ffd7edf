package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentLogger derives a child of the global logger tagged with app and
// component. Call it after logging.Configure so the child inherits the
// configured writer and level.
func ComponentLogger(app, component string) zerolog.Logger {
	return log.Logger.With().Str("app", app).Str("component", component).Logger()
}

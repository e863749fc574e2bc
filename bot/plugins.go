package bot

import (
	"log/slog"

	"github.com/wwared/boton/plugin"
	"github.com/wwared/boton/plugin/echo"
	"github.com/wwared/boton/plugin/script"
	"github.com/wwared/boton/plugin/weather"
)

// Plugins returns the table of every plugin the bot knows, in start order.
// Only weather is enabled by default; the others run when a server lists them.
func Plugins(dataDir string, logger *slog.Logger) []plugin.Kind {
	return []plugin.Kind{
		weather.Kind(dataDir, logger),
		echo.Kind(logger),
		script.Kind(logger),
	}
}

package mylog

import (
	"context"
	"io"
	"log/slog"
	"os"

	"procscribe/app/config"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"
)

// Preinit installs a console logger so that config loading errors are visible.
// Writes go to stderr: stdout is reserved for the MCP stdio transport.
func Preinit() {
	slog.SetDefault(slog.New(consoleHandler(os.Stderr)))
}

func Init(cfg *config.Config) error {
	router := slogmulti.Router()

	router = router.Add(consoleHandler(os.Stderr))

	if cfg.Log.Telegram.Token != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     cfg.Log.Telegram.Token,
				Username:  cfg.Log.Telegram.ChatID,
				AddSource: true,
			}.NewTelegramHandler(),
			telegramFilter,
		)
	}

	slog.SetDefault(slog.New(router.Handler()))

	return nil
}

func consoleHandler(w io.Writer) slog.Handler {
	return console.NewHandler(w, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})
}

// telegramFilter passes errors and records explicitly tagged with telegram=true.
func telegramFilter(_ context.Context, r slog.Record) bool {
	hasTelegram := false

	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "telegram" {
			hasTelegram = true
			return false
		}

		return true
	})

	return r.Level == slog.LevelError || hasTelegram
}

package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log общий логгер. До Init пишет в stderr с уровнем Info, чтобы пакеты и тесты
// могли логировать без инициализации.
var Log = logrus.New()

// Init инициализирует структурированный логгер.
func Init(level string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	// Используем JSON формат для production, text для development
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter устанавливает текстовый формат логов (для development).
func SetTextFormatter() {
	if Log != nil {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

// Discard глушит вывод; используется в тестах.
func Discard() {
	Log.SetOutput(io.Discard)
}

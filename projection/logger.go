package projection

import "log/slog"

// SlogLogger адаптирует log/slog к Logger. Учитель не тянет ни одну
// сторонюю библиотеку логирования (zap/zerolog) ни в одном файле корпуса —
// его примеры вызывают log.Printf вручную, поэтому здесь естественный выбор
// остается на стандартной библиотеке; slog — минимальная структурированная
// надстройка над ней, не отдельная зависимость.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger оборачивает *slog.Logger. nil означает slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Warn(msg string, kv ...any) {
	l.logger.Warn(msg, kv...)
}

func (l *SlogLogger) Error(msg string, kv ...any) {
	l.logger.Error(msg, kv...)
}

// NopLogger отбрасывает все записи; удобен для тестов.
type NopLogger struct{}

func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

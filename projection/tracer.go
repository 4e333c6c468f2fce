package projection

import "context"

// Tracer — минимальный контракт инструментирования операций репозитория,
// внешняя зависимость ядра (Non-goal §1): сама проекция ничего не знает про
// OpenTelemetry, только вызывает fn внутри именованного span'а. TraceSave
// оборачивает запись одной версии, TraceResolve — разрешение версий проекции
// (C7), обе точки вызова фигурируют в SPEC_FULL §6.
type Tracer interface {
	TraceSave(ctx context.Context, projectionName string, fn func(context.Context) error) error
	TraceResolve(ctx context.Context, projectionName string, fn func(context.Context) error) error
}

// NopTracer не инструментирует ничего; значение по умолчанию для Repository,
// пока вызывающий не подключит WithTracer.
type NopTracer struct{}

func (NopTracer) TraceSave(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

func (NopTracer) TraceResolve(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

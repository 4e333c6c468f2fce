package projection

import (
	"fmt"
	"sync"
)

// Folder свёртывает одно событие в состояние проекции. Заменяет динамическую
// диспетчеризацию по рефлексии реестром, построенным на старте процесса
// (SPEC_FULL §4.9) — та же идея, что у ProjectionBuilder.OnEvent фреймворка,
// где обработчики регистрируются по типу события в обычную map.
type Folder func(state any, event Event) (any, error)

// IDMapper возвращает набор идентификаторов проекций, на которые проецируется
// событие (может быть пустым, одним или многими).
type IDMapper func(event Event) ([]string, error)

// Definition — определение одной проекции: имя, функция свёртки, способ
// получить идентификаторы из события и нулевое состояние (Zero вызывается
// при чтении без снапшота, поэтому должен быть задан).
type Definition struct {
	Name Name
	Zero func() any
	Fold Folder
	// Serialize/Deserialize переводят состояние проекции в байты снапшота и
	// обратно. Формат сериализации остается внешним контрактом (Non-goal §1);
	// ядро только вызывает эти функции, не выбирает кодек.
	Serialize   func(any) ([]byte, error)
	Deserialize func([]byte) (any, error)
	MapEvent    IDMapper
	Snapshots   bool // false для проекций, которые явно не хотят снапшотов
}

// FolderRegistry хранит определения проекций, зарегистрированные при старте.
type FolderRegistry struct {
	mu   sync.RWMutex
	defs map[Name]Definition
}

// NewFolderRegistry создает пустой реестр.
func NewFolderRegistry() *FolderRegistry {
	return &FolderRegistry{defs: make(map[Name]Definition)}
}

// Register регистрирует определение проекции. Повторная регистрация того же
// имени — ошибка конфигурации, а не поведение времени выполнения.
func (r *FolderRegistry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("projection definition must have a name")
	}
	if def.Fold == nil {
		return fmt.Errorf("projection %s must provide a fold function", def.Name)
	}
	if def.MapEvent == nil {
		return fmt.Errorf("projection %s must provide an id mapper", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("projection %s already registered", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Get возвращает определение проекции по имени.
func (r *FolderRegistry) Get(name Name) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// GetProjectionIDs вычисляет набор id проекций, затрагиваемых событием, через
// IDMapper определения с заданным именем (C8 fan-out write).
func (r *FolderRegistry) GetProjectionIDs(name Name, event Event) ([]string, error) {
	def, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("projection %s not registered", name)
	}
	return def.MapEvent(event)
}

package projection

import (
	"reflect"
	"sync"
)

// Hasher — стабильный контент-хеш типа проекции (значение для Version.Hash),
// по которому обнаруживаются изменения схемы; ни резолвер, ни репозиторий
// этого пакета его не вызывают. Внешняя зависимость
// ядра (Non-goal §1): конкретные реализации живут за пределами пакета.
type Hasher interface {
	Hash(projectionType any) (string, error)
}

// ContractIDResolver (C1) выводит стабильное имя проекции из её Go-типа и
// кеширует результат — вывод имени — рефлексия, которую достаточно сделать
// один раз на тип.
type ContractIDResolver struct {
	mu     sync.RWMutex
	cache  map[reflect.Type]Name
	naming func(reflect.Type) string
}

// NewContractIDResolver создает резолвер. naming по умолчанию использует
// полное имя типа с пакетом, как getAggregateTypeName у репозитория агрегатов.
func NewContractIDResolver(naming func(reflect.Type) string) *ContractIDResolver {
	if naming == nil {
		naming = defaultTypeName
	}
	return &ContractIDResolver{
		cache:  make(map[reflect.Type]Name),
		naming: naming,
	}
}

// Resolve возвращает Name для значения (обычно указатель на проекцию).
func (r *ContractIDResolver) Resolve(projectionType any) Name {
	t := reflect.TypeOf(projectionType)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r.mu.RLock()
	if name, ok := r.cache[t]; ok {
		r.mu.RUnlock()
		return name
	}
	r.mu.RUnlock()

	name := Name(r.naming(t))

	r.mu.Lock()
	r.cache[t] = name
	r.mu.Unlock()

	return name
}

func defaultTypeName(t reflect.Type) string {
	if t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.Name()
}

// Package registry хранит общие объекты процесса по строковому ключу.
// Registry передается явно через конструкторы, глобального экземпляра нет.
package registry

import (
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry потокобезопасный контейнер ключ -> объект
type Registry struct {
	objects *xsync.MapOf[string, any]
}

// New создает пустой реестр
func New() *Registry {
	return &Registry{
		objects: xsync.NewMapOf[string, any](),
	}
}

// Get возвращает объект по ключу
func (r *Registry) Get(key string) (any, bool) {
	return r.objects.Load(key)
}

// GetOrCreate возвращает объект по ключу.
// Если его нет, вызывается supplier и сохраняется результат, если он не nil.
// Supplier вызывается не более одного раза на ключ и не должен обращаться к реестру.
func (r *Registry) GetOrCreate(key string, supplier func() any) any {
	value, _ := r.objects.Compute(key, func(old any, loaded bool) (any, bool) {
		if loaded {
			return old, false
		}
		created := supplier()
		if isNil(created) {
			// nil не сохраняем, следующий вызов попробует снова
			return nil, true
		}
		return created, false
	})
	return value
}

// Put сохраняет value по ключу, заменяя предыдущий объект
func (r *Registry) Put(key string, value any) {
	r.objects.Store(key, value)
}

// PutByType сохраняет value под именем его типа (см. TypeKey)
func (r *Registry) PutByType(value any) {
	r.Put(TypeKey(value), value)
}

// Delete удаляет объект по ключу
func (r *Registry) Delete(key string) {
	r.objects.Delete(key)
}

// Len возвращает количество объектов
func (r *Registry) Len() int {
	return r.objects.Size()
}

// Keys возвращает все ключи в произвольном порядке
func (r *Registry) Keys() []string {
	keys := make([]string, 0, r.objects.Size())
	r.objects.Range(func(key string, _ any) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// TypeKey возвращает ключ, под которым PutByType сохранит value, например "*user.Codec"
func TypeKey(value any) string {
	if value == nil {
		return "<nil>"
	}
	return reflect.TypeOf(value).String()
}

// Lookup возвращает объект по ключу, если он имеет тип T
func Lookup[T any](r *Registry, key string) (T, bool) {
	var zero T
	raw, ok := r.Get(key)
	if !ok {
		return zero, false
	}
	value, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return value, true
}

// LookupByType возвращает объект, сохраненный PutByType для типа T
func LookupByType[T any](r *Registry) (T, bool) {
	return Lookup[T](r, reflect.TypeFor[T]().String())
}

// GetOrCreateAs типизированный GetOrCreate.
// Nil указатель от supplier не сохраняется так же, как и nil в GetOrCreate.
// Если по ключу лежит объект другого типа, возвращается нулевое значение.
func GetOrCreateAs[T any](r *Registry, key string, supplier func() T) T {
	raw := r.GetOrCreate(key, func() any {
		return supplier()
	})
	value, _ := raw.(T)
	return value
}

// isNil распознает и nil интерфейс, и nil значение внутри интерфейса
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

package node

import (
	"reflect"
	"sync"

	"golang.org/x/xerrors"
)

type dependency struct {
	typ   reflect.Type
	value interface{}
}

// typedInjector keeps the dependencies in the order of injection so that the
// resolution of an interface is deterministic when several candidates match.
// The actions of the daemon share it.
//
// - implements node.Injector
type typedInjector struct {
	sync.RWMutex
	deps []dependency
}

// NewInjector returns an empty injector.
func NewInjector() Injector {
	return &typedInjector{}
}

// Resolve implements node.Injector.
func (inj *typedInjector) Resolve(target interface{}) error {
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Ptr {
		return xerrors.New("expect a pointer")
	}

	elem := ptr.Elem()
	if !elem.IsValid() {
		return xerrors.Errorf("reflect value '%v' is invalid", ptr)
	}

	inj.RLock()
	defer inj.RUnlock()

	for _, dep := range inj.deps {
		if dep.typ.AssignableTo(elem.Type()) {
			elem.Set(reflect.ValueOf(dep.value))
			return nil
		}
	}

	return xerrors.Errorf("couldn't find dependency for '%v'", elem.Type())
}

// Inject implements node.Injector. A dependency replaces the previous one of
// the exact same type.
func (inj *typedInjector) Inject(value interface{}) {
	typ := reflect.TypeOf(value)

	inj.Lock()
	defer inj.Unlock()

	for i, dep := range inj.deps {
		if dep.typ == typ {
			inj.deps[i].value = value
			return
		}
	}

	inj.deps = append(inj.deps, dependency{typ: typ, value: value})
}

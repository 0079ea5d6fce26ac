package scene

import "fmt"

// SpawnErrorKind says which registration a type was missing.
type SpawnErrorKind int

const (
	// UnregisteredType: the type is not in the registry at all.
	UnregisteredType SpawnErrorKind = iota
	// UnregisteredComponent: the type is registered without ReflectComponent data.
	UnregisteredComponent
	// UnregisteredResource: the type is registered without ReflectResource data.
	UnregisteredResource
)

func (k SpawnErrorKind) String() string {
	switch k {
	case UnregisteredType:
		return "unregistered type"
	case UnregisteredComponent:
		return "unregistered component"
	case UnregisteredResource:
		return "unregistered resource"
	}
	return fmt.Sprintf("SpawnErrorKind(%d)", int(k))
}

// SpawnError aborts writing a scene. Entities written before the error stay in the target
// store.
type SpawnError struct {
	Kind     SpawnErrorKind
	TypeName string
}

func (e SpawnError) Error() string {
	return fmt.Sprintf("scene contains %s %s", e.Kind, e.TypeName)
}

// SameStoreError is returned when a scene is written into the store it reads from.
type SameStoreError struct{}

func (SameStoreError) Error() string {
	return "cannot write a scene into its own store"
}

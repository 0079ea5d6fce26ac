package depot

import (
	"fmt"
	"reflect"
)

type LockedStorageError struct{}

func (e LockedStorageError) Error() string {
	return "storage is currently locked"
}

type EntityNotFoundError struct {
	Entity Entity
}

func (e EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity %s does not exist", e.Entity)
}

type ComponentExistsError struct {
	Component Component
}

func (e ComponentExistsError) Error() string {
	return fmt.Sprintf("component already exists on entity: %s", e.Component.GoType())
}

type ComponentNotFoundError struct {
	Component Component
}

func (e ComponentNotFoundError) Error() string {
	return fmt.Sprintf("component does not exist on entity: %s", e.Component.GoType())
}

// ComponentNotRegisteredError is returned when a bundle field has a type no handle was ever
// created for through FactoryNewComponent.
type ComponentNotRegisteredError struct {
	Type reflect.Type
}

func (e ComponentNotRegisteredError) Error() string {
	return fmt.Sprintf("type %s is not a registered component", e.Type)
}

type ComponentIDError struct {
	ID ComponentID
}

func (e ComponentIDError) Error() string {
	return fmt.Sprintf("unknown component id %d", e.ID)
}

type DuplicateComponentError struct {
	Type reflect.Type
}

func (e DuplicateComponentError) Error() string {
	return fmt.Sprintf("component %s appears more than once", e.Type)
}

type TooManyComponentsError struct {
	Type  reflect.Type
	Limit int
}

func (e TooManyComponentsError) Error() string {
	return fmt.Sprintf("cannot register %s: store already holds %d component types", e.Type, e.Limit)
}

type BundleError struct {
	Bundle reflect.Type
	Reason string
}

func (e BundleError) Error() string {
	if e.Bundle == nil {
		return "invalid bundle: " + e.Reason
	}
	return fmt.Sprintf("invalid bundle %s: %s", e.Bundle, e.Reason)
}

// LocationCorruptionError reports an entity whose recorded location does not hold it. It is
// raised as a panic; the store can no longer be trusted.
type LocationCorruptionError struct {
	Entity   Entity
	Location EntityLocation
}

func (e LocationCorruptionError) Error() string {
	return fmt.Sprintf("entity %s not found at archetype %d row %d", e.Entity, e.Location.Archetype, e.Location.Row)
}

// ApplyError reports a value that cannot be applied onto a component or resource.
type ApplyError struct {
	Path   string
	Target reflect.Type
	Source reflect.Type
}

func (e ApplyError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("cannot apply %s to %s", e.Source, e.Target)
	}
	return fmt.Sprintf("cannot apply %s to %s at %s", e.Source, e.Target, e.Path)
}

type ResourceNotFoundError struct {
	Type reflect.Type
}

func (e ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource %s does not exist", e.Type)
}

// TypePathConflictError is returned when two distinct types share a type path, such as
// same-named types declared inside different functions of one package.
type TypePathConflictError struct {
	Path       string
	Type       reflect.Type
	Registered reflect.Type
}

func (e TypePathConflictError) Error() string {
	return fmt.Sprintf("type path %s of %s is already registered for %s", e.Path, e.Type, e.Registered)
}

package engine

import (
	"context"
)

// Lister fetches the current listing of custom URL categories in the
// device's parent scope.
type Lister interface {
	// List returns every object of this kind in the scope. An empty scope
	// yields an empty slice, not an error.
	List(ctx context.Context) ([]CustomURLCategory, error)
}

// Mutator issues single-object mutations keyed by name.
type Mutator interface {
	// Create adds a new object with every field of obj.
	Create(ctx context.Context, obj CustomURLCategory) error

	// Update overwrites every field of the existing object named obj.Name.
	Update(ctx context.Context, obj CustomURLCategory) error

	// Delete removes the object with the given name.
	Delete(ctx context.Context, name string) error
}

// Device is the device-management collaborator consumed by the reconciler
// and the runner.
type Device interface {
	Lister
	Mutator
}

// Committer commits pending candidate configuration.
type Committer interface {
	Commit(ctx context.Context, opts CommitOptions) (*CommitResult, error)
}

// Session is a connected device handle bound to one parent scope.
type Session interface {
	Device
	Committer

	// Scope returns the parent scope the session operates on.
	Scope() Scope

	// Close releases the underlying connection.
	Close() error
}

package runner

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openfroyo/urlcat/pkg/config"
	"github.com/openfroyo/urlcat/pkg/engine"
)

// fakeSession is an in-memory device holding one scope's listing.
type fakeSession struct {
	mu      sync.Mutex
	scope   engine.Scope
	objects []engine.CustomURLCategory
	calls   []string
	commits []engine.CommitOptions
	closed  bool

	listErr   error
	mutateErr error
	commitErr error
}

func newFakeSession(objects ...engine.CustomURLCategory) *fakeSession {
	return &fakeSession{objects: objects}
}

func (f *fakeSession) opener() Opener {
	return func(context.Context, *config.Invocation, zerolog.Logger) (engine.Session, error) {
		f.mu.Lock()
		f.closed = false
		f.mu.Unlock()
		return f, nil
	}
}

func (f *fakeSession) record(call string) {
	f.calls = append(f.calls, call)
}

// mutations returns every create, update, delete and commit call, in order.
func (f *fakeSession) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c != "list" {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeSession) List(context.Context) ([]engine.CustomURLCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]engine.CustomURLCategory, len(f.objects))
	for i, o := range f.objects {
		out[i] = o.Clone()
	}
	return out, nil
}

func (f *fakeSession) Create(_ context.Context, obj engine.CustomURLCategory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create")
	if f.mutateErr != nil {
		return f.mutateErr
	}
	f.objects = append(f.objects, obj.Clone())
	return nil
}

func (f *fakeSession) Update(_ context.Context, obj engine.CustomURLCategory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update")
	if f.mutateErr != nil {
		return f.mutateErr
	}
	for i := range f.objects {
		if f.objects[i].Name == obj.Name {
			f.objects[i] = obj.Clone()
		}
	}
	return nil
}

func (f *fakeSession) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete")
	if f.mutateErr != nil {
		return f.mutateErr
	}
	kept := f.objects[:0]
	for _, o := range f.objects {
		if o.Name != name {
			kept = append(kept, o)
		}
	}
	f.objects = kept
	return nil
}

func (f *fakeSession) Commit(_ context.Context, opts engine.CommitOptions) (*engine.CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("commit")
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	f.commits = append(f.commits, opts)
	return &engine.CommitResult{JobID: "42"}, nil
}

func (f *fakeSession) Scope() engine.Scope {
	return f.scope
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"sort"

	"github.com/krre/ocean-backend/internal/model"
)

// MethodSpec couples a handler with its authorization bar. Role is the
// minimum role; AnonymCreate marks content-creation methods whose bar
// drops to anonym when the server allows anonymous posting.
type MethodSpec struct {
	Handler      Handler
	Role         model.Role
	AnonymCreate bool
}

// Registry is the method table. It is populated once during startup and
// read-only afterwards, so lookups take no lock.
type Registry struct {
	methods map[string]MethodSpec
}

func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]MethodSpec)}
}

// Register adds a method with its minimum role. Registering the same
// name twice is a programming error and panics during startup.
func (r *Registry) Register(name string, role model.Role, h Handler) {
	r.add(name, MethodSpec{Handler: h, Role: role})
}

// RegisterAnonymCreate adds a content-creation method. Its bar is user
// by default and anonym when anonymous posting is enabled.
func (r *Registry) RegisterAnonymCreate(name string, h Handler) {
	r.add(name, MethodSpec{Handler: h, Role: model.RoleUser, AnonymCreate: true})
}

func (r *Registry) add(name string, spec MethodSpec) {
	if _, exists := r.methods[name]; exists {
		panic("api: method registered twice: " + name)
	}
	r.methods[name] = spec
}

// Lookup returns the spec for a method name.
func (r *Registry) Lookup(name string) (MethodSpec, bool) {
	spec, ok := r.methods[name]
	return spec, ok
}

// Methods returns all registered method names in sorted order.
func (r *Registry) Methods() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Package registry tracks which usernames are online and which connection
// handle each one belongs to.
//
// A Registry is owned by a single goroutine (the server's hub) and is not safe
// for concurrent use. Callers never see the underlying container: every
// lookup goes through the methods below, which keeps the uniqueness rule in
// one place.
package registry

import (
	"slices"

	"github.com/google/uuid"
)

// DirectoryLimit caps the number of names returned by List.
const DirectoryLimit = 10

// serverHandle is the handle of the sentinel entry standing for the server
// itself. The sentinel is never routable.
var serverHandle = uuid.Nil

// ServerName is the sentinel's username. It is reserved: Admit refuses it.
const ServerName = "Server"

type entry struct {
	handle   uuid.UUID
	username string
}

// Registry maps live connection handles to usernames in admission order.
type Registry struct {
	entries []entry
}

// New returns a registry holding only the server sentinel.
func New() *Registry {
	return &Registry{
		entries: []entry{{handle: serverHandle, username: ServerName}},
	}
}

// Admit registers username for handle. It returns false and changes nothing
// when the username is empty or already claimed, or the handle is already
// registered.
func (r *Registry) Admit(handle uuid.UUID, username string) bool {
	if username == "" {
		return false
	}
	for _, e := range r.entries {
		if e.handle == handle || e.username == username {
			return false
		}
	}
	r.entries = append(r.entries, entry{handle: handle, username: username})
	return true
}

// Remove drops handle and returns the username it held.
func (r *Registry) Remove(handle uuid.UUID) (string, bool) {
	if handle == serverHandle {
		return "", false
	}
	for i, e := range r.entries {
		if e.handle == handle {
			r.entries = slices.Delete(r.entries, i, i+1)
			return e.username, true
		}
	}
	return "", false
}

// Find returns the handle registered under username.
func (r *Registry) Find(username string) (uuid.UUID, bool) {
	for _, e := range r.entries {
		if e.handle != serverHandle && e.username == username {
			return e.handle, true
		}
	}
	return uuid.Nil, false
}

// Username returns the name registered for handle.
func (r *Registry) Username(handle uuid.UUID) (string, bool) {
	if handle == serverHandle {
		return "", false
	}
	for _, e := range r.entries {
		if e.handle == handle {
			return e.username, true
		}
	}
	return "", false
}

// List returns up to DirectoryLimit usernames in admission order, skipping
// the sentinel and any excluded handles, along with how many more names were
// left out.
func (r *Registry) List(exclude ...uuid.UUID) (names []string, omitted int) {
	names = make([]string, 0, DirectoryLimit)
	for _, e := range r.entries {
		if e.handle == serverHandle || slices.Contains(exclude, e.handle) {
			continue
		}
		if len(names) == DirectoryLimit {
			omitted++
			continue
		}
		names = append(names, e.username)
	}
	return names, omitted
}

// Recipients returns the handles of every routable entry except the excluded
// ones, in admission order.
func (r *Registry) Recipients(exclude ...uuid.UUID) []uuid.UUID {
	handles := make([]uuid.UUID, 0, len(r.entries))
	for _, e := range r.entries {
		if e.handle == serverHandle || slices.Contains(exclude, e.handle) {
			continue
		}
		handles = append(handles, e.handle)
	}
	return handles
}

// Len reports the number of connected users.
func (r *Registry) Len() int {
	return len(r.entries) - 1
}

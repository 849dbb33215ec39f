package format

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Token identifies one registration so its owner can remove it later.
type Token string

// Entry describes a registered format.
type Entry struct {
	Name         string
	NameFilter   string
	Capabilities Capability
}

// Registry holds the known map formats.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byToken map[Token]MapFormat
	byName  map[string]Token
	order   []Token
}

// NewRegistry creates an empty format registry.
func NewRegistry() *Registry {
	return &Registry{
		byToken: make(map[Token]MapFormat),
		byName:  make(map[string]Token),
	}
}

// Register adds a format and returns its registration token.
// Names must be unique across the registry.
func (r *Registry) Register(f MapFormat) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := f.Name()
	if _, exists := r.byName[name]; exists {
		return "", fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	token := Token(uuid.NewString())
	r.byToken[token] = f
	r.byName[name] = token
	r.order = append(r.order, token)
	return token, nil
}

// Unregister removes the format registered under the token.
func (r *Registry) Unregister(token Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.byToken[token]
	if !ok {
		return ErrUnknownToken
	}

	delete(r.byToken, token)
	delete(r.byName, f.Name())
	for i, t := range r.order {
		if t == token {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// ByName returns the format registered under the given name.
func (r *Registry) ByName(name string) (MapFormat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return r.byToken[token], nil
}

// FindReader returns the first registered format able to read the file.
func (r *Registry) FindReader(path string) (MapFormat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, token := range r.order {
		f := r.byToken[token]
		if f.Capabilities().Has(CanRead) && f.SupportsFile(path) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w for reading: %q", ErrNotFound, path)
}

// FindWriter returns the first registered format able to write the file.
func (r *Registry) FindWriter(path string) (MapFormat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, token := range r.order {
		f := r.byToken[token]
		if f.Capabilities().Has(CanWrite) && f.SupportsFile(path) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w for writing: %q", ErrNotFound, path)
}

// List returns all registered formats sorted by name.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.byToken))
	for _, f := range r.byToken {
		entries = append(entries, Entry{
			Name:         f.Name(),
			NameFilter:   f.NameFilter(),
			Capabilities: f.Capabilities(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// Len returns the number of registered formats.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}

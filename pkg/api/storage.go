package api

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage seeded with the ISBD namespaces
type MemoryStorage struct {
	mu         sync.RWMutex
	namespaces map[string]*Namespace
	now        func() time.Time
}

// NewMemoryStorage creates a storage holding SeedNamespaces
func NewMemoryStorage() *MemoryStorage {
	s := &MemoryStorage{
		namespaces: make(map[string]*Namespace),
		now:        time.Now,
	}
	for _, ns := range SeedNamespaces() {
		s.namespaces[ns.ID] = ns
	}
	return s
}

// SeedNamespaces returns the mock data the admin API starts with
func SeedNamespaces() []*Namespace {
	return []*Namespace{
		{
			ID:           "ns_isbd",
			Name:         "ISBD Core",
			ReviewGroup:  "rg_isbd",
			Projects:     []string{"proj_isbd_2024"},
			ElementSets:  []string{"es_isbd_core"},
			Vocabularies: []string{"vocab_content_types"},
			Translations: []string{"en", "fr", "es"},
			Releases:     []string{"v1.0", "v1.1"},
			Status:       "active",
			Visibility:   VisibilityPublic,
			CreatedAt:    time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:           "ns_isbdm",
			Name:         "ISBD Monographs",
			ReviewGroup:  "rg_isbd",
			Projects:     []string{"proj_isbd_2024"},
			ElementSets:  []string{"es_isbdm_core"},
			Vocabularies: []string{"vocab_monograph_types"},
			Translations: []string{"en", "fr"},
			Releases:     []string{"v1.0"},
			Status:       "active",
			Visibility:   VisibilityPublic,
			CreatedAt:    time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:           "ns_unimarc",
			Name:         "UNIMARC Draft",
			ReviewGroup:  "rg_unimarc",
			Projects:     []string{},
			ElementSets:  []string{"es_unimarc_b"},
			Vocabularies: []string{},
			Translations: []string{"en"},
			Releases:     []string{},
			Status:       "draft",
			Visibility:   VisibilityPrivate,
			CreatedAt:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func copyNamespace(ns *Namespace) *Namespace {
	c := *ns
	return &c
}

// ListNamespaces returns every namespace ordered by ID
func (s *MemoryStorage) ListNamespaces() ([]*Namespace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Namespace, 0, len(s.namespaces))
	for _, ns := range s.namespaces {
		out = append(out, copyNamespace(ns))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetNamespace returns one namespace
func (s *MemoryStorage) GetNamespace(id string) (*Namespace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns, ok := s.namespaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNamespaceNotFound, id)
	}
	return copyNamespace(ns), nil
}

// CreateNamespace stores a new namespace. IDs must be unique.
func (s *MemoryStorage) CreateNamespace(ns *Namespace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.namespaces[ns.ID]; exists {
		return fmt.Errorf("%w: %s", ErrNamespaceExists, ns.ID)
	}
	now := s.now().UTC()
	stored := copyNamespace(ns)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.namespaces[ns.ID] = stored
	*ns = *copyNamespace(stored)
	return nil
}

// UpdateNamespace applies update and records who made it
func (s *MemoryStorage) UpdateNamespace(id string, update NamespacePatch, updatedBy string) (*Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNamespaceNotFound, id)
	}
	if update.Name != nil {
		ns.Name = *update.Name
	}
	if update.Description != nil {
		ns.Description = *update.Description
	}
	if update.Status != nil {
		ns.Status = *update.Status
	}
	if update.Visibility != nil {
		ns.Visibility = *update.Visibility
	}
	ns.UpdatedAt = s.now().UTC()
	ns.UpdatedBy = updatedBy
	return copyNamespace(ns), nil
}

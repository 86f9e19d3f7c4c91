package api

import (
	"errors"
	"time"
)

// Namespace visibility
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

var (
	ErrNamespaceNotFound = errors.New("namespace not found")
	ErrNamespaceExists   = errors.New("namespace already exists")
)

// Namespace is a vocabulary namespace owned by a review group
type Namespace struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	ReviewGroup  string    `json:"reviewGroup"`
	Projects     []string  `json:"projects"`
	ElementSets  []string  `json:"elementSets"`
	Vocabularies []string  `json:"vocabularies"`
	Translations []string  `json:"translations"`
	Releases     []string  `json:"releases"`
	Status       string    `json:"status"`
	Visibility   string    `json:"visibility"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	UpdatedBy    string    `json:"updatedBy,omitempty"`
}

// NamespacePatch carries the editable namespace fields. Nil fields are left
// unchanged.
type NamespacePatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Visibility  *string `json:"visibility,omitempty"`
}

// NamespaceCreate is the body of POST /namespaces
type NamespaceCreate struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	ReviewGroupID string `json:"reviewGroupId"`
	Visibility    string `json:"visibility,omitempty"`
}

// Storage holds namespaces
type Storage interface {
	ListNamespaces() ([]*Namespace, error)
	GetNamespace(id string) (*Namespace, error)
	CreateNamespace(ns *Namespace) error
	UpdateNamespace(id string, update NamespacePatch, updatedBy string) (*Namespace, error)
}

package ports

import "trustlab/internal/domain/validation"

// CatalogSource yields the current specialty keyword catalog.
// Implementations may reload it at runtime.
type CatalogSource interface {
	Catalog() validation.Catalog
}

// StaticCatalog is a CatalogSource that never changes.
type StaticCatalog validation.Catalog

func (c StaticCatalog) Catalog() validation.Catalog {
	return validation.Catalog(c)
}

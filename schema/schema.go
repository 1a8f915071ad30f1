// Package schema describes non-sqlite_master roots as an iterable of
// (name, root_page) pairs. The core accountant package consumes this
// list through a narrow interface and does not care how it was
// obtained — this package supplies two concrete ways of obtaining it.
package schema

import "context"

// Root is one schema entry: a table or index name and the root page
// of its b-tree.
type Root struct {
	Name string
	Page uint32
}

// Source is the narrow interface the accountant's façade consumes.
type Source interface {
	Roots(ctx context.Context) ([]Root, error)
}

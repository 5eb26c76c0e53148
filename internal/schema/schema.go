// Package schema implements the schema/introspection component (spec §4.13):
// given a reflected surface (and, for actors, their SQLite store), emit the
// JSON document shape from spec §3 that the out-of-core `generate` /
// `introspect` / `openapi` CLI commands consume.
package schema

import (
	"strings"

	"github.com/arkeep-io/actorrpc/internal/surface"
)

// Document is the JSON schema document described in spec §3.
type Document struct {
	Version    int            `json:"version"`
	Methods    []MethodDoc    `json:"methods"`
	Namespaces []NamespaceDoc `json:"namespaces"`
	Database   *DatabaseDoc   `json:"database,omitempty"`
	Colo       string         `json:"colo,omitempty"`
}

// MethodDoc describes one callable entry.
type MethodDoc struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Params int    `json:"params"`
}

// NamespaceDoc groups MethodDocs under a namespace name.
type NamespaceDoc struct {
	Name    string      `json:"name"`
	Methods []MethodDoc `json:"methods"`
}

// DatabaseDoc is the optional SQL sub-schema (populated by DescribeDatabase).
type DatabaseDoc struct {
	Tables []TableDoc `json:"tables"`
}

type TableDoc struct {
	Name    string       `json:"name"`
	Columns []ColumnDoc  `json:"columns"`
	Indexes []IndexDoc   `json:"indexes"`
}

type ColumnDoc struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	PK       bool   `json:"pk"`
	Default  *string `json:"default,omitempty"`
}

type IndexDoc struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// FromSurface walks s exactly like the reflection engine does (spec §4.1)
// and emits the {methods, namespaces} portion of the document. Internal
// entries are never visited — they are kept in a separate map specifically
// so this walk never needs to filter them out.
func FromSurface(s *surface.Surface) *Document {
	doc := &Document{Version: 1, Methods: []MethodDoc{}, Namespaces: []NamespaceDoc{}}

	for _, m := range s.Methods {
		doc.Methods = append(doc.Methods, MethodDoc{Name: m.Path, Path: m.Path, Params: m.Params})
	}
	sortMethods(doc.Methods)

	for name, ns := range s.Namespaces {
		nd := NamespaceDoc{Name: name, Methods: []MethodDoc{}}
		for _, m := range ns.Methods {
			nd.Methods = append(nd.Methods, MethodDoc{Name: strings.TrimPrefix(m.Path, name+"."), Path: m.Path, Params: m.Params})
		}
		sortMethods(nd.Methods)
		doc.Namespaces = append(doc.Namespaces, nd)
	}
	sortNamespaces(doc.Namespaces)

	return doc
}

func sortMethods(m []MethodDoc) {
	for i := 1; i < len(m); i++ {
		for j := i; j > 0 && m[j-1].Name > m[j].Name; j-- {
			m[j-1], m[j] = m[j], m[j-1]
		}
	}
}

// WithDatabase returns a copy of doc with its Database field populated,
// used by hosts that have a SQL store to describe alongside the surface.
func (d *Document) WithDatabase(db *DatabaseDoc) *Document {
	cp := *d
	cp.Database = db
	return &cp
}

func sortNamespaces(n []NamespaceDoc) {
	for i := 1; i < len(n); i++ {
		for j := i; j > 0 && n[j-1].Name > n[j].Name; j-- {
			n[j-1], n[j] = n[j], n[j-1]
		}
	}
}

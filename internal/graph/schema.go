// Package graph serves the book library GraphQL API.
package graph

import (
	_ "embed"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphql
var schemaSource string

// LoadSchema parses the embedded schema. It panics on an invalid schema.
func LoadSchema() *ast.Schema {
	return gqlparser.MustLoadSchema(&ast.Source{
		Name:  "schema.graphql",
		Input: schemaSource,
	})
}

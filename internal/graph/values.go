package graph

import (
	"fmt"

	"github.com/99designs/gqlgen/graphql"

	"github.com/shelfkeep/shelfkeep/internal/model"
)

// isNull reports untyped nil and nil pointers of the resolved types.
func isNull(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case *model.Book:
		return v == nil
	case *model.User:
		return v == nil
	case *string:
		return v == nil
	default:
		return false
	}
}

func listItems(value any) ([]any, error) {
	switch v := value.(type) {
	case []*model.Book:
		items := make([]any, len(v))
		for i, b := range v {
			items[i] = b
		}
		return items, nil
	case []any:
		return v, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", value)
	}
}

func completeLeaf(typeName string, value any) (graphql.Marshaler, error) {
	if p, ok := value.(*string); ok {
		value = *p
	}

	switch typeName {
	case "ID":
		if s, ok := value.(string); ok {
			return graphql.MarshalID(s), nil
		}
	case "String":
		if s, ok := value.(string); ok {
			return graphql.MarshalString(s), nil
		}
	case "Boolean":
		if b, ok := value.(bool); ok {
			return graphql.MarshalBoolean(b), nil
		}
	}
	return nil, fmt.Errorf("cannot serialize %T as %s", value, typeName)
}

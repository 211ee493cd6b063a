package graph

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/shelfkeep/shelfkeep/internal/metrics"
)

var _ graphql.ExecutableSchema = (*Executor)(nil)

// Executor resolves operations against the schema. It is served over
// HTTP by NewServer.
type Executor struct {
	schema   *ast.Schema
	resolver *Resolver
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewExecutor creates an Executor for the embedded schema.
func NewExecutor(resolver *Resolver, logger *slog.Logger, recorder metrics.Recorder) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Executor{
		schema:   LoadSchema(),
		resolver: resolver,
		logger:   logger,
		metrics:  recorder,
	}
}

func (e *Executor) Schema() *ast.Schema {
	return e.schema
}

func (e *Executor) Complexity(typeName, fieldName string, childComplexity int, args map[string]any) (int, bool) {
	return 0, false
}

// Exec runs the operation found in ctx. Root fields are resolved one at a
// time in document order.
func (e *Executor) Exec(ctx context.Context) graphql.ResponseHandler {
	oc := graphql.GetOperationContext(ctx)

	var root *ast.Definition
	var resolvers map[string]rootField
	switch oc.Operation.Operation {
	case ast.Mutation:
		root, resolvers = e.schema.Mutation, e.resolver.mutationFields()
	case ast.Subscription:
		graphql.AddError(ctx, gqlerror.Errorf("subscriptions are not supported"))
		return func(ctx context.Context) *graphql.Response {
			return &graphql.Response{Errors: graphql.GetErrors(ctx)}
		}
	default:
		root, resolvers = e.schema.Query, e.resolver.queryFields()
	}

	first := true
	return func(ctx context.Context) *graphql.Response {
		if !first {
			return nil
		}
		first = false

		start := time.Now()
		defer func() {
			e.metrics.ObserveGraphQLRequest(time.Since(start))
		}()

		x := &execution{executor: e, op: oc}
		fields := graphql.CollectFields(oc, oc.Operation.SelectionSet, []string{root.Name})
		data, _ := x.executeRoot(ctx, root, fields, resolvers)

		var buf bytes.Buffer
		data.MarshalGQL(&buf)
		return &graphql.Response{Data: buf.Bytes()}
	}
}

// rootField resolves a top-level Query or Mutation field.
type rootField func(ctx context.Context, args map[string]any) (any, error)

// execution holds the state of one operation. Fields run sequentially.
type execution struct {
	executor *Executor
	op       *graphql.OperationContext
}

// fail reports err at path through the server's error presenter.
func (x *execution) fail(ctx context.Context, path ast.Path, pos *ast.Position, err error) {
	gErr := gqlerror.WrapPath(path, err)
	if pos != nil {
		gErr.Locations = []gqlerror.Location{{Line: pos.Line, Column: pos.Column}}
	}
	graphql.AddError(ctx, gErr)
}

// executeRoot resolves the root selection in document order. A failed
// non-null root field nulls the whole response and stops execution.
func (x *execution) executeRoot(ctx context.Context, root *ast.Definition, fields []graphql.CollectedField, resolvers map[string]rootField) (graphql.Marshaler, bool) {
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		path := ast.Path{ast.PathName(field.Alias)}

		var value graphql.Marshaler
		var ok bool
		switch field.Name {
		case "__typename":
			value, ok = graphql.MarshalString(root.Name), true
		case "__schema", "__type":
			x.fail(ctx, path, field.Position, errIntrospection)
			value, ok = graphql.Null, true
		default:
			value, ok = x.resolveRoot(ctx, path, field, resolvers[field.Name])
		}

		if !ok {
			return graphql.Null, false
		}
		out.Values[i] = value
	}
	return out, true
}

func (x *execution) resolveRoot(ctx context.Context, path ast.Path, field graphql.CollectedField, resolve rootField) (m graphql.Marshaler, ok bool) {
	typ := field.Definition.Type
	defer func() {
		if r := recover(); r != nil {
			x.fail(ctx, path, field.Position, graphql.Recover(ctx, r))
			m, ok = graphql.Null, !typ.NonNull
		}
	}()

	if resolve == nil {
		x.fail(ctx, path, field.Position, fmt.Errorf("no resolver for field %q", field.Name))
		return graphql.Null, !typ.NonNull
	}

	result, err := resolve(ctx, field.ArgumentMap(x.op.Variables))
	if err != nil {
		x.fail(ctx, path, field.Position, err)
		return graphql.Null, !typ.NonNull
	}

	return x.complete(ctx, path, field, typ, result)
}

// complete serializes a resolved value for typ. It returns false when a
// non-null position could not be filled and the null must propagate.
func (x *execution) complete(ctx context.Context, path ast.Path, field graphql.CollectedField, typ *ast.Type, value any) (graphql.Marshaler, bool) {
	if !typ.NonNull {
		m, _ := x.completeNullable(ctx, path, field, typ, value)
		return m, true
	}

	inner := *typ
	inner.NonNull = false
	m, state := x.completeNullable(ctx, path, field, &inner, value)
	switch state {
	case failed:
		return graphql.Null, false
	case null:
		x.fail(ctx, path, field.Position, fmt.Errorf("cannot return null for non-nullable field %s", path.String()))
		return graphql.Null, false
	}
	return m, true
}

// completion describes the outcome of completing a nullable position.
type completion int

const (
	filled completion = iota
	// null is a legitimately absent value.
	null
	// failed is a null caused by an error that has already been reported.
	failed
)

func (x *execution) completeNullable(ctx context.Context, path ast.Path, field graphql.CollectedField, typ *ast.Type, value any) (graphql.Marshaler, completion) {
	if isNull(value) {
		return graphql.Null, null
	}

	if typ.Elem != nil {
		items, err := listItems(value)
		if err != nil {
			x.fail(ctx, path, field.Position, err)
			return graphql.Null, failed
		}
		arr := make(graphql.Array, len(items))
		for i, item := range items {
			m, ok := x.complete(ctx, extend(path, ast.PathIndex(i)), field, typ.Elem, item)
			if !ok {
				return graphql.Null, failed
			}
			arr[i] = m
		}
		return arr, filled
	}

	def := x.executor.schema.Types[typ.NamedType]
	if def == nil {
		x.fail(ctx, path, field.Position, fmt.Errorf("unknown type %q", typ.NamedType))
		return graphql.Null, failed
	}

	switch def.Kind {
	case ast.Scalar, ast.Enum:
		m, err := completeLeaf(typ.NamedType, value)
		if err != nil {
			x.fail(ctx, path, field.Position, err)
			return graphql.Null, failed
		}
		return m, filled
	case ast.Object:
		return x.completeObject(ctx, path, field, def, value)
	default:
		x.fail(ctx, path, field.Position, fmt.Errorf("cannot complete value of type %s", def.Name))
		return graphql.Null, failed
	}
}

// completeObject executes the sub-selection against a resolved object.
// A failed non-null child nulls the object itself.
func (x *execution) completeObject(ctx context.Context, path ast.Path, field graphql.CollectedField, def *ast.Definition, value any) (graphql.Marshaler, completion) {
	fields := graphql.CollectFields(x.op, field.Selections, []string{def.Name})
	out := graphql.NewFieldSet(fields)

	for i, child := range fields {
		childPath := extend(path, ast.PathName(child.Alias))

		if child.Name == "__typename" {
			out.Values[i] = graphql.MarshalString(def.Name)
			continue
		}

		prop, err := x.executor.resolver.objectField(def.Name, child.Name, value)
		if err != nil {
			x.fail(ctx, childPath, child.Position, err)
			if child.Definition.Type.NonNull {
				return graphql.Null, failed
			}
			out.Values[i] = graphql.Null
			continue
		}

		m, ok := x.complete(ctx, childPath, child, child.Definition.Type, prop)
		if !ok {
			return graphql.Null, failed
		}
		out.Values[i] = m
	}
	return out, filled
}

// extend returns a copy of path with elem appended.
func extend(path ast.Path, elem ast.PathElement) ast.Path {
	out := make(ast.Path, len(path), len(path)+1)
	copy(out, path)
	return append(out, elem)
}

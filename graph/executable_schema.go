package graph

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"shopify-entity-sync/graph/model"
	"shopify-entity-sync/internal/application"
	"shopify-entity-sync/internal/domain"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/lru"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

//go:embed schema.graphqls
var schemaSource string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSource})

type QueryResolver interface {
	Entities(ctx context.Context, entityType domain.EntityKind) ([]*domain.EntityUsage, error)
	Entity(ctx context.Context, entityType domain.EntityKind, value string) (*domain.EntityUsage, error)
	Shops(ctx context.Context) ([]*model.Shop, error)
	Products(ctx context.Context, shop string) ([]*domain.Product, error)
	SyncStatus(ctx context.Context) (*model.SyncStatus, error)
}

type MutationResolver interface {
	RebuildCounters(ctx context.Context) (*application.RebuildReport, error)
	ResyncShop(ctx context.Context, shop string) (*model.ResyncResult, error)
}

type SubscriptionResolver interface {
	EntityUsageChanged(ctx context.Context, entityTypes []domain.EntityKind, shop *string) (<-chan *domain.EntityUsageEvent, error)
}

type ResolverRoot interface {
	Query() QueryResolver
	Mutation() MutationResolver
	Subscription() SubscriptionResolver
}

type Config struct {
	Resolvers ResolverRoot
}

// NewExecutableSchema creates an ExecutableSchema from the ResolverRoot interface.
func NewExecutableSchema(cfg Config) graphql.ExecutableSchema {
	return &executableSchema{schema: parsedSchema, resolvers: cfg.Resolvers}
}

// NewHandler serves the schema over POST, GET and websocket subscriptions
func NewHandler(resolver *Resolver) *handler.Server {
	srv := handler.New(NewExecutableSchema(Config{Resolvers: resolver}))
	srv.AddTransport(transport.Websocket{
		KeepAlivePingInterval: 10 * time.Second,
		Upgrader: websocket.Upgrader{
			// admin auth runs before the upgrade
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	})
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	srv.SetQueryCache(lru.New[*ast.QueryDocument](1000))
	srv.Use(extension.AutomaticPersistedQuery{Cache: lru.New[string](100)})
	return srv
}

// executableSchema resolves root fields through the resolvers and renders their results
// against the selection set. Complexity comes from the embedded interface, which stays
// nil because no complexity limit is installed.
type executableSchema struct {
	graphql.ExecutableSchema
	schema    *ast.Schema
	resolvers ResolverRoot
}

func (e *executableSchema) Schema() *ast.Schema {
	return e.schema
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)
	switch opCtx.Operation.Operation {
	case ast.Query:
		return e.execRoot(ctx, opCtx, e.schema.Query, e.resolveQuery)
	case ast.Mutation:
		return e.execRoot(ctx, opCtx, e.schema.Mutation, e.resolveMutation)
	case ast.Subscription:
		return e.execSubscription(ctx, opCtx)
	default:
		return graphql.OneShot(graphql.ErrorResponse(ctx, "unsupported GraphQL operation"))
	}
}

type rootResolver func(ctx context.Context, field graphql.CollectedField, args map[string]any) (any, error)

// execRoot resolves the root fields in order, so mutations run serially
func (e *executableSchema) execRoot(ctx context.Context, opCtx *graphql.OperationContext, def *ast.Definition, resolve rootResolver) graphql.ResponseHandler {
	r := &renderer{schema: e.schema, opCtx: opCtx}
	fields := graphql.CollectFields(opCtx, opCtx.Operation.SelectionSet, []string{def.Name})

	var buf bytes.Buffer
	buf.WriteByte('{')
	failed := false
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, field.Alias)
		path := ast.Path{ast.PathName(field.Alias)}

		switch field.Name {
		case "__typename":
			writeString(&buf, def.Name)
			continue
		case "__schema", "__type":
			r.errs = append(r.errs, gqlerror.ErrorPathf(path, "introspection is disabled"))
			buf.WriteString("null")
			continue
		}

		v, err := resolve(ctx, field, field.ArgumentMap(opCtx.Variables))
		if err != nil {
			r.errs = append(r.errs, gqlerror.ErrorPathf(path, "%s", err.Error()))
			if field.Definition.Type.NonNull {
				failed = true
			}
			buf.WriteString("null")
			continue
		}

		raw, ok := r.render(v, field.Definition.Type, field.Selections, path)
		if !ok {
			failed = true
			continue
		}
		buf.Write(raw)
	}
	buf.WriteByte('}')

	resp := &graphql.Response{Data: buf.Bytes(), Errors: r.errs}
	if failed {
		resp.Data = json.RawMessage("null")
	}
	return graphql.OneShot(resp)
}

func (e *executableSchema) resolveQuery(ctx context.Context, field graphql.CollectedField, args map[string]any) (any, error) {
	q := e.resolvers.Query()
	switch field.Name {
	case "entities":
		kind, err := kindArg(args, "entityType")
		if err != nil {
			return nil, err
		}
		return q.Entities(ctx, kind)
	case "entity":
		kind, err := kindArg(args, "entityType")
		if err != nil {
			return nil, err
		}
		return q.Entity(ctx, kind, stringArg(args, "value"))
	case "shops":
		return q.Shops(ctx)
	case "products":
		return q.Products(ctx, stringArg(args, "shop"))
	case "syncStatus":
		return q.SyncStatus(ctx)
	default:
		return nil, fmt.Errorf("unknown field Query.%s", field.Name)
	}
}

func (e *executableSchema) resolveMutation(ctx context.Context, field graphql.CollectedField, args map[string]any) (any, error) {
	m := e.resolvers.Mutation()
	switch field.Name {
	case "rebuildCounters":
		return m.RebuildCounters(ctx)
	case "resyncShop":
		return m.ResyncShop(ctx, stringArg(args, "shop"))
	default:
		return nil, fmt.Errorf("unknown field Mutation.%s", field.Name)
	}
}

// execSubscription renders one response per event until the event channel closes
func (e *executableSchema) execSubscription(ctx context.Context, opCtx *graphql.OperationContext) graphql.ResponseHandler {
	fields := graphql.CollectFields(opCtx, opCtx.Operation.SelectionSet, []string{e.schema.Subscription.Name})
	if len(fields) != 1 {
		return graphql.OneShot(graphql.ErrorResponse(ctx, "a subscription must select exactly one field"))
	}
	field := fields[0]
	path := ast.Path{ast.PathName(field.Alias)}
	if field.Name != "entityUsageChanged" {
		return graphql.OneShot(&graphql.Response{Errors: gqlerror.List{gqlerror.ErrorPathf(path, "unknown field Subscription.%s", field.Name)}})
	}

	args := field.ArgumentMap(opCtx.Variables)
	kinds, err := kindListArg(args, "entityTypes")
	if err != nil {
		return graphql.OneShot(&graphql.Response{Errors: gqlerror.List{gqlerror.ErrorPathf(path, "%s", err.Error())}})
	}
	var shop *string
	if s, ok := args["shop"].(string); ok {
		shop = &s
	}

	events, err := e.resolvers.Subscription().EntityUsageChanged(ctx, kinds, shop)
	if err != nil {
		return graphql.OneShot(&graphql.Response{Errors: gqlerror.List{gqlerror.ErrorPathf(path, "%s", err.Error())}})
	}

	return func(ctx context.Context) *graphql.Response {
		var event *domain.EntityUsageEvent
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			event = ev
		}

		r := &renderer{schema: e.schema, opCtx: opCtx}
		raw, ok := r.render(event, field.Definition.Type, field.Selections, path)
		if !ok {
			return &graphql.Response{Data: json.RawMessage("null"), Errors: r.errs}
		}
		var buf bytes.Buffer
		buf.WriteByte('{')
		writeKey(&buf, field.Alias)
		buf.Write(raw)
		buf.WriteByte('}')
		return &graphql.Response{Data: buf.Bytes(), Errors: r.errs}
	}
}

// renderer writes resolver results as JSON shaped by the selection set. Results are
// first reduced to their JSON form, so struct json tags must match the schema field names.
type renderer struct {
	schema *ast.Schema
	opCtx  *graphql.OperationContext
	errs   gqlerror.List
}

func (r *renderer) render(v any, t *ast.Type, sel ast.SelectionSet, path ast.Path) (json.RawMessage, bool) {
	generic, err := toGeneric(v)
	if err != nil {
		r.errs = append(r.errs, gqlerror.ErrorPathf(path, "failed to encode result: %s", err.Error()))
		return r.null(t)
	}
	return r.value(generic, t, sel, path)
}

// value reports false when a null lands on a non-null type, so the caller nulls itself
func (r *renderer) value(v any, t *ast.Type, sel ast.SelectionSet, path ast.Path) (json.RawMessage, bool) {
	if v == nil {
		// nil slices encode as null
		if t.Elem != nil && t.NonNull {
			return json.RawMessage("[]"), true
		}
		if t.NonNull {
			r.errs = append(r.errs, gqlerror.ErrorPathf(path, "must not be null"))
		}
		return r.null(t)
	}

	if t.Elem != nil {
		items, ok := v.([]any)
		if !ok {
			r.errs = append(r.errs, gqlerror.ErrorPathf(path, "expected a list"))
			return r.null(t)
		}
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range items {
			raw, ok := r.value(item, t.Elem, sel, childPath(path, ast.PathIndex(i)))
			if !ok {
				return r.null(t)
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(raw)
		}
		buf.WriteByte(']')
		return buf.Bytes(), true
	}

	def := r.schema.Types[t.Name()]
	if def == nil || def.Kind != ast.Object {
		raw, err := json.Marshal(v)
		if err != nil {
			r.errs = append(r.errs, gqlerror.ErrorPathf(path, "failed to encode %s: %s", t.Name(), err.Error()))
			return r.null(t)
		}
		return raw, true
	}

	obj, ok := v.(map[string]any)
	if !ok {
		r.errs = append(r.errs, gqlerror.ErrorPathf(path, "expected an object of type %s", def.Name))
		return r.null(t)
	}
	raw, ok := r.object(def.Name, obj, sel, path)
	if !ok {
		return r.null(t)
	}
	return raw, true
}

func (r *renderer) object(typeName string, obj map[string]any, sel ast.SelectionSet, path ast.Path) (json.RawMessage, bool) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range graphql.CollectFields(r.opCtx, sel, []string{typeName}) {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, field.Alias)
		if field.Name == "__typename" {
			writeString(&buf, typeName)
			continue
		}
		raw, ok := r.value(obj[field.Name], field.Definition.Type, field.Selections, childPath(path, ast.PathName(field.Alias)))
		if !ok {
			return nil, false
		}
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), true
}

func (r *renderer) null(t *ast.Type) (json.RawMessage, bool) {
	if t.NonNull {
		return nil, false
	}
	return json.RawMessage("null"), true
}

func toGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func childPath(path ast.Path, elem ast.PathElement) ast.Path {
	out := make(ast.Path, len(path), len(path)+1)
	copy(out, path)
	return append(out, elem)
}

func writeKey(buf *bytes.Buffer, key string) {
	writeString(buf, key)
	buf.WriteByte(':')
}

func writeString(buf *bytes.Buffer, s string) {
	raw, _ := json.Marshal(s)
	buf.Write(raw)
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func kindArg(args map[string]any, name string) (domain.EntityKind, error) {
	return domain.ParseEntityKind(stringArg(args, name))
}

func kindListArg(args map[string]any, name string) ([]domain.EntityKind, error) {
	var raw []any
	switch v := args[name].(type) {
	case nil:
		return nil, nil
	case []any:
		raw = v
	case string:
		raw = []any{v}
	default:
		return nil, fmt.Errorf("%w: %s must be a list of entity types", domain.ErrInvalidInput, name)
	}

	kinds := make([]domain.EntityKind, 0, len(raw))
	for _, item := range raw {
		s, _ := item.(string)
		kind, err := domain.ParseEntityKind(s)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

package graph

import (
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/lru"
	"github.com/99designs/gqlgen/graphql/handler/transport"
)

// queryCacheSize bounds the number of parsed and validated documents kept.
const queryCacheSize = 1000

// NewServer serves exec over HTTP. Queries may use GET or POST with a JSON
// body; mutations require POST.
func NewServer(exec *Executor) *handler.Server {
	srv := handler.New(exec)
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	srv.SetQueryCache(lru.New(queryCacheSize))
	srv.SetErrorPresenter(exec.PresentError)
	srv.SetRecoverFunc(exec.Recover)
	return srv
}

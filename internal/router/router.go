// Package router keeps the explicit table of named routes and builds URLs from it.
package router

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// Route maps methods and a path pattern to a handler chain under a stable name.
type Route struct {
	Name        string
	Methods     []string
	Path        string
	Description string
	Handlers    []gin.HandlerFunc
}

// Table is built at startup and mounted once.
type Table struct {
	routes []Route
	byName map[string]int
}

func NewTable() *Table {
	return &Table{byName: map[string]int{}}
}

// Add registers a route. Names must be unique.
func (t *Table) Add(r Route) *Table {
	if _, dup := t.byName[r.Name]; dup {
		panic(fmt.Sprintf("router: duplicate route name %q", r.Name))
	}
	if len(r.Methods) == 0 || len(r.Handlers) == 0 {
		panic(fmt.Sprintf("router: route %q needs methods and handlers", r.Name))
	}
	t.byName[r.Name] = len(t.routes)
	t.routes = append(t.routes, r)
	return t
}

// Routes returns the table in registration order.
func (t *Table) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

// Mount registers every route on g.
func (t *Table) Mount(g gin.IRoutes) {
	for _, r := range t.routes {
		for _, m := range r.Methods {
			g.Handle(m, r.Path, r.Handlers...)
		}
	}
}

// URL builds the path of the named route. params are key/value pairs
// filling the route's :wildcards, e.g. URL("episode_show", "episode", "pilot").
func (t *Table) URL(name string, params ...any) (string, error) {
	i, ok := t.byName[name]
	if !ok {
		return "", fmt.Errorf("router: unknown route %q", name)
	}
	if len(params)%2 != 0 {
		return "", fmt.Errorf("router: odd number of params for %q", name)
	}
	values := make(map[string]string, len(params)/2)
	for j := 0; j < len(params); j += 2 {
		key, ok := params[j].(string)
		if !ok {
			return "", fmt.Errorf("router: param name %v is not a string", params[j])
		}
		values[key] = fmt.Sprint(params[j+1])
	}

	segments := strings.Split(t.routes[i].Path, "/")
	for k, seg := range segments {
		if !strings.HasPrefix(seg, ":") && !strings.HasPrefix(seg, "*") {
			continue
		}
		v, ok := values[seg[1:]]
		if !ok || v == "" {
			return "", fmt.Errorf("router: missing param %q for %q", seg[1:], name)
		}
		segments[k] = url.PathEscape(v)
	}
	return strings.Join(segments, "/"), nil
}

// MustURL is URL for callers holding names and params known to be valid.
func (t *Table) MustURL(name string, params ...any) string {
	u, err := t.URL(name, params...)
	if err != nil {
		panic(err)
	}
	return u
}

package handler

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/jacobshu/forum/internal/core"
)

// Route binds one method and pattern of a named endpoint to its handler.
type Route struct {
	Name    string
	Method  string
	Pattern string
	Handler http.Handler
}

// Table is the route list of a group. Rows sharing a name form one endpoint.
type Table []Route

func (t Table) Endpoints() []core.Endpoint {
	var out []core.Endpoint
	index := map[string]int{}
	for _, r := range t {
		if i, ok := index[r.Name]; ok {
			if !slices.Contains(out[i].Methods, r.Method) {
				out[i].Methods = append(out[i].Methods, r.Method)
			}
			continue
		}
		index[r.Name] = len(out)
		out = append(out, core.Endpoint{Name: r.Name, Methods: []string{r.Method}, Pattern: r.Pattern})
	}
	return out
}

func (t Table) Register(r chi.Router) {
	for _, rt := range t {
		r.Method(rt.Method, rt.Pattern, rt.Handler)
	}
}

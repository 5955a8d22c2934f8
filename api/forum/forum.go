// Package forum is the route group for browsing and posting.
package forum

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jacobshu/forum/api/handler"
	"github.com/jacobshu/forum/internal/core"
)

type Group struct {
	app    *core.App
	h      *handler.Service
	routes handler.Table
}

var _ core.RouteGroup = (*Group)(nil)

func New(app *core.App) (*Group, error) {
	h, err := handler.ForApp(app, "forum")
	if err != nil {
		return nil, err
	}
	g := &Group{app: app, h: h}

	login := func(fn http.HandlerFunc) http.Handler { return app.Login.RequireLogin(fn) }
	admin := func(fn http.HandlerFunc) http.Handler { return app.Login.RequireAdmin(fn) }
	g.routes = handler.Table{
		{Name: "index_route", Method: http.MethodGet, Pattern: "/", Handler: http.HandlerFunc(g.index)},
		{Name: "new_category_route", Method: http.MethodPost, Pattern: "/c", Handler: admin(g.newCategory)},
		{Name: "category_route", Method: http.MethodGet, Pattern: "/c/{categoryID}", Handler: http.HandlerFunc(g.category)},
		{Name: "new_thread_route", Method: http.MethodPost, Pattern: "/c/{categoryID}/threads", Handler: login(g.newThread)},
		{Name: "thread_route", Method: http.MethodGet, Pattern: "/t/{threadID}", Handler: http.HandlerFunc(g.thread)},
		{Name: "reply_route", Method: http.MethodPost, Pattern: "/t/{threadID}/posts", Handler: login(g.reply)},
		{Name: "delete_post_route", Method: http.MethodPost, Pattern: "/p/{postID}/delete", Handler: login(g.deletePost)},
		{Name: "api_posts_route", Method: http.MethodGet, Pattern: "/api/t/{threadID}/posts", Handler: http.HandlerFunc(g.apiPosts)},
		{Name: "api_posts_route", Method: http.MethodPost, Pattern: "/api/t/{threadID}/posts", Handler: http.HandlerFunc(g.apiCreatePost)},
	}
	return g, nil
}

func (g *Group) Name() string   { return "forum" }
func (g *Group) Prefix() string { return "/forum" }

func (g *Group) Endpoints() []core.Endpoint {
	return g.routes.Endpoints()
}

func (g *Group) Routes(r chi.Router) {
	g.routes.Register(r)
}

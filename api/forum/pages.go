package forum

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jacobshu/forum/internal/database"
	"github.com/jacobshu/forum/internal/session"
)

// pathID parses a uuid path parameter. A malformed id is answered with 404.
func (g *Group) pathID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		g.h.RenderError(w, r, http.StatusNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (g *Group) index(w http.ResponseWriter, r *http.Request) {
	categories, err := g.app.Store.ListCategories(r.Context())
	if err != nil {
		g.h.Fail(w, r, err)
		return
	}
	g.h.Render(w, r, http.StatusOK, "forum_index.html", "Forum", map[string]any{
		"Categories": categories,
	})
}

func (g *Group) newCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		g.h.RenderError(w, r, http.StatusBadRequest)
		return
	}
	title, err := cleanTitle(r.PostForm.Get("title"))
	if err != nil {
		g.h.Flash(w, r, err.Error())
		g.h.Redirect(w, r, "forum.index_route")
		return
	}

	c, err := g.app.Store.CreateCategory(r.Context(), database.CreateCategoryParams{
		Title:       title,
		Description: strings.TrimSpace(r.PostForm.Get("description")),
	})
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			g.h.Flash(w, r, "A category with that title already exists.")
			g.h.Redirect(w, r, "forum.index_route")
			return
		}
		g.h.Fail(w, r, err)
		return
	}
	g.h.Log().Info("Category created", "category_id", c.ID, "title", c.Title)
	g.h.Redirect(w, r, "forum.category_route", "categoryID", c.ID.String())
}

func (g *Group) category(w http.ResponseWriter, r *http.Request) {
	id, ok := g.pathID(w, r, "categoryID")
	if !ok {
		return
	}
	c, err := g.app.Store.GetCategory(r.Context(), id)
	if err != nil {
		g.h.Fail(w, r, err)
		return
	}
	threads, err := g.app.Store.ListThreads(r.Context(), id)
	if err != nil {
		g.h.Fail(w, r, err)
		return
	}
	g.h.Render(w, r, http.StatusOK, "forum_category.html", c.Title, map[string]any{
		"Category": c,
		"Threads":  threads,
		"MaxPost":  MaxPostLength,
	})
}

func (g *Group) newThread(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := g.pathID(w, r, "categoryID")
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		g.h.RenderError(w, r, http.StatusBadRequest)
		return
	}
	back := func(msg string) {
		g.h.Flash(w, r, msg)
		g.h.Redirect(w, r, "forum.category_route", "categoryID", categoryID.String())
	}

	title, err := cleanTitle(r.PostForm.Get("title"))
	if err != nil {
		back(err.Error())
		return
	}
	body, err := cleanBody(r.PostForm.Get("body"))
	if err != nil {
		back(err.Error())
		return
	}

	user, _ := session.UserFromContext(r.Context())
	t, err := g.app.Store.CreateThread(r.Context(), database.CreateThreadParams{
		CategoryID: categoryID,
		UserID:     user.ID,
		Title:      title,
		Body:       body,
	})
	if err != nil {
		g.h.Fail(w, r, err)
		return
	}
	g.h.Log().Info("Thread created", "thread_id", t.ID, "user_id", user.ID)
	g.h.Redirect(w, r, "forum.thread_route", "threadID", t.ID.String())
}

func (g *Group) thread(w http.ResponseWriter, r *http.Request) {
	id, ok := g.pathID(w, r, "threadID")
	if !ok {
		return
	}
	t, err := g.app.Store.GetThread(r.Context(), id)
	if err != nil {
		g.h.Fail(w, r, err)
		return
	}
	posts, err := g.app.Store.ListPosts(r.Context(), id)
	if err != nil {
		g.h.Fail(w, r, err)
		return
	}
	g.h.Render(w, r, http.StatusOK, "forum_thread.html", t.Title, map[string]any{
		"Thread":  t,
		"Posts":   posts,
		"MaxPost": MaxPostLength,
	})
}

func (g *Group) reply(w http.ResponseWriter, r *http.Request) {
	threadID, ok := g.pathID(w, r, "threadID")
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		g.h.RenderError(w, r, http.StatusBadRequest)
		return
	}
	body, err := cleanBody(r.PostForm.Get("body"))
	if err != nil {
		g.h.Flash(w, r, err.Error())
		g.h.Redirect(w, r, "forum.thread_route", "threadID", threadID.String())
		return
	}

	user, _ := session.UserFromContext(r.Context())
	p, err := g.app.Store.CreatePost(r.Context(), database.CreatePostParams{
		ThreadID: threadID,
		UserID:   user.ID,
		Body:     body,
	})
	if err != nil {
		g.h.Fail(w, r, err)
		return
	}
	u, err := g.h.URLFor("forum.thread_route", "threadID", threadID.String())
	if err != nil {
		g.h.Fail(w, r, err)
		return
	}
	http.Redirect(w, r, u+"#post-"+p.ID.String(), http.StatusSeeOther)
}

// deletePost removes a post. Only its author or an admin may do so.
func (g *Group) deletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := g.pathID(w, r, "postID")
	if !ok {
		return
	}
	p, err := g.app.Store.GetPost(r.Context(), id)
	if err != nil {
		g.h.Fail(w, r, err)
		return
	}

	user, _ := session.UserFromContext(r.Context())
	if p.UserID != user.ID && !user.IsAdmin {
		g.h.RenderError(w, r, http.StatusForbidden)
		return
	}

	if err := g.app.Store.DeletePost(r.Context(), id); err != nil {
		g.h.Fail(w, r, err)
		return
	}
	g.h.Log().Info("Post deleted", "post_id", id, "by", user.ID)
	g.h.Flash(w, r, "Post deleted.")
	g.h.Redirect(w, r, "forum.thread_route", "threadID", p.ThreadID.String())
}

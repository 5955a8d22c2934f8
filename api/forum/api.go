package forum

import (
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jacobshu/forum/api/handler"
	"github.com/jacobshu/forum/internal/database"
)

// apiPosts lists a thread's posts as JSON, oldest first unless sort=desc.
func (g *Group) apiPosts(w http.ResponseWriter, r *http.Request) {
	threadID, err := uuid.Parse(chi.URLParam(r, "threadID"))
	if err != nil {
		g.h.RespondWithError(w, http.StatusNotFound, "thread not found")
		return
	}

	if _, err := g.app.Store.GetThread(r.Context(), threadID); err != nil {
		g.respondStoreError(w, err, "thread not found")
		return
	}
	posts, err := g.app.Store.ListPosts(r.Context(), threadID)
	if err != nil {
		g.respondStoreError(w, err, "thread not found")
		return
	}

	if r.URL.Query().Get("sort") == "desc" {
		slices.Reverse(posts)
	}
	g.h.Respond(w, http.StatusOK, posts)
}

// apiCreatePost adds a reply for the user named by the bearer token.
func (g *Group) apiCreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := g.app.Auth.Authorize(r.Header)
	if err != nil {
		g.h.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	threadID, err := uuid.Parse(chi.URLParam(r, "threadID"))
	if err != nil {
		g.h.RespondWithError(w, http.StatusNotFound, "thread not found")
		return
	}

	type parameters struct {
		Body string `json:"body"`
	}
	params := parameters{}
	if err := handler.Decode(r, &params); err != nil {
		g.h.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	body, err := cleanBody(params.Body)
	if err != nil {
		g.h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := g.app.Store.CreatePost(r.Context(), database.CreatePostParams{
		ThreadID: threadID,
		UserID:   userID,
		Body:     body,
	})
	if err != nil {
		g.respondStoreError(w, err, "thread not found")
		return
	}
	g.h.Respond(w, http.StatusCreated, p)
}

func (g *Group) respondStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, database.ErrNotFound) {
		g.h.RespondWithError(w, http.StatusNotFound, notFound)
		return
	}
	g.h.Log().Error("Store error", "error", err)
	g.h.RespondInternalServerError(w)
}

package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jacobshu/forum/internal/database"
	"github.com/jacobshu/forum/internal/session"
)

const badCredentials = "Incorrect email or password."

func (g *Group) forumIndex() string {
	u, err := g.h.URLFor("forum.index_route")
	if err != nil {
		return "/"
	}
	return u
}

func (g *Group) loginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := session.UserFromContext(r.Context()); ok {
		http.Redirect(w, r, g.forumIndex(), http.StatusSeeOther)
		return
	}
	g.h.Render(w, r, http.StatusOK, "auth_login.html", "Log in", map[string]any{
		"Next": r.URL.Query().Get("next"),
	})
}

func (g *Group) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		g.h.RenderError(w, r, http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	next := r.PostForm.Get("next")

	fail := func() {
		g.h.Render(w, r, http.StatusUnauthorized, "auth_login.html", "Log in", map[string]any{
			"Next":  next,
			"Email": email,
			"Error": badCredentials,
		})
	}

	user, err := g.app.Store.GetUserByEmail(r.Context(), email)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			g.h.Fail(w, r, err)
			return
		}
		g.h.Log().Info("Login for unknown email", "email", email)
		fail()
		return
	}

	if err := g.app.Auth.CheckPasswordHash(password, user.PasswordHash); err != nil {
		g.h.Log().Info("Login with wrong password", "user_id", user.ID)
		fail()
		return
	}

	if err := g.app.Login.Login(w, r, user.ID); err != nil {
		g.h.Fail(w, r, err)
		return
	}
	g.h.Flash(w, r, "Welcome back, "+user.Username+".")
	g.h.Log().Info("User logged in", "user_id", user.ID)
	http.Redirect(w, r, session.SafeNext(next, g.forumIndex()), http.StatusSeeOther)
}

func (g *Group) logout(w http.ResponseWriter, r *http.Request) {
	if err := g.app.Login.Logout(w, r); err != nil {
		g.h.Fail(w, r, err)
		return
	}
	http.Redirect(w, r, g.forumIndex(), http.StatusSeeOther)
}

package auth

import (
	"errors"
	"net/http"
	"net/mail"
	"regexp"
	"strings"

	authsvc "github.com/jacobshu/forum/internal/auth"
	"github.com/jacobshu/forum/internal/database"
	"github.com/jacobshu/forum/internal/session"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

type registration struct {
	Username string
	Email    string
	Password string
	Confirm  string
}

// validate returns a message suitable for the form, or "".
func (reg registration) validate() string {
	if !usernamePattern.MatchString(reg.Username) {
		return "Usernames are 3 to 32 letters, digits, dashes or underscores."
	}
	addr, err := mail.ParseAddress(reg.Email)
	if err != nil || addr.Address != reg.Email {
		return "Enter a valid email address."
	}
	if reg.Password != reg.Confirm {
		return "Passwords do not match."
	}
	return ""
}

func (g *Group) registerForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := session.UserFromContext(r.Context()); ok {
		http.Redirect(w, r, g.forumIndex(), http.StatusSeeOther)
		return
	}
	g.h.Render(w, r, http.StatusOK, "auth_register.html", "Register", nil)
}

func (g *Group) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		g.h.RenderError(w, r, http.StatusBadRequest)
		return
	}
	reg := registration{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Email:    strings.ToLower(strings.TrimSpace(r.PostForm.Get("email"))),
		Password: r.PostForm.Get("password"),
		Confirm:  r.PostForm.Get("confirm"),
	}

	reject := func(code int, msg string) {
		g.h.Render(w, r, code, "auth_register.html", "Register", map[string]any{
			"Username": reg.Username,
			"Email":    reg.Email,
			"Error":    msg,
		})
	}

	if msg := reg.validate(); msg != "" {
		reject(http.StatusBadRequest, msg)
		return
	}

	hash, err := g.app.Auth.HashPassword(reg.Password)
	if err != nil {
		if errors.Is(err, authsvc.ErrPasswordTooShort) || errors.Is(err, authsvc.ErrPasswordTooLong) {
			reject(http.StatusBadRequest, err.Error())
			return
		}
		g.h.Fail(w, r, err)
		return
	}

	// The first account administers the forum.
	user, err := g.app.Store.CreateUser(r.Context(), database.CreateUserParams{
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: hash,
		AdminIfFirst: true,
	})
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			reject(http.StatusConflict, "That username or email is already taken.")
			return
		}
		g.h.Fail(w, r, err)
		return
	}
	g.h.Log().Info("User registered", "user_id", user.ID, "admin", user.IsAdmin)

	if err := g.app.Login.Login(w, r, user.ID); err != nil {
		g.h.Fail(w, r, err)
		return
	}
	g.h.Flash(w, r, "Welcome, "+user.Username+"!")
	http.Redirect(w, r, g.forumIndex(), http.StatusSeeOther)
}

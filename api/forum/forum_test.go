package forum_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jacobshu/forum/api/apitest"
	"github.com/jacobshu/forum/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "correct horse battery"

type forum struct {
	env   *apitest.Env
	admin *apitest.Client
	bob   *apitest.Client
	carol *apitest.Client
	bobID string
}

func newForum(t *testing.T) *forum {
	t.Helper()
	env := apitest.New(t)
	env.CreateUser(t, "root", "root@example.com", password, true)
	bob := env.CreateUser(t, "bob", "bob@example.com", password, false)
	env.CreateUser(t, "carol", "carol@example.com", password, false)

	f := &forum{env: env, admin: env.Client(), bob: env.Client(), carol: env.Client(), bobID: bob.ID.String()}
	f.admin.Login(t, "root@example.com", password)
	f.bob.Login(t, "bob@example.com", password)
	f.carol.Login(t, "carol@example.com", password)
	return f
}

// location returns the path a 303 response points at.
func location(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	res := rec.Result()
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	return res.Header.Get("Location")
}

func (f *forum) category(t *testing.T, title string) string {
	t.Helper()
	loc := location(t, f.admin.PostForm("/forum/c", url.Values{"title": {title}, "description": {"All things " + title}}))
	require.True(t, strings.HasPrefix(loc, "/forum/c/"), loc)
	return loc
}

func (f *forum) thread(t *testing.T, categoryPath, title, body string) string {
	t.Helper()
	loc := location(t, f.bob.PostForm(categoryPath+"/threads", url.Values{"title": {title}, "body": {body}}))
	require.True(t, strings.HasPrefix(loc, "/forum/t/"), loc)
	return loc
}

func TestCategories(t *testing.T) {
	f := newForum(t)

	rec := f.bob.PostForm("/forum/c", url.Values{"title": {"General"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	cat := f.category(t, "General")

	rec = f.admin.PostForm("/forum/c", url.Values{"title": {"General"}})
	assert.Equal(t, "/forum/", location(t, rec))
	rec = f.admin.Get("/forum/")
	assert.Contains(t, rec.Body.String(), "already exists")

	rec = f.env.Client().Get("/forum/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "General")

	rec = f.env.Client().Get(cat)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "All things General")
	assert.Contains(t, rec.Body.String(), "No threads yet.")

	assert.Equal(t, http.StatusNotFound, f.env.Client().Get("/forum/c/not-a-uuid").Code)
	assert.Equal(t, http.StatusNotFound, f.env.Client().Get("/forum/c/00000000-0000-0000-0000-000000000001").Code)
}

func TestThreadsAndReplies(t *testing.T) {
	f := newForum(t)
	cat := f.category(t, "General")

	rec := f.env.Client().PostForm(cat+"/threads", url.Values{"title": {"Hi"}, "body": {"Hello"}})
	assert.Equal(t, http.StatusFound, rec.Code)

	rec = f.bob.PostForm(cat+"/threads", url.Values{"title": {"  "}, "body": {"Hello"}})
	assert.Equal(t, cat, location(t, rec))
	assert.Contains(t, f.bob.Get(cat).Body.String(), "title cannot be empty")

	thread := f.thread(t, cat, "First thread", "What a kerfuffle this is")

	rec = f.env.Client().Get(thread)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "First thread")
	assert.Contains(t, body, "What a **** this is")
	assert.NotContains(t, body, "kerfuffle")
	assert.Contains(t, body, "to reply.")

	rec = f.carol.PostForm(thread+"/posts", url.Values{"body": {"Welcome!"}})
	loc := location(t, rec)
	assert.True(t, strings.HasPrefix(loc, thread+"#post-"), loc)

	rec = f.carol.PostForm(thread+"/posts", url.Values{"body": {strings.Repeat("x", 5001)}})
	assert.Equal(t, thread, location(t, rec))

	rec = f.env.Client().Get(cat)
	assert.Contains(t, rec.Body.String(), "First thread")
	assert.Contains(t, rec.Body.String(), "<td>2</td>")

	rec = f.carol.PostForm("/forum/t/00000000-0000-0000-0000-000000000001/posts", url.Values{"body": {"lost"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletePost(t *testing.T) {
	f := newForum(t)
	cat := f.category(t, "General")
	thread := f.thread(t, cat, "First thread", "Opening post")

	posts := f.apiPosts(t, thread, "")
	require.Len(t, posts, 1)
	del := "/forum/p/" + posts[0].ID.String() + "/delete"

	rec := f.carol.PostForm(del, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.bob.PostForm(del, nil)
	assert.Equal(t, thread, location(t, rec))
	assert.Empty(t, f.apiPosts(t, thread, ""))

	rec = f.bob.PostForm(del, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	loc := location(t, f.carol.PostForm(thread+"/posts", url.Values{"body": {"Reply"}}))
	postID := loc[strings.Index(loc, "#post-")+len("#post-"):]
	rec = f.admin.PostForm("/forum/p/"+postID+"/delete", nil)
	assert.Equal(t, thread, location(t, rec))
}

func (f *forum) apiPosts(t *testing.T, thread, query string) []types.Post {
	t.Helper()
	id := strings.TrimPrefix(thread, "/forum/t/")
	rec := f.env.Client().Get("/forum/api/t/" + id + "/posts" + query)
	require.Equal(t, http.StatusOK, rec.Code)
	var posts []types.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	return posts
}

func TestPostsAPI(t *testing.T) {
	f := newForum(t)
	cat := f.category(t, "General")
	thread := f.thread(t, cat, "API thread", "first")
	api := "/forum/api/t/" + strings.TrimPrefix(thread, "/forum/t/") + "/posts"

	c := f.env.Client()
	rec := c.PostJSON(api, `{"body":"anonymous"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.PostJSON(api, `{"body":"forged"}`, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.PostJSON("/auth/token", `{"email":"bob@example.com","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tok types.Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))

	rec = c.PostJSON(api, `{"body":"second Sharbert"}`, tok.Token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created types.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "second ****", created.Body)
	assert.Equal(t, f.bobID, created.UserID.String())
	assert.Equal(t, "bob", created.Author)

	rec = c.PostJSON(api, `{"body":""}`, tok.Token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.PostJSON("/forum/api/t/00000000-0000-0000-0000-000000000001/posts", `{"body":"lost"}`, tok.Token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	asc := f.apiPosts(t, thread, "")
	require.Len(t, asc, 2)
	assert.Equal(t, "first", asc[0].Body)

	desc := f.apiPosts(t, thread, "?sort=desc")
	require.Len(t, desc, 2)
	assert.Equal(t, "first", desc[1].Body)

	assert.Equal(t, http.StatusNotFound, c.Get("/forum/api/t/not-a-uuid/posts").Code)
}

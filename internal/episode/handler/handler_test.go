package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/castboard/castboard/internal/csrf"
	"github.com/castboard/castboard/internal/episode"
	"github.com/castboard/castboard/internal/episode/repository"
	"github.com/castboard/castboard/internal/models"
	"github.com/castboard/castboard/internal/router"
	"github.com/castboard/castboard/internal/tokens"
	"github.com/castboard/castboard/internal/users"
	"github.com/castboard/castboard/internal/views"
	"github.com/castboard/castboard/pkg/metrics"
	"github.com/castboard/castboard/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "handler-test-secret-32-bytes-xxxxxx"

var (
	admin = &models.Principal{Sub: "admin-sub", Name: "Admin", Roles: []string{models.RoleAdmin}}
	alice = &models.Principal{Sub: "alice-sub", Name: "Alice", Email: "alice@example.com"}
)

type fakeMedia struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeMedia) UploadFile(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = b
	return nil
}

func (f *fakeMedia) DeleteFile(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeMedia) GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "https://media.test/" + key + "?sig=1", nil
}

type fixture struct {
	t      *testing.T
	srv    http.Handler
	store  *repository.MemoryStore
	csrf   *csrf.Manager
	users  *users.Service
	tokens map[*models.Principal]string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repository.NewMemoryStore()
	mgr, err := csrf.NewManager("csrf-handler-secret", time.Hour)
	require.NoError(t, err)
	userSvc := users.NewService(users.NewMemoryUserRepository())

	table := router.NewTable()
	New(store, mgr, append([]Option{WithUsers(userSvc)}, opts...)...).Register(table)

	r := gin.New()
	r.Use(middleware.OptionalAuth(tokens.NewHMACVerifier(jwtSecret)))
	require.NoError(t, views.Install(r, table))
	table.Mount(r)

	f := &fixture{t: t, srv: middleware.MethodOverride(r), store: store, csrf: mgr, users: userSvc, tokens: map[*models.Principal]string{}}
	for _, p := range []*models.Principal{admin, alice} {
		tok, err := tokens.GenerateAccessToken(jwtSecret, p, time.Hour)
		require.NoError(t, err)
		f.tokens[p] = tok
	}
	return f
}

func (f *fixture) do(req *http.Request, as *models.Principal) *httptest.ResponseRecorder {
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+f.tokens[as])
	}
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)
	return w
}

func (f *fixture) get(path string, as *models.Principal) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, path, nil), as)
}

func (f *fixture) send(method, path string, values url.Values, as *models.Principal) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(req, as)
}

func (f *fixture) token(session string, id int64) string {
	tok, err := f.csrf.Generate(session, "delete"+strconv.FormatInt(id, 10))
	require.NoError(f.t, err)
	return tok
}

func (f *fixture) seed(title, slug string) *episode.Episode {
	e := &episode.Episode{Title: title, Slug: slug}
	require.NoError(f.t, f.store.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Episodes().Save(ctx, e)
	}))
	return e
}

func (f *fixture) seedComment(episodeID int64, body string) *episode.Comment {
	c := &episode.Comment{EpisodeID: episodeID, AuthorID: alice.Sub, AuthorName: alice.Name, Body: body}
	require.NoError(f.t, f.store.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Comments().Save(ctx, c)
	}))
	return c
}

func (f *fixture) episodes() []*episode.Episode {
	var list []*episode.Episode
	require.NoError(f.t, f.store.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) (err error) {
		list, err = tx.Episodes().List(ctx)
		return err
	}))
	return list
}

func (f *fixture) comments(episodeID int64) []*episode.Comment {
	var list []*episode.Comment
	require.NoError(f.t, f.store.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) (err error) {
		list, err = tx.Comments().ListByEpisode(ctx, episodeID)
		return err
	}))
	return list
}

func requireRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	require.Equal(t, location, w.Header().Get("Location"))
}

func TestPilotEpisodeScenario(t *testing.T) {
	f := newFixture(t)

	w := f.send(http.MethodPost, "/episode/new", url.Values{"title": {"Pilot Episode"}, "description": {"Where it all begins."}}, admin)
	requireRedirect(t, w, "/episode/")

	list := f.episodes()
	require.Len(t, list, 1)
	pilot := list[0]
	require.Equal(t, "pilot-episode", pilot.Slug)

	w = f.get("/episode/pilot-episode", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Pilot Episode")
	require.Contains(t, w.Body.String(), "Where it all begins.")

	path := "/episode/" + strconv.FormatInt(pilot.ID, 10)
	w = f.send(http.MethodDelete, path, url.Values{"_token": {f.token(admin.Sub, pilot.ID)}}, admin)
	requireRedirect(t, w, "/episode/")
	require.Empty(t, f.episodes())

	w = f.get("/episode/pilot-episode", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestIndex(t *testing.T) {
	f := newFixture(t)
	w := f.get("/episode/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "No episodes yet.")

	f.seed("First", "first")
	f.seed("Second", "second")
	w = f.get("/episode/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Less(t, strings.Index(body, "First"), strings.Index(body, "Second"))
	require.NotContains(t, body, "New episode")

	w = f.get("/episode/", admin)
	require.Contains(t, w.Body.String(), "New episode")
}

func TestCreateEpisode_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	values := url.Values{"title": {"Sneaky"}}

	require.Equal(t, http.StatusUnauthorized, f.send(http.MethodPost, "/episode/new", values, nil).Code)
	require.Equal(t, http.StatusForbidden, f.send(http.MethodPost, "/episode/new", values, alice).Code)
	require.Equal(t, http.StatusForbidden, f.get("/episode/new", alice).Code)
	require.Empty(t, f.episodes())
}

func TestCreateEpisode_Form(t *testing.T) {
	f := newFixture(t)

	w := f.get("/episode/new", admin)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `name="title"`)

	for _, values := range []url.Values{
		{"title": {""}},
		{"title": {"   "}},
		{"title": {"?!"}},
		{"title": {"Fine"}, "media_url": {"nope"}},
	} {
		w = f.send(http.MethodPost, "/episode/new", values, admin)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, "values %v", values)
		require.Contains(t, w.Body.String(), `class="error"`)
	}
	require.Empty(t, f.episodes())
}

func TestShow(t *testing.T) {
	f := newFixture(t)
	e := f.seed("Pilot Episode", "pilot-episode")
	c := f.seedComment(e.ID, "first!")

	w := f.get("/episode/pilot-episode", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "first!")
	require.Contains(t, body, "/episode/delete/"+strconv.FormatInt(c.ID, 10))
	require.NotContains(t, body, "/episode/pilot-episode/edit")

	require.Equal(t, http.StatusNotFound, f.get("/episode/missing", nil).Code)
}

func TestShow_DuplicateSlugResolvesLowestID(t *testing.T) {
	f := newFixture(t)
	first := f.seed("Same", "same")
	f.seed("Same", "same")

	req := httptest.NewRequest(http.MethodGet, "/episode/same", nil)
	req.Header.Set("Accept", "application/json")
	w := f.do(req, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Episode episode.Episode `json:"Episode"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, first.ID, got.Episode.ID)
}

func TestShow_JSON(t *testing.T) {
	f := newFixture(t)
	e := f.seed("Pilot Episode", "pilot-episode")
	c := f.seedComment(e.ID, "hello")

	req := httptest.NewRequest(http.MethodGet, "/episode/pilot-episode", nil)
	req.Header.Set("Accept", "application/json")
	w := f.do(req, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var got struct {
		Episode       episode.Episode   `json:"Episode"`
		DeleteToken   string            `json:"DeleteToken"`
		CommentTokens map[string]string `json:"CommentTokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "pilot-episode", got.Episode.Slug)
	require.Len(t, got.Episode.Comments, 1)
	require.Equal(t, "hello", got.Episode.Comments[0].Body)

	// tokens are rendered for the anonymous session
	require.True(t, f.csrf.Valid(csrf.AnonymousSession, "delete"+strconv.FormatInt(e.ID, 10), got.DeleteToken))
	require.True(t, f.csrf.Valid(csrf.AnonymousSession, "delete"+strconv.FormatInt(c.ID, 10), got.CommentTokens[strconv.FormatInt(c.ID, 10)]))
}

func TestEditEpisode(t *testing.T) {
	f := newFixture(t)
	e := f.seed("Pilot Episode", "pilot-episode")

	w := f.get("/episode/pilot-episode/edit", admin)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `value="Pilot Episode"`)

	require.Equal(t, http.StatusForbidden, f.send(http.MethodPost, "/episode/pilot-episode/edit", url.Values{"title": {"Hijacked"}}, alice).Code)

	w = f.send(http.MethodPost, "/episode/pilot-episode/edit", url.Values{"title": {""}}, admin)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "pilot-episode", f.episodes()[0].Slug)

	w = f.send(http.MethodPost, "/episode/pilot-episode/edit", url.Values{"title": {"Pilot Episode: Reloaded"}}, admin)
	requireRedirect(t, w, "/episode/")

	list := f.episodes()
	require.Len(t, list, 1)
	require.Equal(t, e.ID, list[0].ID)
	require.Equal(t, "Pilot Episode: Reloaded", list[0].Title)
	require.Equal(t, "pilot-episode-reloaded", list[0].Slug)

	require.Equal(t, http.StatusNotFound, f.get("/episode/pilot-episode", nil).Code)
	require.Equal(t, http.StatusOK, f.get("/episode/pilot-episode-reloaded", nil).Code)
	require.Equal(t, http.StatusNotFound, f.get("/episode/pilot-episode/edit", admin).Code)
}

func TestDeleteEpisode_InvalidTokenIsQuiet(t *testing.T) {
	f := newFixture(t)
	e := f.seed("Keep Me", "keep-me")
	other := f.seed("Other", "other")
	path := "/episode/" + strconv.FormatInt(e.ID, 10)
	before := testutil.ToFloat64(metrics.CSRFRejected.WithLabelValues("episode"))

	cases := map[string]url.Values{
		"missing":           {},
		"garbage":           {"_token": {"garbage"}},
		"other intention":   {"_token": {f.token(admin.Sub, other.ID)}},
		"other session":     {"_token": {f.token(alice.Sub, e.ID)}},
		"anonymous session": {"_token": {f.token(csrf.AnonymousSession, e.ID)}},
	}
	for name, values := range cases {
		w := f.send(http.MethodDelete, path, values, admin)
		requireRedirect(t, w, "/episode/")
		require.Len(t, f.episodes(), 2, name)
	}
	require.Equal(t, before+float64(len(cases)), testutil.ToFloat64(metrics.CSRFRejected.WithLabelValues("episode")))
}

func TestDeleteEpisode_RemovesOnlyTarget(t *testing.T) {
	f := newFixture(t)
	target := f.seed("Target", "target")
	keep := f.seed("Keep", "keep")
	f.seedComment(target.ID, "goes away")
	kept := f.seedComment(keep.ID, "stays")

	w := f.send(http.MethodDelete, "/episode/"+strconv.FormatInt(target.ID, 10), url.Values{"_token": {f.token(admin.Sub, target.ID)}}, admin)
	requireRedirect(t, w, "/episode/")

	list := f.episodes()
	require.Len(t, list, 1)
	require.Equal(t, keep.ID, list[0].ID)
	require.Empty(t, f.comments(target.ID))
	require.Len(t, f.comments(keep.ID), 1)
	require.Equal(t, kept.ID, f.comments(keep.ID)[0].ID)
}

func TestDeleteEpisode_MethodOverride(t *testing.T) {
	f := newFixture(t)
	e := f.seed("Override", "override")

	w := f.send(http.MethodPost, "/episode/"+strconv.FormatInt(e.ID, 10), url.Values{
		"_method": {"DELETE"},
		"_token":  {f.token(admin.Sub, e.ID)},
	}, admin)
	requireRedirect(t, w, "/episode/")
	require.Empty(t, f.episodes())
}

func TestDeleteEpisode_Guards(t *testing.T) {
	f := newFixture(t)
	e := f.seed("Guarded", "guarded")
	path := "/episode/" + strconv.FormatInt(e.ID, 10)
	values := url.Values{"_token": {f.token(alice.Sub, e.ID)}}

	require.Equal(t, http.StatusUnauthorized, f.send(http.MethodDelete, path, values, nil).Code)
	require.Equal(t, http.StatusForbidden, f.send(http.MethodDelete, path, values, alice).Code)
	require.Equal(t, http.StatusNotFound, f.send(http.MethodDelete, "/episode/999", values, admin).Code)
	require.Equal(t, http.StatusNotFound, f.send(http.MethodDelete, "/episode/guarded", values, admin).Code)
	require.Len(t, f.episodes(), 1)
}

func TestCreateComment_AntiSpoofing(t *testing.T) {
	f := newFixture(t)
	e := f.seed("Pilot Episode", "pilot-episode")
	decoy := f.seed("Decoy", "decoy")

	w := f.send(http.MethodPost, "/episode/"+strconv.FormatInt(e.ID, 10)+"/new", url.Values{
		"body":       {"Great show"},
		"author":     {"mallory"},
		"authorId":   {"mallory-sub"},
		"author_id":  {"mallory-sub"},
		"episode":    {strconv.FormatInt(decoy.ID, 10)},
		"episodeId":  {strconv.FormatInt(decoy.ID, 10)},
		"episode_id": {strconv.FormatInt(decoy.ID, 10)},
	}, alice)
	requireRedirect(t, w, "/episode/pilot-episode")

	list := f.comments(e.ID)
	require.Len(t, list, 1)
	require.Equal(t, e.ID, list[0].EpisodeID)
	require.Equal(t, alice.Sub, list[0].AuthorID)
	require.Equal(t, "Alice", list[0].AuthorName)
	require.Equal(t, "Great show", list[0].Body)
	require.Empty(t, f.comments(decoy.ID))

	u, err := f.users.GetBySub(context.Background(), alice.Sub)
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, "alice@example.com", u.Email)
}

func TestCreateComment_JSONPayloadCannotSpoof(t *testing.T) {
	f := newFixture(t)
	e := f.seed("Pilot Episode", "pilot-episode")

	req := httptest.NewRequest(http.MethodPost, "/episode/"+strconv.FormatInt(e.ID, 10)+"/new",
		strings.NewReader(`{"body":"via api","authorId":"mallory","episodeId":42}`))
	req.Header.Set("Content-Type", "application/json")
	w := f.do(req, alice)
	requireRedirect(t, w, "/episode/pilot-episode")

	list := f.comments(e.ID)
	require.Len(t, list, 1)
	require.Equal(t, alice.Sub, list[0].AuthorID)
}

func TestCreateComment_Guards(t *testing.T) {
	f := newFixture(t)
	e := f.seed("Pilot Episode", "pilot-episode")
	path := "/episode/" + strconv.FormatInt(e.ID, 10) + "/new"

	require.Equal(t, http.StatusUnauthorized, f.send(http.MethodPost, path, url.Values{"body": {"anon"}}, nil).Code)
	require.Equal(t, http.StatusNotFound, f.send(http.MethodPost, "/episode/999/new", url.Values{"body": {"x"}}, alice).Code)

	w := f.get(path, alice)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `name="body"`)

	w = f.send(http.MethodPost, path, url.Values{"body": {"   "}}, alice)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Contains(t, w.Body.String(), "This value should not be blank.")
	require.Empty(t, f.comments(e.ID))
}

func TestDeleteComment(t *testing.T) {
	f := newFixture(t)
	e := f.seed("Pilot Episode", "pilot-episode")
	target := f.seedComment(e.ID, "spam")
	keep := f.seedComment(e.ID, "ham")
	path := "/episode/delete/" + strconv.FormatInt(target.ID, 10)
	before := testutil.ToFloat64(metrics.CSRFRejected.WithLabelValues("comment"))

	w := f.send(http.MethodDelete, path, url.Values{"_token": {"nope"}}, nil)
	requireRedirect(t, w, "/episode/")
	require.Len(t, f.comments(e.ID), 2)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.CSRFRejected.WithLabelValues("comment")))

	w = f.send(http.MethodDelete, path, url.Values{"_token": {f.token(csrf.AnonymousSession, target.ID)}}, nil)
	requireRedirect(t, w, "/episode/")
	list := f.comments(e.ID)
	require.Len(t, list, 1)
	require.Equal(t, keep.ID, list[0].ID)
	require.Len(t, f.episodes(), 1)

	require.Equal(t, http.StatusNotFound, f.send(http.MethodDelete, path, url.Values{}, nil).Code)
}

func TestDeleteComment_TokenIsBoundToSession(t *testing.T) {
	f := newFixture(t)
	e := f.seed("Pilot Episode", "pilot-episode")
	c := f.seedComment(e.ID, "mine")
	path := "/episode/delete/" + strconv.FormatInt(c.ID, 10)

	w := f.send(http.MethodDelete, path, url.Values{"_token": {f.token(alice.Sub, c.ID)}}, nil)
	requireRedirect(t, w, "/episode/")
	require.Len(t, f.comments(e.ID), 1)

	w = f.send(http.MethodDelete, path, url.Values{"_token": {f.token(alice.Sub, c.ID)}}, alice)
	requireRedirect(t, w, "/episode/")
	require.Empty(t, f.comments(e.ID))
}

func multipartEpisode(t *testing.T, title, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", title))
	fw, err := mw.CreateFormFile("media", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateEpisode_MediaUpload(t *testing.T) {
	media := &fakeMedia{objects: map[string][]byte{}}
	f := newFixture(t, WithMedia(media))

	body, contentType := multipartEpisode(t, "With Audio", "pilot.mp3", []byte("ID3-audio"))
	req := httptest.NewRequest(http.MethodPost, "/episode/new", body)
	req.Header.Set("Content-Type", contentType)
	requireRedirect(t, f.do(req, admin), "/episode/")

	list := f.episodes()
	require.Len(t, list, 1)
	require.True(t, strings.HasPrefix(list[0].MediaKey, "episodes/"))
	require.True(t, strings.HasSuffix(list[0].MediaKey, "/pilot.mp3"))
	require.Equal(t, []byte("ID3-audio"), media.objects[list[0].MediaKey])

	w := f.get("/episode/with-audio", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "https://media.test/"+list[0].MediaKey)
}

func TestEditEpisode_ReplacesMedia(t *testing.T) {
	media := &fakeMedia{objects: map[string][]byte{}}
	f := newFixture(t, WithMedia(media))

	body, contentType := multipartEpisode(t, "With Audio", "pilot.mp3", []byte("v1"))
	req := httptest.NewRequest(http.MethodPost, "/episode/new", body)
	req.Header.Set("Content-Type", contentType)
	requireRedirect(t, f.do(req, admin), "/episode/")
	firstKey := f.episodes()[0].MediaKey

	body, contentType = multipartEpisode(t, "With Audio", "pilot-v2.mp3", []byte("v2"))
	req = httptest.NewRequest(http.MethodPost, "/episode/with-audio/edit", body)
	req.Header.Set("Content-Type", contentType)
	requireRedirect(t, f.do(req, admin), "/episode/")

	list := f.episodes()
	require.Len(t, list, 1)
	require.NotEqual(t, firstKey, list[0].MediaKey)
	require.Equal(t, []byte("v2"), media.objects[list[0].MediaKey])
	require.NotContains(t, media.objects, firstKey)
	require.Len(t, media.objects, 1)
}

// brokenStore fails every transaction.
type brokenStore struct{ *repository.MemoryStore }

func (brokenStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return errors.New("disk full")
}

func TestCreateEpisode_FailedSaveDiscardsMedia(t *testing.T) {
	gin.SetMode(gin.TestMode)
	media := &fakeMedia{objects: map[string][]byte{}}
	mgr, err := csrf.NewManager("csrf-handler-secret", time.Hour)
	require.NoError(t, err)

	table := router.NewTable()
	New(brokenStore{repository.NewMemoryStore()}, mgr, WithMedia(media)).Register(table)
	r := gin.New()
	r.Use(middleware.OptionalAuth(tokens.NewHMACVerifier(jwtSecret)))
	require.NoError(t, views.Install(r, table))
	table.Mount(r)

	tok, err := tokens.GenerateAccessToken(jwtSecret, admin, time.Hour)
	require.NoError(t, err)
	body, contentType := multipartEpisode(t, "With Audio", "pilot.mp3", []byte("ID3"))
	req := httptest.NewRequest(http.MethodPost, "/episode/new", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Empty(t, media.objects)
}

func TestCreateEpisode_MediaUploadDisabled(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartEpisode(t, "With Audio", "pilot.mp3", []byte("ID3"))
	req := httptest.NewRequest(http.MethodPost, "/episode/new", body)
	req.Header.Set("Content-Type", contentType)
	w := f.do(req, admin)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Contains(t, w.Body.String(), "Media uploads are not enabled.")
	require.Empty(t, f.episodes())
}

func TestMutationsMetric(t *testing.T) {
	f := newFixture(t)
	before := testutil.ToFloat64(metrics.Mutations.WithLabelValues("episode", "create"))
	requireRedirect(t, f.send(http.MethodPost, "/episode/new", url.Values{"title": {"Counted"}}, admin), "/episode/")
	require.Equal(t, before+1, testutil.ToFloat64(metrics.Mutations.WithLabelValues("episode", "create")))
}

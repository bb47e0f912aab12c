// Package handler serves the episode and comment pages.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/castboard/castboard/internal/csrf"
	"github.com/castboard/castboard/internal/episode"
	"github.com/castboard/castboard/internal/episode/form"
	"github.com/castboard/castboard/internal/episode/repository"
	"github.com/castboard/castboard/internal/models"
	"github.com/castboard/castboard/internal/router"
	"github.com/castboard/castboard/internal/slugify"
	"github.com/castboard/castboard/internal/storage"
	"github.com/castboard/castboard/internal/users"
	"github.com/castboard/castboard/pkg/logger"
	"github.com/castboard/castboard/pkg/metrics"
	"github.com/castboard/castboard/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const (
	tokenField       = "_token"
	tokenHeader      = "X-CSRF-Token"
	maxDeleteBody    = 1 << 20
	presignedURLLife = time.Hour
)

// Handler implements the episode and comment routes.
type Handler struct {
	store  repository.Store
	csrf   *csrf.Manager
	media  storage.MediaStore
	users  *users.Service
	routes *router.Table
}

// Option configures optional collaborators.
type Option func(*Handler)

// WithMedia enables media uploads and presigned playback URLs.
func WithMedia(m storage.MediaStore) Option {
	return func(h *Handler) { h.media = m }
}

// WithUsers records commenter profiles.
func WithUsers(s *users.Service) Option {
	return func(h *Handler) { h.users = s }
}

// New returns a Handler over store. tokens signs and checks the delete forms.
func New(store repository.Store, tokens *csrf.Manager, opts ...Option) *Handler {
	h := &Handler{store: store, csrf: tokens}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds the episode and comment routes to t. Redirects are
// resolved against the same table.
func (h *Handler) Register(t *router.Table) {
	h.routes = t
	admin := middleware.RequireRole(models.RoleAdmin)
	get := []string{http.MethodGet}
	getPost := []string{http.MethodGet, http.MethodPost}
	del := []string{http.MethodDelete}

	t.Add(router.Route{Name: "episode_index", Methods: get, Path: "/episode/", Description: "List episodes",
		Handlers: []gin.HandlerFunc{h.index}})
	t.Add(router.Route{Name: "episode_new", Methods: getPost, Path: "/episode/new", Description: "Create an episode",
		Handlers: []gin.HandlerFunc{admin, h.create}})
	t.Add(router.Route{Name: "episode_show", Methods: get, Path: "/episode/:episode", Description: "Show an episode by slug",
		Handlers: []gin.HandlerFunc{h.show}})
	t.Add(router.Route{Name: "episode_edit", Methods: getPost, Path: "/episode/:episode/edit", Description: "Edit an episode by slug",
		Handlers: []gin.HandlerFunc{admin, h.edit}})
	t.Add(router.Route{Name: "episode_delete", Methods: del, Path: "/episode/:episode", Description: "Delete an episode by id",
		Handlers: []gin.HandlerFunc{admin, h.delete}})
	t.Add(router.Route{Name: "comment_new", Methods: getPost, Path: "/episode/:episode/new", Description: "Comment on an episode by id",
		Handlers: []gin.HandlerFunc{middleware.RequireAuth(), h.createComment}})
	t.Add(router.Route{Name: "comment_delete", Methods: del, Path: "/episode/delete/:comment", Description: "Delete a comment by id",
		Handlers: []gin.HandlerFunc{h.deleteComment}})
}

func (h *Handler) index(c *gin.Context) {
	var list []*episode.Episode
	err := h.store.WithTx(c.Request.Context(), func(ctx context.Context, tx repository.Tx) (err error) {
		list, err = tx.Episodes().List(ctx)
		return err
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "episode/index.html", gin.H{"Episodes": list})
}

func (h *Handler) create(c *gin.Context) {
	f := &form.EpisodeForm{}
	res := form.Bind(c, f)
	file := h.checkMedia(c, res)
	if !res.Valid() {
		h.render(c, formStatus(res), "episode/new.html", gin.H{"Form": f, "Errors": res.Errors})
		return
	}

	e := &episode.Episode{}
	f.Apply(e)
	e.Slug = slugify.Generate(e.Title)
	if err := h.upload(c.Request.Context(), e, file); err != nil {
		h.fail(c, err)
		return
	}
	err := h.store.WithTx(c.Request.Context(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Episodes().Save(ctx, e)
	})
	if err != nil {
		if file != nil {
			h.discardMedia(c.Request.Context(), e.MediaKey)
		}
		h.fail(c, err)
		return
	}
	metrics.Mutations.WithLabelValues("episode", "create").Inc()
	logger.Infof("episode %d %q created by %s", e.ID, e.Slug, sessionID(c))
	h.redirect(c, "episode_index")
}

func (h *Handler) show(c *gin.Context) {
	e, ok := h.episodeBySlug(c, true)
	if !ok {
		return
	}
	session := sessionID(c)
	deleteToken, err := h.csrf.Generate(session, deleteIntention(e.ID))
	if err != nil {
		h.fail(c, err)
		return
	}
	commentTokens := make(map[int64]string, len(e.Comments))
	for _, cm := range e.Comments {
		if commentTokens[cm.ID], err = h.csrf.Generate(session, deleteIntention(cm.ID)); err != nil {
			h.fail(c, err)
			return
		}
	}
	h.render(c, http.StatusOK, "episode/show.html", gin.H{
		"Title":         e.Title,
		"Episode":       e,
		"MediaURL":      h.playbackURL(c.Request.Context(), e),
		"DeleteToken":   deleteToken,
		"CommentTokens": commentTokens,
	})
}

func (h *Handler) edit(c *gin.Context) {
	e, ok := h.episodeBySlug(c, false)
	if !ok {
		return
	}
	f := form.NewEpisodeForm(e)
	res := form.Bind(c, f)
	file := h.checkMedia(c, res)
	if !res.Valid() {
		token, err := h.csrf.Generate(sessionID(c), deleteIntention(e.ID))
		if err != nil {
			h.fail(c, err)
			return
		}
		h.render(c, formStatus(res), "episode/edit.html", gin.H{"Title": e.Title, "Episode": e, "Form": f, "Errors": res.Errors, "DeleteToken": token})
		return
	}

	f.Apply(e)
	e.Slug = slugify.Generate(e.Title)
	previousKey := e.MediaKey
	if err := h.upload(c.Request.Context(), e, file); err != nil {
		h.fail(c, err)
		return
	}
	err := h.store.WithTx(c.Request.Context(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Episodes().Save(ctx, e)
	})
	if err != nil {
		if file != nil {
			h.discardMedia(c.Request.Context(), e.MediaKey)
		}
		h.fail(c, err)
		return
	}
	if file != nil && previousKey != "" && previousKey != e.MediaKey {
		h.discardMedia(c.Request.Context(), previousKey)
	}
	metrics.Mutations.WithLabelValues("episode", "update").Inc()
	logger.Infof("episode %d updated by %s, slug %q", e.ID, sessionID(c), e.Slug)
	h.redirect(c, "episode_index")
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := h.pathID(c, "episode")
	if !ok {
		return
	}
	var e *episode.Episode
	err := h.store.WithTx(c.Request.Context(), func(ctx context.Context, tx repository.Tx) (err error) {
		e, err = tx.Episodes().FindByID(ctx, id)
		return err
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.csrf.Valid(sessionID(c), deleteIntention(e.ID), formToken(c)) {
		err := h.store.WithTx(c.Request.Context(), func(ctx context.Context, tx repository.Tx) error {
			return tx.Episodes().Delete(ctx, e.ID)
		})
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			h.fail(c, err)
			return
		}
		metrics.Mutations.WithLabelValues("episode", "delete").Inc()
		logger.Infof("episode %d deleted by %s", e.ID, sessionID(c))
	} else {
		metrics.CSRFRejected.WithLabelValues("episode").Inc()
		logger.Warnf("episode %d not deleted: invalid csrf token from %s", e.ID, c.ClientIP())
	}
	h.redirect(c, "episode_index")
}

func (h *Handler) createComment(c *gin.Context) {
	id, ok := h.pathID(c, "episode")
	if !ok {
		return
	}
	var e *episode.Episode
	err := h.store.WithTx(c.Request.Context(), func(ctx context.Context, tx repository.Tx) (err error) {
		e, err = tx.Episodes().FindByID(ctx, id)
		return err
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	f := &form.CommentForm{}
	res := form.Bind(c, f)
	if !res.Valid() {
		h.render(c, formStatus(res), "comment/new.html", gin.H{"Title": e.Title, "Episode": e, "Form": f, "Errors": res.Errors})
		return
	}

	// author and parent come from the request scope, never from the payload
	p := middleware.PrincipalFrom(c)
	cm := &episode.Comment{
		EpisodeID:  e.ID,
		AuthorID:   p.Sub,
		AuthorName: p.DisplayName(),
		Body:       f.Body,
	}
	if h.users != nil {
		if _, err := h.users.UpsertPrincipal(c.Request.Context(), p); err != nil {
			logger.Warnf("failed to record commenter %s: %v", p.Sub, err)
		}
	}
	err = h.store.WithTx(c.Request.Context(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Comments().Save(ctx, cm)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.Mutations.WithLabelValues("comment", "create").Inc()
	logger.Debugf("comment %d on episode %d by %s", cm.ID, e.ID, p.Sub)
	h.redirect(c, "episode_show", "episode", e.Slug)
}

func (h *Handler) deleteComment(c *gin.Context) {
	id, ok := h.pathID(c, "comment")
	if !ok {
		return
	}
	var cm *episode.Comment
	err := h.store.WithTx(c.Request.Context(), func(ctx context.Context, tx repository.Tx) (err error) {
		cm, err = tx.Comments().FindByID(ctx, id)
		return err
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.csrf.Valid(sessionID(c), deleteIntention(cm.ID), formToken(c)) {
		err := h.store.WithTx(c.Request.Context(), func(ctx context.Context, tx repository.Tx) error {
			return tx.Comments().Delete(ctx, cm.ID)
		})
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			h.fail(c, err)
			return
		}
		metrics.Mutations.WithLabelValues("comment", "delete").Inc()
		logger.Infof("comment %d on episode %d deleted by %s", cm.ID, cm.EpisodeID, sessionID(c))
	} else {
		metrics.CSRFRejected.WithLabelValues("comment").Inc()
		logger.Warnf("comment %d not deleted: invalid csrf token from %s", cm.ID, c.ClientIP())
	}
	h.redirect(c, "episode_index")
}

// episodeBySlug resolves the :episode segment as a slug and renders 404 when absent.
func (h *Handler) episodeBySlug(c *gin.Context, withComments bool) (*episode.Episode, bool) {
	var e *episode.Episode
	err := h.store.WithTx(c.Request.Context(), func(ctx context.Context, tx repository.Tx) (err error) {
		if e, err = tx.Episodes().FindBySlug(ctx, c.Param("episode")); err != nil {
			return err
		}
		if withComments {
			e.Comments, err = tx.Comments().ListByEpisode(ctx, e.ID)
		}
		return err
	})
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return e, true
}

// pathID parses a numeric route segment. Anything else cannot name an entity.
func (h *Handler) pathID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		h.renderError(c, http.StatusNotFound, "")
		return 0, false
	}
	return id, true
}

// checkMedia returns the uploaded media file. A file submitted while
// storage is disabled is reported as a form error.
func (h *Handler) checkMedia(c *gin.Context, res form.Result) *multipart.FileHeader {
	if !res.Submitted || c.ContentType() != binding.MIMEMultipartPOSTForm {
		return nil
	}
	fh, err := c.FormFile("media")
	if err != nil {
		return nil
	}
	if h.media == nil {
		res.Errors["media"] = "Media uploads are not enabled."
		return nil
	}
	return fh
}

func (h *Handler) upload(ctx context.Context, e *episode.Episode, fh *multipart.FileHeader) error {
	if fh == nil {
		return nil
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open media upload: %w", err)
	}
	defer f.Close()
	key := storage.MediaKey(fh.Filename)
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := h.media.UploadFile(ctx, key, f, fh.Size, contentType); err != nil {
		return fmt.Errorf("upload media: %w", err)
	}
	e.MediaKey = key
	return nil
}

// discardMedia removes an object no episode refers to. Failures are logged
// with the key so the object can be cleaned up by hand.
func (h *Handler) discardMedia(ctx context.Context, key string) {
	if key == "" || h.media == nil {
		return
	}
	if err := h.media.DeleteFile(ctx, key); err != nil {
		logger.Warnf("orphaned media object %s: %v", key, err)
	}
}

func (h *Handler) playbackURL(ctx context.Context, e *episode.Episode) string {
	if e.MediaKey == "" || h.media == nil {
		return ""
	}
	u, err := h.media.GetPresignedURL(ctx, e.MediaKey, presignedURLLife)
	if err != nil {
		logger.Warnf("presign media of episode %d: %v", e.ID, err)
		return ""
	}
	return u
}

func (h *Handler) render(c *gin.Context, code int, name string, data gin.H) {
	p := middleware.PrincipalFrom(c)
	data["User"] = p
	data["IsAdmin"] = p.HasRole(models.RoleAdmin)
	c.Negotiate(code, gin.Negotiate{
		Offered:  []string{binding.MIMEHTML, binding.MIMEJSON},
		HTMLName: name,
		Data:     data,
	})
}

func (h *Handler) renderError(c *gin.Context, code int, msg string) {
	h.render(c, code, "error.html", gin.H{"Status": code, "StatusText": http.StatusText(code), "Message": msg})
	c.Abort()
}

// NotFound renders the 404 page, as HTML or JSON depending on Accept.
func (h *Handler) NotFound(c *gin.Context) {
	h.renderError(c, http.StatusNotFound, "")
}

// fail maps repository.ErrNotFound to 404 and anything else to 500.
func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		h.renderError(c, http.StatusNotFound, "")
		return
	}
	_ = c.Error(err)
	logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	h.renderError(c, http.StatusInternalServerError, "")
}

func (h *Handler) redirect(c *gin.Context, name string, params ...any) {
	target, err := h.routes.URL(name, params...)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, target)
}

func formStatus(res form.Result) int {
	if res.Submitted {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}

func deleteIntention(id int64) string {
	return "delete" + strconv.FormatInt(id, 10)
}

// sessionID binds CSRF tokens to the caller.
func sessionID(c *gin.Context) string {
	if p := middleware.PrincipalFrom(c); p != nil {
		return p.Sub
	}
	return csrf.AnonymousSession
}

// formToken reads _token from the form body. net/http only parses bodies of
// POST, PUT and PATCH, so a plain DELETE body is decoded here.
func formToken(c *gin.Context) string {
	if tok := c.PostForm(tokenField); tok != "" {
		return tok
	}
	if c.Request.Method == http.MethodDelete && c.ContentType() == binding.MIMEPOSTForm && c.Request.Body != nil {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDeleteBody))
		if err == nil {
			if values, err := url.ParseQuery(string(body)); err == nil {
				return values.Get(tokenField)
			}
		}
	}
	return c.GetHeader(tokenHeader)
}

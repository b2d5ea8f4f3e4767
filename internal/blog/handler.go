package blog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/blogsite/internal/forms"
	"github.com/2beens/blogsite/internal/telemetry/metrics"
	"github.com/2beens/blogsite/internal/telemetry/tracing"
	"github.com/2beens/blogsite/internal/users"
	"github.com/2beens/blogsite/internal/web"
)

const (
	msgLoginToComment = "Get logged in before comment."
	msgEmptyComment   = "You haven't comment anything yet."
	msgTitleTaken     = "A post with this title already exists."
)

type postsRepo interface {
	All(ctx context.Context) ([]*Post, error)
	Get(ctx context.Context, id int) (*Post, error)
	Add(ctx context.Context, post *Post) error
	Update(ctx context.Context, post *Post) error
	Delete(ctx context.Context, id int) error
}

type commentsRepo interface {
	Add(ctx context.Context, comment *Comment) error
	ForPost(ctx context.Context, postID int) ([]*Comment, error)
}

type Handler struct {
	posts          postsRepo
	comments       commentsRepo
	renderer       *web.Renderer
	metricsManager *metrics.Manager
	// today's date provider, swapped in tests
	now func() time.Time
}

func NewHandler(
	posts postsRepo,
	comments commentsRepo,
	renderer *web.Renderer,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		posts:          posts,
		comments:       comments,
		renderer:       renderer,
		metricsManager: metricsManager,
		now:            time.Now,
	}
}

func (h *Handler) SetupRoutes(router *mux.Router, adminOnly mux.MiddlewareFunc) {
	router.HandleFunc("/", h.handleIndex).Methods("GET").Name("index")
	router.HandleFunc("/post/{id:[0-9]+}", h.handleShowPost).Methods("GET").Name("show-post")
	router.HandleFunc("/post/{id:[0-9]+}", h.handlePostComment).Methods("POST").Name("post-comment")
	router.HandleFunc("/add-comment/{id:[0-9]+}", h.handleAddComment).Methods("POST").Name("add-comment")

	router.Handle("/add-new-post", adminOnly(http.HandlerFunc(h.handleNewPostPage))).Methods("GET").Name("new-post-page")
	router.Handle("/add-new-post", adminOnly(http.HandlerFunc(h.handleNewPost))).Methods("POST").Name("new-post")
	router.Handle("/edit-post/{id:[0-9]+}", adminOnly(http.HandlerFunc(h.handleEditPostPage))).Methods("GET").Name("edit-post-page")
	router.Handle("/edit-post/{id:[0-9]+}", adminOnly(http.HandlerFunc(h.handleEditPost))).Methods("POST").Name("edit-post")
	router.Handle("/delete-post/{id:[0-9]+}", adminOnly(http.HandlerFunc(h.handleDeletePost))).Methods("GET").Name("delete-post")
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.All(r.Context())
	if err != nil {
		h.internalError(w, r, "get all posts", err)
		return
	}

	h.renderer.Render(w, r, "index", http.StatusOK, "", map[string]any{
		"Posts": posts,
	})
}

func (h *Handler) handleShowPost(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "blogHandler.showPost")
	defer span.End()

	post, ok := h.postFromPath(w, r.WithContext(ctx))
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("post.id", post.ID))

	comments, err := h.comments.ForPost(ctx, post.ID)
	if err != nil {
		h.internalError(w, r, "get post comments", err)
		return
	}

	h.renderer.Render(w, r, "post", http.StatusOK, post.Title, map[string]any{
		"Post":     post,
		"Comments": comments,
	})
}

// handlePostComment sends the comment form over to /add-comment, keeping method and body.
func (h *Handler) handlePostComment(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/add-comment/"+mux.Vars(r)["id"], http.StatusTemporaryRedirect)
}

func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.renderer.Error(w, r, http.StatusNotFound)
		return
	}
	postURL := fmt.Sprintf("/post/%d", postID)

	user := users.FromContext(r.Context())
	if user == nil {
		web.AddFlash(r, "info", msgLoginToComment)
		web.Redirect(w, r, postURL, http.StatusFound)
		return
	}

	if _, ok := h.postFromPath(w, r); !ok {
		return
	}

	form := forms.ParseCommentForm(r)
	if err := forms.Validate(form); err != nil {
		web.AddFlash(r, "warning", msgEmptyComment)
		web.Redirect(w, r, postURL, http.StatusFound)
		return
	}

	comment := &Comment{
		Body:     form.Body,
		Date:     FormatDate(h.now()),
		AuthorID: user.ID,
		PostID:   postID,
	}
	if err := h.comments.Add(r.Context(), comment); err != nil {
		if errors.Is(err, ErrPostNotFound) {
			h.renderer.Error(w, r, http.StatusNotFound)
			return
		}
		h.internalError(w, r, "add comment", err)
		return
	}

	h.metricsManager.CounterComments.Inc()
	log.Tracef("comment %d added to post %d by user %d", comment.ID, postID, user.ID)

	web.Redirect(w, r, postURL, http.StatusFound)
}

func (h *Handler) handleNewPostPage(w http.ResponseWriter, r *http.Request) {
	h.renderPostForm(w, r, 0, &forms.PostForm{}, nil)
}

func (h *Handler) handleNewPost(w http.ResponseWriter, r *http.Request) {
	form := forms.ParsePostForm(r)
	if err := forms.Validate(form); err != nil {
		h.renderPostForm(w, r, 0, form, forms.FieldErrors(err))
		return
	}

	now := h.now()
	post := &Post{
		Title:     form.Title,
		Subtitle:  form.Subtitle,
		Date:      FormatDate(now),
		Body:      form.Body,
		ImgURL:    form.ImgURL,
		AuthorID:  users.FromContext(r.Context()).ID,
		CreatedAt: now,
	}
	if err := h.posts.Add(r.Context(), post); err != nil {
		if errors.Is(err, ErrPostTitleTaken) {
			web.AddFlash(r, "error", msgTitleTaken)
			h.renderPostForm(w, r, 0, form, nil)
			return
		}
		h.internalError(w, r, "add post", err)
		return
	}

	h.metricsManager.CounterPosts.WithLabelValues("add").Inc()
	log.Infof("new post %d: [%s] added", post.ID, post.Title)

	web.Redirect(w, r, fmt.Sprintf("/post/%d", post.ID), http.StatusFound)
}

func (h *Handler) handleEditPostPage(w http.ResponseWriter, r *http.Request) {
	post, ok := h.postFromPath(w, r)
	if !ok {
		return
	}

	h.renderPostForm(w, r, post.ID, &forms.PostForm{
		Title:    post.Title,
		Subtitle: post.Subtitle,
		ImgURL:   post.ImgURL,
		Body:     post.Body,
	}, nil)
}

func (h *Handler) handleEditPost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.postFromPath(w, r)
	if !ok {
		return
	}

	form := forms.ParsePostForm(r)
	if err := forms.Validate(form); err != nil {
		h.renderPostForm(w, r, post.ID, form, forms.FieldErrors(err))
		return
	}

	post.Title = form.Title
	post.Subtitle = form.Subtitle
	post.ImgURL = form.ImgURL
	post.Body = form.Body
	if err := h.posts.Update(r.Context(), post); err != nil {
		switch {
		case errors.Is(err, ErrPostTitleTaken):
			web.AddFlash(r, "error", msgTitleTaken)
			h.renderPostForm(w, r, post.ID, form, nil)
		case errors.Is(err, ErrPostNotFound):
			h.renderer.Error(w, r, http.StatusNotFound)
		default:
			h.internalError(w, r, "update post", err)
		}
		return
	}

	h.metricsManager.CounterPosts.WithLabelValues("edit").Inc()
	log.Infof("post %d: [%s] updated", post.ID, post.Title)

	web.Redirect(w, r, fmt.Sprintf("/post/%d", post.ID), http.StatusFound)
}

func (h *Handler) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.renderer.Error(w, r, http.StatusNotFound)
		return
	}

	if err := h.posts.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrPostNotFound) {
			h.renderer.Error(w, r, http.StatusNotFound)
			return
		}
		h.internalError(w, r, "delete post", err)
		return
	}

	h.metricsManager.CounterPosts.WithLabelValues("delete").Inc()
	log.Infof("post %d deleted", id)

	web.Redirect(w, r, "/", http.StatusFound)
}

// postFromPath loads the post named by the {id} route var. It answers 404 itself when there is none.
func (h *Handler) postFromPath(w http.ResponseWriter, r *http.Request) (*Post, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.renderer.Error(w, r, http.StatusNotFound)
		return nil, false
	}

	post, err := h.posts.Get(r.Context(), id)
	if errors.Is(err, ErrPostNotFound) {
		h.renderer.Error(w, r, http.StatusNotFound)
		return nil, false
	} else if err != nil {
		h.internalError(w, r, "get post", err)
		return nil, false
	}

	return post, true
}

func (h *Handler) renderPostForm(w http.ResponseWriter, r *http.Request, postID int, form *forms.PostForm, errs forms.Errors) {
	title := "New Post"
	if postID != 0 {
		title = "Edit Post"
	}
	h.renderer.Render(w, r, "make_post", http.StatusOK, title, map[string]any{
		"PostID": postID,
		"Form":   form,
		"Errors": errs,
	})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, what string, err error) {
	tracing.RecordError(r.Context(), err)
	log.Errorf("%s: %s", what, err)
	h.renderer.Error(w, r, http.StatusInternalServerError)
}

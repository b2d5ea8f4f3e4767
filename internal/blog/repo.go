package blog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/blogsite/internal/telemetry/tracing"
	"github.com/2beens/blogsite/pkg"
)

const selectPosts = `
	SELECT p.id, p.title, p.subtitle, p.date, p.body, p.img_url, p.author_id, u.name, p.created_at
	FROM blog_posts p
	JOIN users u ON u.id = p.author_id`

var _ postsRepo = (*PostsRepo)(nil)

type PostsRepo struct {
	db *pgxpool.Pool
}

func NewPostsRepo(db *pgxpool.Pool) *PostsRepo {
	return &PostsRepo{
		db: db,
	}
}

// All returns every post, newest first.
func (r *PostsRepo) All(ctx context.Context) ([]*Post, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.All")
	defer span.End()

	rows, err := r.db.Query(ctx, selectPosts+` ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}

	posts, err := pgx.CollectRows(rows, scanPost)
	if err != nil {
		return nil, fmt.Errorf("collect posts: %w", err)
	}

	return posts, nil
}

func (r *PostsRepo) Get(ctx context.Context, id int) (*Post, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.Get")
	span.SetAttributes(attribute.Int("id", id))
	defer span.End()

	rows, err := r.db.Query(ctx, selectPosts+` WHERE p.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query post %d: %w", id, err)
	}

	post, err := pgx.CollectExactlyOneRow(rows, scanPost)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("collect post %d: %w", id, err)
	}

	return post, nil
}

func (r *PostsRepo) Add(ctx context.Context, post *Post) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.Add")
	defer span.End()

	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	if post.Date == "" {
		post.Date = FormatDate(post.CreatedAt)
	}

	if err := r.db.QueryRow(
		ctx,
		`INSERT INTO blog_posts (title, subtitle, date, body, img_url, author_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id;`,
		post.Title, post.Subtitle, post.Date, post.Body, post.ImgURL, post.AuthorID, post.CreatedAt,
	).Scan(&post.ID); err != nil {
		if pkg.IsUniqueViolationError(err, "blog_posts_title_key") {
			return ErrPostTitleTaken
		}
		return fmt.Errorf("insert post: %w", err)
	}

	span.SetAttributes(attribute.Int("id", post.ID))
	return nil
}

// Update changes title, subtitle, image url and body. Author and dates stay.
func (r *PostsRepo) Update(ctx context.Context, post *Post) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.Update")
	span.SetAttributes(attribute.Int("id", post.ID))
	defer span.End()

	tag, err := r.db.Exec(
		ctx,
		`UPDATE blog_posts SET title = $1, subtitle = $2, img_url = $3, body = $4 WHERE id = $5`,
		post.Title, post.Subtitle, post.ImgURL, post.Body, post.ID,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err, "blog_posts_title_key") {
			return ErrPostTitleTaken
		}
		return fmt.Errorf("update post %d: %w", post.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}

	return nil
}

// Delete removes the post; its comments go with it (ON DELETE CASCADE).
func (r *PostsRepo) Delete(ctx context.Context, id int) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.Delete")
	span.SetAttributes(attribute.Int("id", id))
	defer span.End()

	tag, err := r.db.Exec(ctx, `DELETE FROM blog_posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}

	return nil
}

func scanPost(row pgx.CollectableRow) (*Post, error) {
	var p Post
	if err := row.Scan(
		&p.ID, &p.Title, &p.Subtitle, &p.Date, &p.Body, &p.ImgURL, &p.AuthorID, &p.AuthorName, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

var _ commentsRepo = (*CommentsRepo)(nil)

type CommentsRepo struct {
	db *pgxpool.Pool
}

func NewCommentsRepo(db *pgxpool.Pool) *CommentsRepo {
	return &CommentsRepo{
		db: db,
	}
}

func (r *CommentsRepo) Add(ctx context.Context, comment *Comment) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "commentsRepo.Add")
	span.SetAttributes(attribute.Int("post.id", comment.PostID))
	defer span.End()

	if comment.Date == "" {
		comment.Date = FormatDate(time.Now())
	}

	if err := r.db.QueryRow(
		ctx,
		`INSERT INTO comments (body, date, author_id, blog_post_id) VALUES ($1, $2, $3, $4) RETURNING id;`,
		comment.Body, comment.Date, comment.AuthorID, comment.PostID,
	).Scan(&comment.ID); err != nil {
		if pkg.IsForeignKeyViolationError(err, "comments_blog_post_id_fkey") {
			return ErrPostNotFound
		}
		return fmt.Errorf("insert comment: %w", err)
	}

	return nil
}

// ForPost returns the comments of a post in the order they were written.
func (r *CommentsRepo) ForPost(ctx context.Context, postID int) ([]*Comment, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "commentsRepo.ForPost")
	span.SetAttributes(attribute.Int("post.id", postID))
	defer span.End()

	rows, err := r.db.Query(
		ctx,
		`SELECT c.id, c.body, c.date, c.author_id, u.name, u.email, c.blog_post_id
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.blog_post_id = $1
		ORDER BY c.id`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("query comments of post %d: %w", postID, err)
	}

	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Comment, error) {
		var c Comment
		err := row.Scan(&c.ID, &c.Body, &c.Date, &c.AuthorID, &c.AuthorName, &c.AuthorEmail, &c.PostID)
		return &c, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect comments of post %d: %w", postID, err)
	}

	return comments, nil
}

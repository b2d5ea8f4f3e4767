package blog

import (
	"context"
	"sort"
	"sync"

	"github.com/2beens/blogsite/internal/users"
)

// memStore mimics the postgres tables the repos work on, cascade included.
type memStore struct {
	mutex         sync.Mutex
	users         *users.MemRepo
	posts         map[int]*Post
	comments      map[int]*Comment
	lastPostID    int
	lastCommentID int

	allCalls int
	getCalls int
}

func newMemStore(usersRepo *users.MemRepo) *memStore {
	return &memStore{
		users:    usersRepo,
		posts:    map[int]*Post{},
		comments: map[int]*Comment{},
	}
}

type memPostsRepo struct{ s *memStore }

type memCommentsRepo struct{ s *memStore }

func (r memPostsRepo) All(context.Context) ([]*Post, error) {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()
	r.s.allCalls++

	posts := make([]*Post, 0, len(r.s.posts))
	for _, p := range r.s.posts {
		copied := *p
		posts = append(posts, &copied)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
	return posts, nil
}

func (r memPostsRepo) Get(_ context.Context, id int) (*Post, error) {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()
	r.s.getCalls++

	p, ok := r.s.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	copied := *p
	return &copied, nil
}

func (r memPostsRepo) Add(ctx context.Context, post *Post) error {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	for _, p := range r.s.posts {
		if p.Title == post.Title {
			return ErrPostTitleTaken
		}
	}
	if author, err := r.s.users.ByID(ctx, post.AuthorID); err == nil {
		post.AuthorName = author.Name
	}

	r.s.lastPostID++
	post.ID = r.s.lastPostID
	stored := *post
	r.s.posts[post.ID] = &stored
	return nil
}

func (r memPostsRepo) Update(_ context.Context, post *Post) error {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	stored, ok := r.s.posts[post.ID]
	if !ok {
		return ErrPostNotFound
	}
	for _, p := range r.s.posts {
		if p.ID != post.ID && p.Title == post.Title {
			return ErrPostTitleTaken
		}
	}
	stored.Title = post.Title
	stored.Subtitle = post.Subtitle
	stored.ImgURL = post.ImgURL
	stored.Body = post.Body
	return nil
}

func (r memPostsRepo) Delete(_ context.Context, id int) error {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	if _, ok := r.s.posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(r.s.posts, id)
	for cid, c := range r.s.comments {
		if c.PostID == id {
			delete(r.s.comments, cid)
		}
	}
	return nil
}

func (r memCommentsRepo) Add(ctx context.Context, comment *Comment) error {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	if _, ok := r.s.posts[comment.PostID]; !ok {
		return ErrPostNotFound
	}
	author, err := r.s.users.ByID(ctx, comment.AuthorID)
	if err != nil {
		return err
	}
	comment.AuthorName = author.Name
	comment.AuthorEmail = author.Email

	r.s.lastCommentID++
	comment.ID = r.s.lastCommentID
	stored := *comment
	r.s.comments[comment.ID] = &stored
	return nil
}

func (r memCommentsRepo) ForPost(_ context.Context, postID int) ([]*Comment, error) {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	var comments []*Comment
	for _, c := range r.s.comments {
		if c.PostID == postID {
			copied := *c
			comments = append(comments, &copied)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	return comments, nil
}

func (s *memStore) commentsCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.comments)
}

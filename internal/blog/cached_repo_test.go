package blog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/blogsite/internal/cache"
	"github.com/2beens/blogsite/internal/users"
)

func TestCachedPostsRepo(t *testing.T) {
	ctx := context.Background()
	usersRepo := users.NewMemRepo()
	require.NoError(t, usersRepo.Register(ctx, &users.User{Email: "admin@example.com", Name: "Admin"}))

	store := newMemStore(usersRepo)
	freecache := cache.NewFreecache(1)
	repo := NewCachedPostsRepo(memPostsRepo{store}, freecache, time.Minute)

	post := &Post{Title: "First", Subtitle: "Sub", Body: "<p>b</p>", ImgURL: "https://example.com/a.png", AuthorID: 1}
	require.NoError(t, repo.Add(ctx, post))

	got, err := repo.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "First", got.Title)
	assert.Equal(t, "Admin", got.AuthorName)

	got, err = repo.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "First", got.Title)
	assert.Equal(t, 1, store.getCalls, "second get is served from cache")

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	_, err = repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.allCalls)
	assert.Equal(t, int64(2), freecache.EntryCount())

	got.Title = "First, edited"
	require.NoError(t, repo.Update(ctx, got))
	got, err = repo.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "First, edited", got.Title)
	assert.Equal(t, 2, store.getCalls)

	// new posts show up in the list
	require.NoError(t, repo.Add(ctx, &Post{Title: "Second", AuthorID: 1}))
	all, err = repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, repo.Delete(ctx, post.ID))
	_, err = repo.Get(ctx, post.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)
	all, err = repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCachedPostsRepo_noopCache(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(users.NewMemRepo())
	repo := NewCachedPostsRepo(memPostsRepo{store}, cache.Noop{}, time.Minute)

	require.NoError(t, repo.Add(ctx, &Post{Title: "Post"}))
	for i := 0; i < 3; i++ {
		_, err := repo.Get(ctx, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.getCalls)

	_, err := repo.Get(ctx, 42)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

// gatedPostsRepo holds Get after the row was read, until released.
type gatedPostsRepo struct {
	memPostsRepo
	read    chan struct{}
	release chan struct{}
}

func (r *gatedPostsRepo) Get(ctx context.Context, id int) (*Post, error) {
	post, err := r.memPostsRepo.Get(ctx, id)
	if r.read != nil {
		read, release := r.read, r.release
		r.read, r.release = nil, nil
		close(read)
		<-release
	}
	return post, err
}

func TestCachedPostsRepo_readRacingWrite(t *testing.T) {
	for _, tc := range []struct {
		name  string
		write func(ctx context.Context, repo *CachedPostsRepo, post *Post) error
		check func(t *testing.T, got *Post, err error)
	}{
		{
			name: "delete",
			write: func(ctx context.Context, repo *CachedPostsRepo, post *Post) error {
				return repo.Delete(ctx, post.ID)
			},
			check: func(t *testing.T, _ *Post, err error) {
				assert.ErrorIs(t, err, ErrPostNotFound)
			},
		},
		{
			name: "update",
			write: func(ctx context.Context, repo *CachedPostsRepo, post *Post) error {
				edited := *post
				edited.Title = "new"
				return repo.Update(ctx, &edited)
			},
			check: func(t *testing.T, got *Post, err error) {
				require.NoError(t, err)
				assert.Equal(t, "new", got.Title)
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := newMemStore(users.NewMemRepo())
			inner := &gatedPostsRepo{memPostsRepo: memPostsRepo{store}}
			repo := NewCachedPostsRepo(inner, cache.NewFreecache(1), time.Minute)

			post := &Post{Title: "old"}
			require.NoError(t, repo.Add(ctx, post))

			inner.read = make(chan struct{})
			inner.release = make(chan struct{})
			read, release := inner.read, inner.release

			done := make(chan struct{})
			go func() {
				defer close(done)
				got, err := repo.Get(ctx, post.ID)
				assert.NoError(t, err)
				assert.Equal(t, "old", got.Title)
			}()

			<-read
			require.NoError(t, tc.write(ctx, repo, post))
			close(release)
			<-done

			got, err := repo.Get(ctx, post.ID)
			tc.check(t, got, err)
		})
	}
}

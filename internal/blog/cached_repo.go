package blog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/blogsite/internal/cache"
)

const (
	allPostsCacheKey = "posts:all"
	postCacheKey     = "post:"
)

var _ postsRepo = (*CachedPostsRepo)(nil)

// CachedPostsRepo keeps rendered-ready posts in memory. Every write bumps the
// generation and drops the affected entries; a read that started before a
// write never fills the cache, so a changed or deleted post is not served.
type CachedPostsRepo struct {
	repo  postsRepo
	cache cache.Cache
	ttl   time.Duration

	mutex      sync.Mutex
	generation uint64
}

func NewCachedPostsRepo(repo postsRepo, c cache.Cache, ttl time.Duration) *CachedPostsRepo {
	return &CachedPostsRepo{
		repo:  repo,
		cache: c,
		ttl:   ttl,
	}
}

func (r *CachedPostsRepo) All(ctx context.Context) ([]*Post, error) {
	var posts []*Post
	if r.load(allPostsCacheKey, &posts) {
		return posts, nil
	}

	gen := r.currentGeneration()
	posts, err := r.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	r.store(allPostsCacheKey, posts, gen)

	return posts, nil
}

func (r *CachedPostsRepo) Get(ctx context.Context, id int) (*Post, error) {
	key := postCacheKey + strconv.Itoa(id)

	var post Post
	if r.load(key, &post) {
		return &post, nil
	}

	gen := r.currentGeneration()
	found, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(key, found, gen)

	return found, nil
}

func (r *CachedPostsRepo) Add(ctx context.Context, post *Post) error {
	defer r.invalidate(allPostsCacheKey)
	return r.repo.Add(ctx, post)
}

func (r *CachedPostsRepo) Update(ctx context.Context, post *Post) error {
	defer r.invalidate(postCacheKey+strconv.Itoa(post.ID), allPostsCacheKey)
	return r.repo.Update(ctx, post)
}

func (r *CachedPostsRepo) Delete(ctx context.Context, id int) error {
	defer r.invalidate(postCacheKey+strconv.Itoa(id), allPostsCacheKey)
	return r.repo.Delete(ctx, id)
}

func (r *CachedPostsRepo) currentGeneration() uint64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.generation
}

// invalidate runs after the database write, finished or failed.
func (r *CachedPostsRepo) invalidate(keys ...string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.generation++
	for _, key := range keys {
		r.cache.Del(key)
	}
}

func (r *CachedPostsRepo) load(key string, dst any) bool {
	raw, err := r.cache.Get(key)
	if errors.Is(err, cache.ErrNotFound) {
		return false
	} else if err != nil {
		log.Errorf("posts cache, get %s: %s", key, err)
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		log.Errorf("posts cache, decode %s: %s", key, err)
		r.cache.Del(key)
		return false
	}

	return true
}

// store fills key unless a write happened since gen was taken.
func (r *CachedPostsRepo) store(key string, val any, gen uint64) {
	raw, err := json.Marshal(val)
	if err != nil {
		log.Errorf("posts cache, encode %s: %s", key, err)
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.generation != gen {
		log.Tracef("posts cache, skip stale %s", key)
		return
	}
	if err := r.cache.Set(key, raw, r.ttl); err != nil {
		// entries larger than 1/1024 of the cache are refused
		log.Debugf("posts cache, set %s: %s", key, err)
	}
}

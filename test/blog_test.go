//go:build integration_test || all_tests

package test

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostValues() url.Values {
	return url.Values{
		"title":    {fmt.Sprintf("Integration post %d", gofakeit.Number(1, 1_000_000_000))},
		"subtitle": {"Written by the integration suite"},
		"img_url":  {"https://images.example.com/header.jpg"},
		"body":     {"<p>Some <b>bold</b> words.</p>"},
	}
}

// addPost creates a post as the admin and returns its path.
func (s *IntegrationTestSuite) addPost(values url.Values) string {
	t := s.T()
	resp := s.postForm(s.adminBrowser, "/add-new-post", values)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Request.URL.Path, "/post/"), resp.Request.URL.Path)
	body := readBody(t, resp)
	assert.Contains(t, body, values.Get("title"))
	assert.Contains(t, body, "<b>bold</b>")
	return resp.Request.URL.Path
}

func (s *IntegrationTestSuite) TestPosts_AdminFlow() {
	t := s.T()
	values := newPostValues()
	postPath := s.addPost(values)

	resp, err := http.Get(serverEndpoint + "/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), values.Get("title"))

	// same title is refused
	resp = s.postForm(s.adminBrowser, "/add-new-post", values)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/add-new-post", resp.Request.URL.Path)
	assert.Contains(t, readBody(t, resp), "A post with this title already exists.")

	editPath := strings.Replace(postPath, "/post/", "/edit-post/", 1)
	values.Set("subtitle", "Edited subtitle")
	resp = s.postForm(s.adminBrowser, editPath, values)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, postPath, resp.Request.URL.Path)
	assert.Contains(t, readBody(t, resp), "Edited subtitle")

	deletePath := strings.Replace(postPath, "/post/", "/delete-post/", 1)
	resp, err = s.adminBrowser.Get(serverEndpoint + deletePath)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/", resp.Request.URL.Path)
	assert.NotContains(t, readBody(t, resp), values.Get("title"))

	resp, err = http.Get(serverEndpoint + postPath)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	readBody(t, resp)
}

func (s *IntegrationTestSuite) TestPosts_AdminRoutesForbidden() {
	t := s.T()
	browser := s.newBrowser()
	readBody(t, s.register(browser, newTestUser()))

	resp, err := browser.Get(serverEndpoint + "/add-new-post")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	readBody(t, resp)

	resp, err = http.Get(serverEndpoint + "/add-new-post")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	readBody(t, resp)
}

func (s *IntegrationTestSuite) TestComments() {
	t := s.T()
	postPath := s.addPost(newPostValues())

	// anonymous comments are bounced back with a flash
	anon := s.newBrowser()
	resp := s.postForm(anon, postPath, url.Values{"body": {"anonymous words"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, postPath, resp.Request.URL.Path)
	body := readBody(t, resp)
	assert.Contains(t, body, "Get logged in before comment.")
	assert.NotContains(t, body, "anonymous words")

	commenter := newTestUser()
	browser := s.newBrowser()
	readBody(t, s.register(browser, commenter))

	resp = s.postForm(browser, postPath, url.Values{"body": {""}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "You haven&#39;t comment anything yet.")

	resp = s.postForm(browser, postPath, url.Values{"body": {"Nice post, thanks"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, postPath, resp.Request.URL.Path)
	assert.Contains(t, readBody(t, resp), "Nice post, thanks")

	resp = s.postForm(browser, "/post/987654321", url.Values{"body": {"lost"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	readBody(t, resp)
}

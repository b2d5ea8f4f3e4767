//go:build integration_test || all_tests

package test

import (
	"io"
	"net/http"
	"net/url"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testUser struct {
	email    string
	password string
	name     string
}

func newTestUser() testUser {
	return testUser{
		email:    gofakeit.Email(),
		password: gofakeit.Password(true, true, true, false, false, 12),
		name:     gofakeit.FirstName(),
	}
}

func (s *IntegrationTestSuite) register(browser *http.Client, u testUser) *http.Response {
	return s.postForm(browser, "/register", url.Values{
		"email":    {u.email},
		"password": {u.password},
		"name":     {u.name},
	})
}

func (s *IntegrationTestSuite) login(browser *http.Client, u testUser) *http.Response {
	return s.postForm(browser, "/login", url.Values{
		"email":    {u.email},
		"password": {u.password},
	})
}

func readBody(t require.TestingT, resp *http.Response) string {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func (s *IntegrationTestSuite) TestRegisterLoginLogout() {
	t := s.T()
	u := newTestUser()

	browser := s.newBrowser()
	resp := s.register(browser, u)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/welcome", resp.Request.URL.Path)
	assert.Contains(t, readBody(t, resp), "Welcome,")

	// registering the same email again is refused
	other := s.newBrowser()
	resp = s.register(other, testUser{email: u.email, password: "whatever", name: "Other"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/register", resp.Request.URL.Path)
	assert.Contains(t, readBody(t, resp), "This email has already been registered.")

	resp, err := browser.Get(serverEndpoint + "/logout")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/", resp.Request.URL.Path)
	assert.Contains(t, readBody(t, resp), `href="/login"`)

	resp, err = noRedirects(browser).Get(serverEndpoint + "/welcome")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	readBody(t, resp)

	resp = s.login(browser, u)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/welcome", resp.Request.URL.Path)
	readBody(t, resp)
}

func (s *IntegrationTestSuite) TestLogin_WrongPassword() {
	t := s.T()
	u := newTestUser()

	resp := s.register(s.newBrowser(), u)
	readBody(t, resp)

	browser := s.newBrowser()
	resp = s.login(browser, testUser{email: u.email, password: u.password + "x"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, readBody(t, resp), "Email or password is incorrect.")

	resp, err := noRedirects(browser).Get(serverEndpoint + "/welcome")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	readBody(t, resp)
}

func (s *IntegrationTestSuite) TestPostWithoutCSRFToken() {
	t := s.T()
	resp, err := s.newBrowser().PostForm(serverEndpoint+"/login", url.Values{
		"email":    {"a@b.com"},
		"password": {"pass"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	readBody(t, resp)
}

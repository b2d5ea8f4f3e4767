package web

import (
	"bytes"
	"crypto/md5"
	"embed"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/blogsite/internal/users"
	"github.com/2beens/blogsite/pkg"
)

//go:embed templates/*.html
var templatesFS embed.FS

const layoutTemplate = "layout.html"

// Page is the data every template is executed with.
type Page struct {
	Title     string
	User      *users.User
	Flashes   []Flash
	CSRFToken string
	Data      map[string]any
}

type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	return newRenderer(templatesFS)
}

func newRenderer(fsys fs.FS) (*Renderer, error) {
	pageFiles, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, pageFile := range pageFiles {
		base := path.Base(pageFile)
		if base == layoutTemplate {
			continue
		}

		t, err := template.New(base).
			Funcs(templateFuncs).
			ParseFS(fsys, path.Join("templates", layoutTemplate), pageFile)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", pageFile, err)
		}
		pages[strings.TrimSuffix(base, ".html")] = t
	}

	return &Renderer{pages: pages}, nil
}

// Render executes the named page with the current user, flashes and csrf token of the request.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, name string, status int, title string, data map[string]any) {
	t, ok := rd.pages[name]
	if !ok {
		log.Errorf("render: template [%s] not found", name)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	page := Page{
		Title:     title,
		User:      users.FromContext(r.Context()),
		Flashes:   popFlashes(w, r),
		CSRFToken: CSRFToken(r.Context()),
		Data:      data,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", page); err != nil {
		log.Errorf("render template [%s]: %s", name, err)
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.HTML, buf.Bytes(), status)
}

func (rd *Renderer) Error(w http.ResponseWriter, r *http.Request, status int) {
	rd.Render(w, r, "error", status, http.StatusText(status), map[string]any{
		"Status":     status,
		"StatusText": http.StatusText(status),
	})
}

var templateFuncs = template.FuncMap{
	"gravatar": GravatarURL,
	// post bodies are HTML written by the admin in the rich text editor
	"safe": func(s string) template.HTML {
		return template.HTML(s)
	},
	"year": func() int {
		return time.Now().Year()
	},
}

// GravatarURL returns the avatar url for email: 100px, rated g, retro fallback.
func GravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?s=100&r=g&d=retro", hex.EncodeToString(sum[:]))
}

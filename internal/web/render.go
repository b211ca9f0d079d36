// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/samber/oops"

	"github.com/sharegate/sharegate/internal/auth"
	"github.com/sharegate/sharegate/pkg/errutil"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"home.html", "login.html", "register.html", "share.html"}

// pages holds one template set per page, each built on the shared layout.
type pages struct {
	sets map[string]*template.Template
}

func loadPages() (*pages, error) {
	p := &pages{sets: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, oops.Code("WEB_TEMPLATE_INVALID").With("page", name).Wrap(err)
		}
		p.sets[name] = t
	}
	return p, nil
}

// pageData is what every template sees.
type pageData struct {
	Title        string
	Flashes      []auth.Flash
	User         *auth.User
	OAuthEnabled bool
}

// render takes the pending flashes and writes the page. Flashes are only
// consumed here, so redirects never lose them.
func (s *Server) render(w http.ResponseWriter, r *http.Request, page string, data pageData) {
	ctx := r.Context()
	data.Flashes = s.auth.TakeFlashes(ctx, SessionFromContext(ctx))
	data.OAuthEnabled = s.oauth != nil

	var buf bytes.Buffer
	if err := s.pages.sets[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "template render failed",
			oops.Code("WEB_RENDER_FAILED").With("page", page).Wrap(err))
		http.Error(w, "Something went wrong.", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	w.Write(buf.Bytes())
}

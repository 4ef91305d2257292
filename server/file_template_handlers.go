package server

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a template from the embedded filesystem
func ParseTemplate(name string) (*template.Template, error) {
	content, err := fs.ReadFile(TemplateFilesFS(), name)
	if err != nil {
		return nil, err
	}
	return template.New(name).Parse(string(content))
}

type pages struct {
	index         *template.Template
	login         *template.Template
	relay         *template.Template
	resetPassword *template.Template
}

func parsePages() (pages, error) {
	var p pages
	for name, dst := range map[string]**template.Template{
		"index.html":          &p.index,
		"login.html":          &p.login,
		"relay.html":          &p.relay,
		"reset_password.html": &p.resetPassword,
	} {
		t, err := ParseTemplate(name)
		if err != nil {
			return pages{}, fmt.Errorf("[parsePages] %s: %w", name, err)
		}
		*dst = t
	}
	return p, nil
}

// pageData is shared by every portal page.
type pageData struct {
	Lang   string
	L      map[string]string
	Error  string
	Email  string
	AppURL template.URL
	Action string
}

func newPageData(r *http.Request) pageData {
	lang := requestLanguage(r)
	base, _ := lang.Base()
	return pageData{
		Lang:  base.String(),
		L:     labels(lang),
		Error: messageText(r.URL.Query().Get("error"), lang),
	}
}

func renderPage(w http.ResponseWriter, tmpl *template.Template, data pageData) {
	w.Header().Set("Content-Type", contentTypeHTML)
	if err := tmpl.Execute(w, data); err != nil {
		log.Err(err).Str("template", tmpl.Name()).Msg("Failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

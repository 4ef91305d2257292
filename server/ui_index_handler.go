package server

import (
	"html/template"
	"net/http"
)

// IndexHandler shows the signed-in page.
func (s *Server) IndexHandler(tmpl *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ls, _ := LoginSessionFromContext(r.Context())

		data := newPageData(r)
		data.Email = ls.Email
		// The custom scheme is trusted configuration
		data.AppURL = template.URL(s.config.GetAppScheme() + "://")
		renderPage(w, tmpl, data)
	}
}

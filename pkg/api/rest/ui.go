package rest

import (
	_ "embed"
	"net/http"
)

var (
	//go:embed ui/login.html
	loginPage []byte

	//go:embed ui/admin.html
	adminPage []byte
)

// index serves the admin page to logged in users and the login page to
// everyone else.
func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	page := loginPage
	if h.authenticated(r) {
		page = adminPage
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(page)
}

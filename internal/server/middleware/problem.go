package middleware

import (
	"fmt"
	"net/http"
)

// writeProblem answers with an RFC 9457 problem document, the same error
// shape huma produces on the typed routes.
func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"title":%q,"status":%d,"detail":%q}`, title, status, detail)
}

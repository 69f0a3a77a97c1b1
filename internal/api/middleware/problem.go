// Package middleware provides HTTP middleware components for the starlog API.
package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// problemTypeBase prefixes the type URI in problem responses. The api
// package renders its own problems; this copy keeps the middleware
// free of an import cycle.
const problemTypeBase = "https://starlog.io/problems"

// problem is the RFC 7807 body the middleware emits when it stops a
// request before any handler runs.
type problem struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail"`
	Instance      string `json:"instance"`
	CorrelationID string `json:"correlationId"`
}

// writeProblem renders an RFC 7807 problem response for a request the
// middleware rejected.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail, correlationID string) error {
	body := problem{
		Type:          fmt.Sprintf("%s/%d", problemTypeBase, status),
		Title:         problemTitle(status),
		Status:        status,
		Detail:        detail,
		Instance:      r.URL.Path,
		CorrelationID: correlationID,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(body)
}

func problemTitle(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusTooManyRequests:
		return "Too Many Requests"
	case http.StatusInternalServerError:
		return "Internal Server Error"
	default:
		return http.StatusText(status)
	}
}

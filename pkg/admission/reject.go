package admission

import (
	"encoding/json"
	"net/http"
	"time"
)

// rejection is the structured JSON body sent with every terminal rejection.
type rejection struct {
	Timestamp         string `json:"timestamp"`
	Status            int    `json:"status"`
	Error             string `json:"error"`
	Message           string `json:"message"`
	Path              string `json:"path"`
	RetryAfterSeconds int64  `json:"retryAfterSeconds,omitempty"`
	LimitType         string `json:"limitType,omitempty"`
}

// writeReject writes a rejection response. Messages are generic on
// purpose: a 401 never says why the token failed, a 403 never says which
// rule denied.
func writeReject(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeRejectBody(w, r, rejection{
		Status:  status,
		Message: message,
	})
}

func writeRejectBody(w http.ResponseWriter, r *http.Request, body rejection) {
	body.Timestamp = time.Now().UTC().Format(time.RFC3339)
	body.Error = http.StatusText(body.Status)
	body.Path = r.URL.Path

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(body.Status)
	json.NewEncoder(w).Encode(body)
}

// Package problem writes RFC 7807 error documents.
package problem

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	ContentType = "application/problem+json"
	baseTypeURL = "https://errors.escrow-market.dev/"
	traceHeader = "X-Trace-ID"
)

// Details is an RFC 7807 document. Code repeats the last segment of Type so
// the chat front-end can switch on a short, stable string.
type Details struct {
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	RequestID string `json:"request_id"`
}

// Type builds the type URI for slug, e.g. "escrow/insufficient-funds".
func Type(slug string) string {
	return baseTypeURL + slug
}

// Code returns the short code carried by a type URI built with Type.
func Code(problemType string) string {
	slug, ok := strings.CutPrefix(problemType, baseTypeURL)
	if !ok {
		return ""
	}
	if i := strings.LastIndexByte(slug, '/'); i >= 0 {
		return slug[i+1:]
	}
	return slug
}

// Write sends a problem document with the given status.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	if title == "" {
		title = http.StatusText(status)
	}
	if problemType == "" {
		problemType = "about:blank"
	}
	var instance, requestID string
	if r != nil {
		instance = r.URL.Path
		requestID = r.Header.Get(traceHeader)
	}
	if requestID == "" {
		requestID = w.Header().Get(traceHeader)
	}

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Details{
		Type:      problemType,
		Code:      Code(problemType),
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		RequestID: requestID,
	})
}

package apiframework

import "net/http"

// GetPathParam returns the named path wildcard value.
func GetPathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// GetQueryParam returns the named query value, or fallback when absent.
func GetQueryParam(r *http.Request, name, fallback string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return fallback
}

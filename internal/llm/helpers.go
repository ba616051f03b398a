package llm

import "strings"

// requestModel is the model a request runs on: its own override, or the
// provider default.
func requestModel(req Request, fallback string) string {
	if m := strings.TrimSpace(req.Model); m != "" {
		return m
	}
	return fallback
}

package validators

import (
	"net/http"
	"strings"
)

// QueryParam returns the trimmed query value, cut to maxLen bytes when maxLen is positive.
func QueryParam(r *http.Request, key string, maxLen int) string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if maxLen > 0 && len(value) > maxLen {
		return value[:maxLen]
	}
	return value
}

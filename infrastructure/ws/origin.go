package ws

import (
	"net/http"
	"strings"

	"github.com/samber/lo"
)

// OriginChecker accepts requests without an Origin header (non-browser clients),
// any origin when the list holds "*", and otherwise exact matches only.
// An empty list keeps the same-origin default of the upgrader.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	allowed = lo.FilterMap(allowed, func(origin string, _ int) (string, bool) {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		return strings.ToLower(origin), origin != ""
	})
	if len(allowed) == 0 {
		return nil
	}
	allowAll := lo.Contains(allowed, "*")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		return lo.Contains(allowed, strings.ToLower(origin))
	}
}

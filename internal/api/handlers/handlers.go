// Package handlers contains the HTTP handlers of the autopost API. Each
// handler depends on a narrow service interface and exposes RegisterRoutes
// for the route group it belongs to in core.Server.
package handlers

import (
	"net/http"

	"autopost/internal/types"
)

// actorUserID returns the authenticated user's ID, or an auth error when the
// request carries no user actor.
func actorUserID(r *http.Request) (string, error) {
	actor, ok := types.GetActor(r.Context())
	if !ok || actor.Type != types.ActorTypeUser || actor.ID == "" {
		return "", types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil)
	}
	return actor.ID, nil
}

// hasBody reports whether the request may carry a JSON body. Unknown
// lengths (chunked encoding) count as present.
func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}

package analytics

import (
	"context"
	"strconv"

	"github.com/edgard/chatpulse/internal/database"
)

// CacheResolver names users from the identity cache only.
type CacheResolver struct {
	Store database.IdentityStore
}

func (r CacheResolver) ResolveName(ctx context.Context, _ int64, userID int64) string {
	if r.Store != nil {
		if identity, err := r.Store.GetIdentity(ctx, userID); err == nil && identity != nil {
			if name := identity.DisplayName(); name != "" {
				return name
			}
		}
	}
	return strconv.FormatInt(userID, 10)
}

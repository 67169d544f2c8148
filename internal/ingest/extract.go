package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/edgard/chatpulse/internal/database"
)

// HandleResolver maps an @handle to a known user.
type HandleResolver interface {
	FindIdentityByUsername(ctx context.Context, username string) (*database.Identity, error)
}

// ExtractTargets returns the distinct users a message points at, in this order:
// structured text mentions, @handles resolved through the identity cache, then the
// author of the replied-to message. Every target appears once no matter how many
// rules produced it. Unknown handles are skipped; lookup errors are returned
// alongside the targets that could be resolved.
func ExtractTargets(ctx context.Context, msg Message, resolver HandleResolver) ([]int64, []error) {
	var (
		targets []int64
		errs    []error
	)
	seen := make(map[int64]struct{}, len(msg.Entities))
	add := func(id int64) {
		if id == 0 {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}

	for _, e := range msg.Entities {
		if e.Type == EntityTextMention {
			add(e.TargetUserID)
		}
	}

	resolved := map[string]struct{}{}
	for _, e := range msg.Entities {
		if e.Type != EntityMention || resolver == nil {
			continue
		}
		handle := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e.Handle), "@"))
		if handle == "" {
			continue
		}
		if _, done := resolved[handle]; done {
			continue
		}
		resolved[handle] = struct{}{}

		identity, err := resolver.FindIdentityByUsername(ctx, handle)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve @%s: %w", handle, err))
			continue
		}
		if identity != nil {
			add(identity.UserID)
		}
	}

	for _, e := range msg.Entities {
		if e.Type == EntityReply {
			add(e.TargetUserID)
		}
	}

	return targets, errs
}

// Package view renders sessions, actions and rules as plain JSON-compatible
// maps shared by the HTTP and gRPC transports.
package view

import (
	"encoding/json"
	"strings"
	"time"

	errorsi18n "github.com/careercounsel/cardroom/internal/platform/errors/i18n"
	"github.com/careercounsel/cardroom/internal/platform/i18n/catalog"
	"github.com/careercounsel/cardroom/internal/services/game/domain/rules"
	"github.com/careercounsel/cardroom/internal/services/game/sessions"
	"github.com/careercounsel/cardroom/internal/services/game/storage"
)

const rulesNamespace = "rules"

// Session renders a session with its board.
func Session(session sessions.Session) map[string]any {
	record := session.Record
	var completedAt any
	if record.CompletedAt != nil {
		completedAt = record.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	return map[string]any{
		"id":           record.ID,
		"room_id":      record.RoomID,
		"rule_id":      record.RuleID,
		"status":       string(record.Status),
		"version":      record.Version,
		"created_at":   record.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":   record.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"completed_at": completedAt,
		"state":        session.State.ToMap(),
	}
}

// Action renders one history entry.
func Action(record storage.ActionRecord) map[string]any {
	out := map[string]any{
		"seq":          record.Seq,
		"session_id":   record.SessionID,
		"player_id":    record.PlayerID,
		"action_type":  record.ActionType,
		"card_id":      record.CardID,
		"source_zone":  record.SourceZone,
		"target_zone":  record.TargetZone,
		"from_version": record.FromVersion,
		"to_version":   record.ToVersion,
		"created_at":   record.CreatedAt.UTC().Format(time.RFC3339Nano),
		"chain_hash":   record.ChainHash,
	}
	if len(record.PayloadJSON) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(record.PayloadJSON, &payload); err == nil {
			out["payload"] = payload
		}
	}
	if record.SignatureKeyID != "" {
		out["signature_key_id"] = record.SignatureKeyID
	}
	return out
}

// Rule exports cfg with display labels for locale.
func Rule(slug string, cfg rules.Configuration, locale string) map[string]any {
	labels := errorsi18n.NewCatalog(catalog.Default().NamespaceMessagesWithFallback(locale, rulesNamespace))

	out := cfg.Export()
	out["slug"] = slug
	out["display_name"] = labelOr(labels, "rule."+cfg.ID(), nil, cfg.Name())

	if layout, ok := out["layout"].(map[string]any); ok {
		if zones, ok := layout["zones"].([]any); ok {
			for _, raw := range zones {
				zone, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				zoneID, _ := zone["id"].(string)
				name, _ := zone["name"].(string)
				zone["label"] = zoneLabel(labels, zoneID, name)
			}
		}
	}
	return out
}

func zoneLabel(labels *errorsi18n.Catalog, zoneID, fallback string) string {
	if rank, ok := strings.CutPrefix(zoneID, "rank_"); ok {
		return labelOr(labels, "zone.rank", map[string]string{"Rank": rank}, fallback)
	}
	return labelOr(labels, "zone."+zoneID, nil, fallback)
}

func labelOr(labels *errorsi18n.Catalog, key string, metadata map[string]string, fallback string) string {
	if !labels.Has(key) {
		return fallback
	}
	return labels.Format(key, metadata)
}

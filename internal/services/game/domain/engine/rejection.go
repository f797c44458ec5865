package engine

import (
	"fmt"
	"strconv"
)

// Rejection codes.
const (
	RejectionCardRequired       = "ACTION_CARD_REQUIRED"
	RejectionZoneRequired       = "ACTION_ZONE_REQUIRED"
	RejectionZoneNotFound       = "ACTION_ZONE_NOT_FOUND"
	RejectionZoneFull           = "ACTION_ZONE_FULL"
	RejectionTotalLimitReached  = "ACTION_TOTAL_LIMIT_REACHED"
	RejectionDuplicateCard      = "ACTION_DUPLICATE_CARD"
	RejectionCardAlreadyPlaced  = "ACTION_CARD_ALREADY_PLACED"
	RejectionCardNotInZone      = "ACTION_CARD_NOT_IN_ZONE"
	RejectionArrangementInvalid = "ACTION_ARRANGEMENT_INVALID"
	RejectionUnsupported        = "ACTION_UNSUPPORTED"
	RejectionTypeUnknown        = "ACTION_TYPE_UNKNOWN"
	RejectionRuleMismatch       = "ACTION_RULE_MISMATCH"
	RejectionTransitionFailed   = "ACTION_TRANSITION_FAILED"
	RejectionZoneBelowMinimum   = "ZONE_BELOW_MINIMUM"
)

// Metadata keys carried by rejections for message templating.
const (
	MetaZone    = "Zone"
	MetaCard    = "Card"
	MetaLimit   = "Limit"
	MetaMinimum = "Minimum"
	MetaType    = "Type"
)

// Rejection captures why an action was declined.
type Rejection struct {
	Code     string
	Message  string
	Metadata map[string]string
}

// RejectionError is the error form of a Rejection.
type RejectionError struct {
	Rejection Rejection
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rejection.Code, e.Rejection.Message)
}

func zoneRejection(code, zoneID, format string, args ...any) *Rejection {
	return &Rejection{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Metadata: map[string]string{MetaZone: zoneID},
	}
}

func zoneFull(zoneID string, limit int) *Rejection {
	r := zoneRejection(RejectionZoneFull, zoneID, "zone %s is full (%d cards)", zoneID, limit)
	r.Metadata[MetaLimit] = strconv.Itoa(limit)
	return r
}

func cardInZone(code, cardID, zoneID, format string) *Rejection {
	r := zoneRejection(code, zoneID, format, cardID, zoneID)
	r.Metadata[MetaCard] = cardID
	return r
}

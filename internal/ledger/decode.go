package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/money"
)

// DecodeEvents reads an exported event log. It fails closed: a payload that
// is not a JSON array yields no events and a single warning. Records that
// cannot be read are skipped with a warning; unreadable amounts become zero.
//
// Both the current field names and the legacy ones written by the first
// storefront (entryType, desc, saleId, isCancelled, created_at, float
// amounts in reais) are accepted.
func DecodeEvents(data []byte) ([]domain.CashEvent, []domain.Warning) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, []domain.Warning{{
			Kind:    WarningDataIntegrity,
			Message: fmt.Sprintf("cash event log is not a list: %v", err),
		}}
	}

	events := make([]domain.CashEvent, 0, len(records))
	var warnings []domain.Warning
	for i, raw := range records {
		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil || record == nil {
			warnings = append(warnings, domain.Warning{
				Kind:    WarningDataIntegrity,
				Message: fmt.Sprintf("record %d is not an object", i),
			})
			continue
		}

		event := domain.CashEvent{
			ID:          firstString(record, "id"),
			EntryType:   normalizeType(firstString(record, "entry_type", "entryType")),
			Description: firstString(record, "description", "desc"),
			SaleID:      firstString(record, "sale_id", "saleId"),
			IsCancelled: firstBool(record, "is_cancelled", "isCancelled"),
		}

		amount, ok := readAmount(record)
		if !ok {
			warnings = append(warnings, domain.Warning{
				EventID: event.ID,
				Kind:    WarningDataIntegrity,
				Message: fmt.Sprintf("record %d has an unreadable or out-of-range amount, using 0", i),
			})
		}
		event.AmountCents = amount

		if at, ok := readTime(firstString(record, "created_at", "createdAt")); ok {
			event.CreatedAt = at
		} else {
			warnings = append(warnings, domain.Warning{
				EventID: event.ID,
				Kind:    WarningDataIntegrity,
				Message: fmt.Sprintf("record %d has no readable created_at", i),
			})
		}

		events = append(events, event)
	}
	return events, warnings
}

// The first storefront wrote Portuguese entry types.
var legacyTypes = map[string]domain.EntryType{
	"info":    domain.EntryOpen,
	"entrada": domain.EntryIn,
	"saida":   domain.EntryOut,
}

func normalizeType(raw string) domain.EntryType {
	if mapped, ok := legacyTypes[raw]; ok {
		return mapped
	}
	return domain.EntryType(raw)
}

func readAmount(record map[string]any) (int64, bool) {
	if value, exists := record["amount_cents"]; exists {
		switch v := value.(type) {
		case float64:
			if math.Abs(v) > float64(money.MaxCents) || v != math.Trunc(v) {
				return 0, false
			}
			return int64(v), true
		case string:
			parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil || money.CheckCents(parsed) != nil {
				return 0, false
			}
			return parsed, true
		}
		return 0, false
	}

	value, exists := record["amount"]
	if !exists || value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		cents, err := money.FromFloat(v)
		return cents, err == nil
	case string:
		cents, err := money.ParseCents(v)
		return cents, err == nil
	default:
		return 0, false
	}
}

func readTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z07:00", "2006-01-02 15:04:05"} {
		if at, err := time.Parse(layout, raw); err == nil {
			return at.UTC(), true
		}
	}
	return time.Time{}, false
}

func firstString(record map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := record[key].(string); ok {
			return value
		}
	}
	return ""
}

func firstBool(record map[string]any, keys ...string) bool {
	for _, key := range keys {
		if value, ok := record[key].(bool); ok {
			return value
		}
	}
	return false
}

package instapaper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"memoro-sync/internal/domain"
)

// decodeRecords разбирает тело ответа API в размеченные записи.
// Запись type "error" возвращается как *APIError. Ответ может быть
// как массивом разнотипных записей, так и одиночным объектом.
func decodeRecords(body []byte) ([]domain.SyncRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var raws []json.RawMessage
	if trimmed[0] == '{' {
		raws = []json.RawMessage{trimmed}
	} else if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, fmt.Errorf("разбор ответа API: %w", err)
	}

	records := make([]domain.SyncRecord, 0, len(raws))
	for _, raw := range raws {
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		kind, _ := fields["type"].(string)
		kind = strings.ToLower(strings.TrimSpace(kind))

		switch domain.RecordKind(kind) {
		case domain.RecordError:
			return nil, decodeError(fields)
		case domain.RecordBookmark:
			bookmark, err := decodeBookmark(fields)
			if err != nil {
				return nil, err
			}
			records = append(records, domain.SyncRecord{Kind: domain.RecordBookmark, Bookmark: bookmark})
		case domain.RecordUser:
			user, err := decodeUser(fields)
			if err != nil {
				return nil, err
			}
			records = append(records, domain.SyncRecord{Kind: domain.RecordUser, User: user})
		case domain.RecordMeta:
			meta, err := decodeMeta(fields)
			if err != nil {
				return nil, err
			}
			records = append(records, domain.SyncRecord{Kind: domain.RecordMeta, Meta: meta})
		case domain.RecordHighlight:
			highlight, err := decodeHighlight(fields)
			if err != nil {
				return nil, err
			}
			records = append(records, domain.SyncRecord{Kind: domain.RecordHighlight, Highlight: highlight})
		default:
			records = append(records, domain.SyncRecord{Kind: domain.RecordKind(kind)})
		}
	}
	return records, nil
}

func decodeFields(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("разбор записи API: %w", err)
	}
	return fields, nil
}

func decodeError(fields map[string]any) error {
	code, err := intField(fields, "error_code")
	if err != nil {
		code = 0
	}
	message, _ := fields["message"].(string)
	return &APIError{Code: int(code), Message: message}
}

func decodeBookmark(fields map[string]any) (*domain.BookmarkRecord, error) {
	bookmarkID, err := intField(fields, "bookmark_id")
	if err != nil {
		return nil, fmt.Errorf("запись закладки: %w", err)
	}

	record := &domain.BookmarkRecord{BookmarkID: bookmarkID}
	record.URL, _ = fields["url"].(string)
	record.Title, _ = fields["title"].(string)
	record.Description, _ = fields["description"].(string)
	record.Hash, _ = fields["hash"].(string)
	record.PrivateSource, _ = fields["private_source"].(string)
	// Источник ровно один: у закладки с private_source адрес не хранится.
	if record.PrivateSource != "" {
		record.URL = ""
	}

	if record.Time, err = ParseTimestamp(fields["time"]); err != nil {
		return nil, fmt.Errorf("закладка %d, поле time: %w", bookmarkID, err)
	}
	if record.ProgressTimestamp, err = ParseTimestamp(fields["progress_timestamp"]); err != nil {
		return nil, fmt.Errorf("закладка %d, поле progress_timestamp: %w", bookmarkID, err)
	}
	if record.Starred, err = ParseBool(fields["starred"]); err != nil {
		return nil, fmt.Errorf("закладка %d, поле starred: %w", bookmarkID, err)
	}
	if record.Progress, err = floatField(fields, "progress"); err != nil {
		return nil, fmt.Errorf("закладка %d, поле progress: %w", bookmarkID, err)
	}
	return record, nil
}

func decodeUser(fields map[string]any) (*domain.AccountRecord, error) {
	userID, err := intField(fields, "user_id")
	if err != nil {
		return nil, fmt.Errorf("запись user: %w", err)
	}
	record := &domain.AccountRecord{UserID: userID}
	record.Username, _ = fields["username"].(string)
	if raw, ok := fields["subscription_is_active"]; ok {
		if record.SubscriptionActive, err = ParseBool(raw); err != nil {
			return nil, fmt.Errorf("запись user, поле subscription_is_active: %w", err)
		}
	}
	return record, nil
}

// decodeMeta принимает и delete_ids, и вариант с опечаткой delted_ids,
// который встречается в одном из ответов провайдера.
func decodeMeta(fields map[string]any) (*domain.MetaRecord, error) {
	raw, ok := fields["delete_ids"]
	if !ok {
		raw = fields["delted_ids"]
	}
	list, _ := raw.(string)

	record := &domain.MetaRecord{}
	if strings.TrimSpace(list) == "" {
		return record, nil
	}
	for _, part := range strings.Split(list, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("запись meta, поле delete_ids: %w", err)
		}
		record.DeleteIDs = append(record.DeleteIDs, id)
	}
	return record, nil
}

func decodeHighlight(fields map[string]any) (*domain.HighlightRecord, error) {
	highlightID, err := intField(fields, "highlight_id")
	if err != nil {
		return nil, fmt.Errorf("запись highlight: %w", err)
	}
	record := &domain.HighlightRecord{HighlightID: highlightID}
	if record.BookmarkID, err = intField(fields, "bookmark_id"); err != nil {
		return nil, fmt.Errorf("запись highlight %d: %w", highlightID, err)
	}
	record.Text, _ = fields["text"].(string)
	if position, err := intField(fields, "position"); err == nil {
		record.Position = int(position)
	}
	if raw, ok := fields["time"]; ok {
		if record.Time, err = ParseTimestamp(raw); err != nil {
			return nil, fmt.Errorf("запись highlight %d, поле time: %w", highlightID, err)
		}
	}
	return record, nil
}

func intField(fields map[string]any, key string) (int64, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("нет обязательного поля %s", key)
	}
	switch val := raw.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return 0, fmt.Errorf("поле %s не целое: %q", key, val.String())
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("поле %s не целое: %q", key, val)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("неожиданный тип поля %s: %T", key, raw)
	}
}

func floatField(fields map[string]any, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("нет обязательного поля %s", key)
	}
	switch val := raw.(type) {
	case json.Number:
		return val.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(val), 64)
	default:
		return 0, fmt.Errorf("неожиданный тип поля %s: %T", key, raw)
	}
}

package instapaper

import (
	"errors"
	"testing"
	"time"

	"memoro-sync/internal/domain"
)

func TestDecodeRecordsMixedPage(t *testing.T) {
	body := []byte(`[
	{"type":"user","user_id":54321,"username":"reader@example.com","subscription_is_active":"1"},
	{"type":"bookmark","bookmark_id":1001,"url":"https://example.com/post","title":"Пост",
	 "description":"","hash":"d2o0Qzk1","progress":"0.5","progress_timestamp":1709631000,
	 "time":"1709544600","starred":"0"},
	{"type":"meta","delete_ids":"7, 8,9"}
	]`)

	records, err := decodeRecords(body)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ожидали 3 записи, получили %d", len(records))
	}

	user := records[0]
	if user.Kind != domain.RecordUser || user.User == nil {
		t.Fatalf("первая запись не user: %+v", user)
	}
	if user.User.UserID != 54321 || !user.User.SubscriptionActive {
		t.Fatalf("неожиданная запись user: %+v", user.User)
	}

	bookmark := records[1]
	if bookmark.Kind != domain.RecordBookmark || bookmark.Bookmark == nil {
		t.Fatalf("вторая запись не bookmark: %+v", bookmark)
	}
	rec := bookmark.Bookmark
	if rec.BookmarkID != 1001 || rec.Progress != 0.5 || rec.Starred {
		t.Fatalf("неожиданная закладка: %+v", rec)
	}
	if !rec.ProgressTimestamp.Equal(time.Unix(1709631000, 0)) {
		t.Fatalf("неожиданный progress_timestamp: %v", rec.ProgressTimestamp)
	}
	if !rec.Time.Equal(time.Unix(1709544600, 0)) {
		t.Fatalf("неожиданный time: %v", rec.Time)
	}

	meta := records[2]
	if meta.Kind != domain.RecordMeta || meta.Meta == nil {
		t.Fatalf("третья запись не meta: %+v", meta)
	}
	if len(meta.Meta.DeleteIDs) != 3 || meta.Meta.DeleteIDs[0] != 7 || meta.Meta.DeleteIDs[2] != 9 {
		t.Fatalf("неожиданные delete_ids: %v", meta.Meta.DeleteIDs)
	}
}

func TestDecodeRecordsErrorPayload(t *testing.T) {
	body := []byte(`[{"type":"error","error_code":1240,"message":"Invalid URL specified"}]`)

	_, err := decodeRecords(body)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("ожидали APIError, получили %v", err)
	}
	if apiErr.Code != 1240 || apiErr.Message != "Invalid URL specified" {
		t.Fatalf("неожиданная ошибка: %+v", apiErr)
	}
}

func TestDecodeRecordsMetaTypo(t *testing.T) {
	// Один из ответов провайдера приходит с опечаткой delted_ids.
	body := []byte(`{"type":"meta","delted_ids":"11,12"}`)

	records, err := decodeRecords(body)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(records) != 1 || records[0].Meta == nil {
		t.Fatalf("ожидали одну запись meta: %+v", records)
	}
	ids := records[0].Meta.DeleteIDs
	if len(ids) != 2 || ids[0] != 11 || ids[1] != 12 {
		t.Fatalf("неожиданные delete_ids: %v", ids)
	}
}

func TestDecodeBookmarkPrivateSource(t *testing.T) {
	// Закладка с private_source не несёт адреса, даже если провайдер
	// прислал оба поля.
	body := []byte(`{"type":"bookmark","bookmark_id":1002,"url":"https://example.com/mail",
	"private_source":"email","time":1709544600,"progress_timestamp":0,"progress":0,"starred":"0"}`)

	records, err := decodeRecords(body)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	rec := records[0].Bookmark
	if rec == nil {
		t.Fatalf("ожидали закладку: %+v", records[0])
	}
	if rec.PrivateSource != "email" {
		t.Fatalf("неожиданный private_source: %q", rec.PrivateSource)
	}
	if rec.URL != "" {
		t.Fatalf("у закладки с private_source не должно быть адреса: %q", rec.URL)
	}
}

func TestDecodeRecordsUnknownKind(t *testing.T) {
	body := []byte(`[{"type":"folder","folder_id":100,"title":"Research"}]`)

	records, err := decodeRecords(body)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("ожидали одну запись, получили %d", len(records))
	}
	rec := records[0]
	if rec.Kind != domain.RecordKind("folder") {
		t.Fatalf("ожидали kind folder, получили %q", rec.Kind)
	}
	if rec.Bookmark != nil || rec.User != nil || rec.Meta != nil || rec.Highlight != nil {
		t.Fatalf("для неизвестного вида все поля должны быть nil: %+v", rec)
	}
}

func TestDecodeRecordsEmptyFields(t *testing.T) {
	// Пустая meta и пустое тело ответа — штатные случаи.
	records, err := decodeRecords([]byte(`{"type":"meta"}`))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(records[0].Meta.DeleteIDs) != 0 {
		t.Fatalf("ожидали пустой список: %v", records[0].Meta.DeleteIDs)
	}

	records, err = decodeRecords(nil)
	if err != nil || records != nil {
		t.Fatalf("пустое тело: records=%v err=%v", records, err)
	}
}

func TestDecodeBookmarkMissingRequiredField(t *testing.T) {
	body := []byte(`[{"type":"bookmark","bookmark_id":1001,"time":1709544600,"starred":"0","progress":0}]`)
	if _, err := decodeRecords(body); err == nil {
		t.Fatal("ожидали ошибку по отсутствующему progress_timestamp")
	}
}

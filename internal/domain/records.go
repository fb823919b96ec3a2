package domain

import "time"

// RecordKind — дискриминатор записи из ответа Instapaper API.
type RecordKind string

// Известные значения дискриминатора.
const (
	RecordBookmark  RecordKind = "bookmark"
	RecordUser      RecordKind = "user"
	RecordMeta      RecordKind = "meta"
	RecordHighlight RecordKind = "highlight"
	RecordError     RecordKind = "error"
)

// BookmarkRecord — нормализованная запись закладки из bookmarks/list.
type BookmarkRecord struct {
	BookmarkID        int64
	URL               string
	Title             string
	Description       string
	Hash              string
	PrivateSource     string
	Progress          float64
	ProgressTimestamp time.Time
	Time              time.Time
	Starred           bool
}

// AccountRecord — запись типа user с метаданными аккаунта.
type AccountRecord struct {
	UserID             int64
	Username           string
	SubscriptionActive bool
}

// MetaRecord несёт список закладок, которых больше нет в папке.
type MetaRecord struct {
	DeleteIDs []int64
}

// HighlightRecord — выделенный фрагмент статьи.
type HighlightRecord struct {
	HighlightID int64
	BookmarkID  int64
	Text        string
	Position    int
	Time        time.Time
}

// SyncRecord — размеченное объединение записей ответа API. Заполнено
// ровно одно из полей, соответствующее Kind; для неизвестного
// дискриминатора все поля nil.
type SyncRecord struct {
	Kind      RecordKind
	Bookmark  *BookmarkRecord
	User      *AccountRecord
	Meta      *MetaRecord
	Highlight *HighlightRecord
}

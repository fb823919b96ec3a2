package domain

import "time"

// Папки Instapaper, в которых может находиться статья.
const (
	FolderUnread  = "unread"
	FolderArchive = "archive"
	FolderStarred = "starred"
)

// Credentials хранит xAuth-пару токенов Instapaper.
type Credentials struct {
	Token       string
	TokenSecret string
}

// Valid сообщает, заполнена ли пара токенов целиком.
func (c Credentials) Valid() bool {
	return c.Token != "" && c.TokenSecret != ""
}

// Account привязывает аккаунт Instapaper к пользователю дневника.
// На одного пользователя приходится не более одного аккаунта.
type Account struct {
	ID                 int64
	UserID             int64
	InstapaperID       *int64
	Username           string
	SubscriptionActive *bool
	Credentials        Credentials
	LastSynchronized   *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasCachedCredentials сообщает, есть ли у аккаунта сохранённая пара токенов.
func (a Account) HasCachedCredentials() bool {
	return a.Credentials.Valid()
}

// Article — локальное зеркало одной закладки Instapaper.
// Ровно одно из полей URL и PrivateSource непустое.
type Article struct {
	ID                int64
	BookmarkID        int64
	AccountID         int64
	MemoID            *int64
	URL               string
	PrivateSource     string
	Title             string
	Description       string
	Hash              string
	Progress          float64
	ProgressTimestamp time.Time
	Time              time.Time
	Starred           bool
	Folder            string
	Deleted           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Read сообщает, прочитана ли статья. Instapaper сбрасывает progress в 0.0
// после полного прочтения, поэтому статья вне папки unread с обновлённым
// progress_timestamp тоже считается прочитанной.
func (a Article) Read() bool {
	if a.Progress > 0.0 {
		return true
	}
	return a.Folder != FolderUnread && a.ProgressTimestamp.After(a.Time)
}

// Memo — запись дневника за конкретный день. Создаётся дневником,
// подсистема чтения только читает её.
type Memo struct {
	ID       int64
	AuthorID int64
	Date     time.Time
	Memo     string
}

// ArticleCounts хранит счётчики чтения для одной записи дневника.
// Поля nil, пока пересчёт ни разу не выполнялся.
type ArticleCounts struct {
	ID       int64
	MemoID   int64
	Read     *int
	Unread   *int
	Archived *int
	Starred  *int
}

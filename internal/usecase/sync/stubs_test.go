package sync

import (
	"context"
	"sort"
	"time"

	"memoro-sync/internal/domain"
)

// Стабы репозиториев держат зеркало в памяти ровно с той семантикой,
// которую обещают Postgres-реализации.

type stubAccounts struct {
	account     domain.Account
	savedCreds  *domain.Credentials
	applied     []domain.AccountRecord
	syncedAt    *time.Time
	getOrCreate int
}

func (s *stubAccounts) GetOrCreateByDiaryUser(ctx context.Context, username string) (domain.Account, error) {
	s.getOrCreate++
	return s.account, nil
}

func (s *stubAccounts) SaveCredentials(ctx context.Context, accountID int64, creds domain.Credentials) error {
	s.savedCreds = &creds
	return nil
}

func (s *stubAccounts) ApplyAccountRecord(ctx context.Context, accountID int64, rec domain.AccountRecord) error {
	s.applied = append(s.applied, rec)
	return nil
}

func (s *stubAccounts) MarkSynchronized(ctx context.Context, accountID int64, at time.Time) error {
	s.syncedAt = &at
	return nil
}

type stubArticles struct {
	byBookmark map[int64]*domain.Article
	nextID     int64
	have       map[string]string
}

func newStubArticles() *stubArticles {
	return &stubArticles{byBookmark: map[int64]*domain.Article{}, have: map[string]string{}}
}

func (s *stubArticles) UpsertBookmark(ctx context.Context, accountID int64, folder string, rec domain.BookmarkRecord) (domain.Article, bool, error) {
	article, ok := s.byBookmark[rec.BookmarkID]
	if !ok {
		s.nextID++
		article = &domain.Article{ID: s.nextID, BookmarkID: rec.BookmarkID, AccountID: accountID}
		s.byBookmark[rec.BookmarkID] = article
	}
	article.URL = rec.URL
	article.PrivateSource = rec.PrivateSource
	article.Title = rec.Title
	article.Description = rec.Description
	article.Hash = rec.Hash
	article.Progress = rec.Progress
	article.ProgressTimestamp = rec.ProgressTimestamp
	article.Time = rec.Time
	article.Starred = rec.Starred
	article.Folder = folder
	article.Deleted = false
	return *article, !ok, nil
}

func (s *stubArticles) SoftDeleteBookmarks(ctx context.Context, accountID int64, bookmarkIDs []int64) (int, error) {
	deleted := 0
	for _, id := range bookmarkIDs {
		article, ok := s.byBookmark[id]
		if !ok || article.Deleted {
			continue
		}
		article.Deleted = true
		deleted++
	}
	return deleted, nil
}

func (s *stubArticles) Have(ctx context.Context, accountID int64, folder string) (string, error) {
	return s.have[folder], nil
}

func (s *stubArticles) SetMemo(ctx context.Context, articleID int64, memoID *int64) error {
	for _, article := range s.byBookmark {
		if article.ID == articleID {
			article.MemoID = memoID
			return nil
		}
	}
	return nil
}

func (s *stubArticles) ListByAccount(ctx context.Context, accountID int64) ([]domain.Article, error) {
	var out []domain.Article
	for _, article := range s.byBookmark {
		if article.AccountID == accountID && !article.Deleted {
			out = append(out, *article)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProgressTimestamp.After(out[j].ProgressTimestamp)
	})
	return out, nil
}

func (s *stubArticles) CountLinked(ctx context.Context, memoID int64) (int, error) {
	// Мягкое удаление привязку не снимает, поэтому удалённые статьи
	// тоже входят в счётчик прочитанного за день.
	count := 0
	for _, article := range s.byBookmark {
		if article.MemoID != nil && *article.MemoID == memoID {
			count++
		}
	}
	return count, nil
}

func (s *stubArticles) CountUnread(ctx context.Context, accountID int64) (int, error) {
	count := 0
	for _, article := range s.byBookmark {
		if !article.Deleted && article.Folder == domain.FolderUnread && article.MemoID == nil {
			count++
		}
	}
	return count, nil
}

func (s *stubArticles) CountArchivedYTD(ctx context.Context, accountID int64, year int) (int, error) {
	count := 0
	for _, article := range s.byBookmark {
		if !article.Deleted && article.Folder == domain.FolderArchive && article.Time.Year() == year {
			count++
		}
	}
	return count, nil
}

func (s *stubArticles) CountStarredYTD(ctx context.Context, accountID int64, year int) (int, error) {
	count := 0
	for _, article := range s.byBookmark {
		if !article.Deleted && article.Starred && article.Time.Year() == year {
			count++
		}
	}
	return count, nil
}

func (s *stubArticles) Totals(ctx context.Context, accountID int64) (domain.ReadingTotals, error) {
	var totals domain.ReadingTotals
	for _, article := range s.byBookmark {
		if article.Deleted {
			continue
		}
		if article.Read() {
			totals.Read++
		} else {
			totals.Unread++
		}
		if article.Folder == domain.FolderArchive {
			totals.Archived++
		}
		if article.Starred {
			totals.Starred++
		}
	}
	return totals, nil
}

type stubMemos struct {
	memos []domain.Memo
}

func (s *stubMemos) GetByDate(ctx context.Context, authorID int64, date time.Time) (domain.Memo, bool, error) {
	for _, memo := range s.memos {
		if memo.AuthorID == authorID && memo.Date.Equal(date) {
			return memo, true, nil
		}
	}
	return domain.Memo{}, false, nil
}

type stubCounts struct {
	saved *domain.ArticleCounts
}

func (s *stubCounts) UpsertCounts(ctx context.Context, counts domain.ArticleCounts) (domain.ArticleCounts, error) {
	counts.ID = 1
	s.saved = &counts
	return counts, nil
}

// stubClient отдаёт заранее подготовленные страницы и записывает
// переданные параметры.
type stubClient struct {
	creds     domain.Credentials
	authErr   error
	verifyErr error
	verify    []domain.SyncRecord
	pages     map[string][]domain.SyncRecord
	haveSeen  map[string]string
	authCalls int
}

func (c *stubClient) Authenticate(ctx context.Context, username, password string) (domain.Credentials, error) {
	c.authCalls++
	if c.authErr != nil {
		return domain.Credentials{}, c.authErr
	}
	return c.creds, nil
}

func (c *stubClient) VerifyCredentials(ctx context.Context) ([]domain.SyncRecord, error) {
	if c.verifyErr != nil {
		err := c.verifyErr
		c.verifyErr = nil
		return nil, err
	}
	return c.verify, nil
}

func (c *stubClient) Bookmarks(ctx context.Context, opts domain.BookmarkListOptions) ([]domain.SyncRecord, error) {
	if c.haveSeen == nil {
		c.haveSeen = map[string]string{}
	}
	c.haveSeen[opts.Folder] = opts.Have
	return c.pages[opts.Folder], nil
}

type remoteErr struct {
	code int
}

func (e *remoteErr) Error() string {
	return "remote error"
}

func (e *remoteErr) RemoteErrorCode() int {
	return e.code
}

func newTestService(accounts *stubAccounts, articles *stubArticles, memos *stubMemos, counts *stubCounts) *Service {
	svc := NewService(accounts, articles, memos, counts, 500)
	svc.now = func() time.Time {
		return time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

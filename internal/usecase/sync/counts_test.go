package sync

import (
	"context"
	"testing"
	"time"

	"memoro-sync/internal/domain"
)

func TestDailyCountsWithoutMemo(t *testing.T) {
	accounts := &stubAccounts{account: domain.Account{ID: 1, UserID: 7}}
	counts := &stubCounts{}
	svc := newTestService(accounts, newStubArticles(), &stubMemos{}, counts)

	saved, err := svc.DailyCounts(context.Background(), accounts.account)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if saved != nil {
		t.Fatalf("без записи за сегодня пересчёта быть не должно: %+v", saved)
	}
	if counts.saved != nil {
		t.Fatal("счётчики не должны сохраняться")
	}
}

func TestDailyCounts(t *testing.T) {
	// svc.now в тестах — 10 марта 2024.
	today := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	accounts := &stubAccounts{account: domain.Account{ID: 1, UserID: 7}}
	articles := newStubArticles()
	memos := &stubMemos{memos: []domain.Memo{{ID: 42, AuthorID: 7, Date: today}}}
	counts := &stubCounts{}
	svc := newTestService(accounts, articles, memos, counts)

	memoID := int64(42)
	added := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	lastYear := time.Date(2023, time.November, 1, 0, 0, 0, 0, time.UTC)
	articles.byBookmark[101] = &domain.Article{ID: 1, BookmarkID: 101, AccountID: 1, MemoID: &memoID, Folder: domain.FolderArchive, Progress: 1, Time: added}
	articles.byBookmark[102] = &domain.Article{ID: 2, BookmarkID: 102, AccountID: 1, Folder: domain.FolderUnread, Time: added}
	articles.byBookmark[103] = &domain.Article{ID: 3, BookmarkID: 103, AccountID: 1, Folder: domain.FolderUnread, Time: added}
	articles.byBookmark[104] = &domain.Article{ID: 4, BookmarkID: 104, AccountID: 1, Folder: domain.FolderArchive, Starred: true, Time: added}
	// Прошлогодний архив в годовые счётчики не входит.
	articles.byBookmark[105] = &domain.Article{ID: 5, BookmarkID: 105, AccountID: 1, Folder: domain.FolderArchive, Time: lastYear}
	// Удалённая, но привязанная статья остаётся в счётчике прочитанного.
	articles.byBookmark[106] = &domain.Article{ID: 6, BookmarkID: 106, AccountID: 1, MemoID: &memoID, Folder: domain.FolderArchive, Progress: 1, Deleted: true, Time: added}

	saved, err := svc.DailyCounts(context.Background(), accounts.account)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if saved == nil {
		t.Fatal("ожидали сохранённые счётчики")
	}
	if *saved.Read != 2 || *saved.Unread != 2 || *saved.Archived != 2 || *saved.Starred != 1 {
		t.Fatalf("неожиданные счётчики: read=%d unread=%d archived=%d starred=%d",
			*saved.Read, *saved.Unread, *saved.Archived, *saved.Starred)
	}
	if counts.saved == nil || counts.saved.MemoID != 42 {
		t.Fatalf("счётчики сохранены не для той записи: %+v", counts.saved)
	}
}

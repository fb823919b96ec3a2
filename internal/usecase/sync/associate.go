package sync

import (
	"context"
	"fmt"
	"time"

	"memoro-sync/internal/domain"
)

// associate привязывает прочитанную статью к записи дневника за день её
// прочтения. Непрочитанная статья теряет устаревшую привязку, поэтому из
// послестраничного слияния associate вызывается только для прочитанных, а
// непрочитанные разбирает пакетный пересмотр. Если записи за нужный день
// нет, статья остаётся непривязанной. Возвращает true, если после вызова
// статья привязана.
func (s *Service) associate(ctx context.Context, account domain.Account, article domain.Article) (bool, error) {
	if !article.Read() {
		if article.MemoID != nil {
			return false, s.articles.SetMemo(ctx, article.ID, nil)
		}
		return false, nil
	}
	day := dateOf(article.ProgressTimestamp.UTC())
	memo, found, err := s.memos.GetByDate(ctx, account.UserID, day)
	if err != nil {
		return false, fmt.Errorf("поиск записи за %s: %w", day.Format("2006-01-02"), err)
	}
	if !found {
		return false, nil
	}
	if article.MemoID != nil && *article.MemoID == memo.ID {
		return true, nil
	}
	if err := s.articles.SetMemo(ctx, article.ID, &memo.ID); err != nil {
		return false, err
	}
	return true, nil
}

// AssociateAll пересматривает привязку всех активных статей аккаунта.
// Возвращает число статей, получивших привязку.
func (s *Service) AssociateAll(ctx context.Context, diaryUser string) (int, error) {
	account, err := s.accounts.GetOrCreateByDiaryUser(ctx, diaryUser)
	if err != nil {
		return 0, fmt.Errorf("получение аккаунта: %w", err)
	}
	articles, err := s.articles.ListByAccount(ctx, account.ID)
	if err != nil {
		return 0, fmt.Errorf("получение статей: %w", err)
	}
	linked := 0
	for _, article := range articles {
		ok, err := s.associate(ctx, account, article)
		if err != nil {
			return linked, err
		}
		if ok {
			linked++
		}
	}
	return linked, nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

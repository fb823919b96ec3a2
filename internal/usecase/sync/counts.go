package sync

import (
	"context"
	"fmt"

	"memoro-sync/internal/domain"
)

// DailyCounts пересчитывает счётчики чтения для сегодняшней записи
// дневника. Без записи за сегодня пересчитывать не для чего, метод
// возвращает nil без ошибки. Все четыре счётчика считаются заново от
// текущего состояния зеркала, инкрементального обновления нет.
func (s *Service) DailyCounts(ctx context.Context, account domain.Account) (*domain.ArticleCounts, error) {
	today := dateOf(s.now().UTC())
	memo, found, err := s.memos.GetByDate(ctx, account.UserID, today)
	if err != nil {
		return nil, fmt.Errorf("поиск записи за сегодня: %w", err)
	}
	if !found {
		return nil, nil
	}

	read, err := s.articles.CountLinked(ctx, memo.ID)
	if err != nil {
		return nil, fmt.Errorf("подсчёт прочитанных: %w", err)
	}
	unread, err := s.articles.CountUnread(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("подсчёт непрочитанных: %w", err)
	}
	year := memo.Date.Year()
	archived, err := s.articles.CountArchivedYTD(ctx, account.ID, year)
	if err != nil {
		return nil, fmt.Errorf("подсчёт архива: %w", err)
	}
	starred, err := s.articles.CountStarredYTD(ctx, account.ID, year)
	if err != nil {
		return nil, fmt.Errorf("подсчёт избранного: %w", err)
	}

	saved, err := s.counts.UpsertCounts(ctx, domain.ArticleCounts{
		MemoID:   memo.ID,
		Read:     &read,
		Unread:   &unread,
		Archived: &archived,
		Starred:  &starred,
	})
	if err != nil {
		return nil, fmt.Errorf("сохранение счётчиков: %w", err)
	}
	return &saved, nil
}

// CountsForUser пересчитывает счётчики по логину пользователя дневника.
func (s *Service) CountsForUser(ctx context.Context, diaryUser string) (*domain.ArticleCounts, error) {
	account, err := s.accounts.GetOrCreateByDiaryUser(ctx, diaryUser)
	if err != nil {
		return nil, fmt.Errorf("получение аккаунта: %w", err)
	}
	return s.DailyCounts(ctx, account)
}

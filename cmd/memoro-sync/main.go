package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"memoro-sync/internal/adapters/instapaper"
	"memoro-sync/internal/adapters/repo"
	"memoro-sync/internal/domain"
	"memoro-sync/internal/infra/config"
	"memoro-sync/internal/infra/db"
	"memoro-sync/internal/infra/log"
	syncusecase "memoro-sync/internal/usecase/sync"
)

var (
	flagDebug     bool
	flagUsername  string
	flagPassword  string
	flagUser      string
	flagAssociate bool
	flagCount     bool

	cfg       config.AppConfig
	logger    zerolog.Logger
	pool      *pgxpool.Pool
	store     *repo.Postgres
	service   *syncusecase.Service
	clientCfg instapaper.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "memoro-sync",
		Short: "Синхронизация закладок Instapaper с дневником Memoro",
		Long: "Сливает закладки Instapaper в локальное зеркало, привязывает " +
			"прочитанные статьи к записям дневника и ведёт счётчики чтения.",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
		RunE:              runRoot,
	}

	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "D", false, "подробный вывод и продолжение после ошибок")
	rootCmd.PersistentFlags().StringVarP(&flagUsername, "username", "u", "", "логин Instapaper (по умолчанию INSTAPAPER_USERNAME)")
	rootCmd.PersistentFlags().StringVarP(&flagPassword, "password", "p", "", "пароль Instapaper (по умолчанию INSTAPAPER_PASSWORD)")
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "U", "", "логин пользователя дневника (по умолчанию текущий пользователь ОС)")
	rootCmd.Flags().BoolVarP(&flagAssociate, "associate", "a", false, "только пересмотреть привязки статей к записям")
	rootCmd.Flags().BoolVarP(&flagCount, "count", "c", false, "только пересчитать счётчики чтения")
	rootCmd.MarkFlagsMutuallyExclusive("associate", "count")

	addCmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Добавить закладку в Instapaper",
		Args:  cobra.ExactArgs(1),
		RunE:  runAdd,
	}
	addCmd.Flags().String("title", "", "заголовок закладки")
	addCmd.Flags().String("description", "", "описание закладки")
	addCmd.Flags().String("folder", "", "папка назначения")
	addCmd.Flags().Bool("keep-redirects", false, "не разрешать редиректы на стороне Instapaper")

	textCmd := &cobra.Command{
		Use:   "text <bookmark_id>",
		Short: "Вывести обработанный HTML статьи",
		Args:  cobra.ExactArgs(1),
		RunE:  runText,
	}

	rootCmd.AddCommand(addCmd, textCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	cfg = config.Load()
	if flagDebug {
		cfg.AppEnv = "dev"
	}
	logger = log.NewLogger(cfg.AppEnv)

	if flagUsername == "" {
		flagUsername = cfg.Instapaper.Username
	}
	if flagPassword == "" {
		flagPassword = cfg.Instapaper.Password
	}
	if flagUser == "" {
		current, err := user.Current()
		if err != nil {
			return fmt.Errorf("не удалось определить пользователя ОС: %w", err)
		}
		flagUser = current.Username
	}

	consumerID, err := config.Resolve("", cfg.Instapaper.ConsumerID, config.ConsumerIDEnvVar)
	if err != nil {
		return fmt.Errorf("consumer id: %w", err)
	}
	consumerSecret, err := config.Resolve("", cfg.Instapaper.ConsumerSecret, config.ConsumerSecretEnvVar)
	if err != nil {
		return fmt.Errorf("consumer secret: %w", err)
	}
	clientCfg = instapaper.Config{
		ConsumerKey:    consumerID,
		ConsumerSecret: consumerSecret,
		BaseURL:        cfg.Instapaper.BaseURL,
		Timeout:        cfg.Instapaper.Timeout,
	}

	pool, err = db.Connect(cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("подключение к БД: %w", err)
	}
	store = repo.NewPostgres(pool)
	service = syncusecase.NewService(store, store, store, store, cfg.Limits.SyncPage)
	return nil
}

func teardown(cmd *cobra.Command, args []string) {
	if pool != nil {
		pool.Close()
	}
}

func clientFactory(creds domain.Credentials) (domain.BookmarkClient, error) {
	if creds.Valid() {
		return instapaper.NewClientWithCredentials(clientCfg, creds)
	}
	return instapaper.NewClient(clientCfg)
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case flagAssociate:
		linked, err := service.AssociateAll(ctx, flagUser)
		if err != nil {
			return reportError(err)
		}
		logger.Info().Int("linked", linked).Msg("привязки пересмотрены")
		return nil
	case flagCount:
		counts, err := service.CountsForUser(ctx, flagUser)
		if err != nil {
			return reportError(err)
		}
		if counts == nil {
			logger.Info().Msg("записи за сегодня нет, счётчики не менялись")
			return nil
		}
		logger.Info().
			Int("read", *counts.Read).
			Int("unread", *counts.Unread).
			Int("archived", *counts.Archived).
			Int("starred", *counts.Starred).
			Msg("счётчики пересчитаны")
		return nil
	}

	result, err := service.Run(ctx, clientFactory, syncusecase.SessionParams{
		DiaryUser:  flagUser,
		Username:   flagUsername,
		Password:   flagPassword,
		WithCounts: true,
	})
	if err != nil {
		logger.Error().
			Str("session_id", result.SessionID).
			Str("state", string(result.State)).
			Msg("синхронизация прервана")
		return reportError(err)
	}
	logger.Info().
		Str("session_id", result.SessionID).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Msg("синхронизация завершена")
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := openClient(ctx)
	if err != nil {
		return reportError(err)
	}

	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")
	folder, _ := cmd.Flags().GetString("folder")
	keepRedirects, _ := cmd.Flags().GetBool("keep-redirects")

	records, err := client.Add(ctx, instapaper.AddOptions{
		URL:           args[0],
		Title:         title,
		Description:   description,
		FolderID:      folder,
		KeepRedirects: keepRedirects,
	})
	if err != nil {
		return reportError(err)
	}
	for _, rec := range records {
		if rec.Kind == domain.RecordBookmark && rec.Bookmark != nil {
			logger.Info().
				Int64("bookmark_id", rec.Bookmark.BookmarkID).
				Str("title", rec.Bookmark.Title).
				Msg("закладка добавлена")
		}
	}
	return nil
}

func runText(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	bookmarkID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("некорректный bookmark_id %q", args[0])
	}
	client, err := openClient(ctx)
	if err != nil {
		return reportError(err)
	}
	text, err := client.GetText(ctx, bookmarkID)
	if err != nil {
		return reportError(err)
	}
	fmt.Println(text)
	return nil
}

// openClient возвращает аутентифицированный клиент: кэшированные токены
// аккаунта, а при их отсутствии — полный обмен логина и пароля с
// сохранением новой пары.
func openClient(ctx context.Context) (*instapaper.Client, error) {
	account, err := store.GetOrCreateByDiaryUser(ctx, flagUser)
	if err != nil {
		return nil, fmt.Errorf("получение аккаунта: %w", err)
	}
	if account.HasCachedCredentials() {
		return instapaper.NewClientWithCredentials(clientCfg, account.Credentials)
	}
	client, err := instapaper.NewClient(clientCfg)
	if err != nil {
		return nil, err
	}
	creds, err := client.Authenticate(ctx, flagUsername, flagPassword)
	if err != nil {
		return nil, fmt.Errorf("аутентификация: %w", err)
	}
	if err := store.SaveCredentials(ctx, account.ID, creds); err != nil {
		return nil, fmt.Errorf("сохранение токенов: %w", err)
	}
	return client, nil
}

// reportError в отладочном режиме печатает ошибку целиком и подавляет
// ненулевой код выхода, чтобы можно было продолжить с другими флагами.
func reportError(err error) error {
	if flagDebug {
		logger.Error().Msgf("%+v", err)
		return nil
	}
	return err
}

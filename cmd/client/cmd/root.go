// cmd/client/cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"repairjournal/cmd/client/cmd/types"
	"repairjournal/internal/app/client"
	"repairjournal/internal/app/client/config"
	"repairjournal/internal/utils/logger"
)

var (
	cfgFile   string
	debug     bool
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "journal",
	Short: "Журнал ремонтов оборудования",
	Long: `Журнал ремонтов - клиент для учета оборудования и заявок на ремонт.

Администратор и авторы регистрируют оборудование и заявки, ремонтные
бригады отмечают выполнение. Данные синхронизируются с сервером журнала
и остаются доступны из локального кэша без сети.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// флаги командной строки важнее файла и окружения
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if debug {
		cfg.Env = config.EnvLocal
	}

	log := logger.NewWriter(cfg.Env, os.Stderr)

	app, err := client.New(cfg, os.Stdout, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, types.ClientAppKey, app))
	return nil
}

func closeApp(cmd *cobra.Command, _ []string) error {
	app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
	if !ok {
		return nil
	}
	return app.Close()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "URL сервера журнала")
}

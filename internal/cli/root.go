package cli

import (
	"fmt"
	"os"

	"llmsecrets/internal/config"
	"llmsecrets/internal/logger"
	"llmsecrets/internal/storage"
	"llmsecrets/pkg/api"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "llmsecrets",
	Short: "Redact secrets from chat prompts before they are sent",
	Long: "Attaches to a chat page over the Chrome DevTools Protocol, intercepts the send gesture,\n" +
		"replaces the prompt with its redacted form and submits it on the user's behalf.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app 命令运行所需的依赖
type app struct {
	cfg   *config.Config
	log   logger.Logger
	store *storage.Store
	svc   api.Service
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Err(err, "关闭数据库失败")
	}
}

// bootstrap 加载配置、初始化日志与本地存储
func bootstrap() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	l := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writers: cfg.Log.Writer,
		File:    cfg.Log.File,
	})

	store, err := storage.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, l)
	if err != nil {
		return nil, fmt.Errorf("打开本地存储: %w", err)
	}
	return &app{cfg: cfg, log: l, store: store, svc: api.NewService(cfg, store, l)}, nil
}

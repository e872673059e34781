package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"creatordesk/internal/config"
	"creatordesk/internal/db"
	"creatordesk/internal/engine"
	"creatordesk/internal/metrics"
	"creatordesk/internal/migrate"
	"creatordesk/internal/repo"
	"creatordesk/internal/secrets"
	"creatordesk/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "desk",
	Short: "creatordesk CLI",
	Long: `creatordesk is an AI talent manager for independent creators.
- Workspace: one creator's pipeline of brands, campaigns, emails and activity.
- Credentials: the workspace brings its own model API key, stored sealed.
- Chat: the AI manager answers in a streamed reply and may call tools that read
  or change the workspace; every change is recorded in the activity feed.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", config.FileName, "path to desk.yml")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (overrides server.data_dir)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("dev", false, "human-readable development logging")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("dev", rootCmd.PersistentFlags().Lookup("dev"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workspaceCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(credentialsCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(conversationsCmd())
	rootCmd.AddCommand(chatCmd())
}

// loadConfig reads desk.yml and applies DESK_* overrides for the values
// that should not live in the file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("data-dir"); v != "" {
		cfg.Server.DataDir = v
	}
	if v := viper.GetString("jwt-secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := viper.GetString("secrets-passphrase"); v != "" {
		cfg.Secrets.Passphrase = v
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	if viper.GetBool("dev") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default desk.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("config")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o600); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{DataDir: cfg.Server.DataDir})
			if err != nil {
				return err
			}
			defer conn.Close()
			applied, err := migrate.Apply(cmd.Context(), conn)
			if err != nil {
				return err
			}
			version, err := migrate.Version(cmd.Context(), conn)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"applied": applied, "version": version})
			}
			if len(applied) == 0 {
				fmt.Printf("Database is up to date (version %d)\n", version)
				return nil
			}
			for _, name := range applied {
				fmt.Println("applied", name)
			}
			fmt.Printf("Database at version %d\n", version)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireSecrets(); err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			conn, err := db.Open(db.Config{DataDir: cfg.Server.DataDir})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			handler, err := server.New(server.Config{
				Engine:   engine.New(conn),
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: cfg.Auth.JWTSecret},
				Chat: server.ChatConfig{
					Provider:          cfg.LLM.Provider,
					Model:             cfg.LLM.Model,
					MaxTokens:         cfg.LLM.MaxTokens,
					MaxRounds:         cfg.Agent.MaxRounds,
					SystemPromptExtra: cfg.Agent.SystemPromptExtra,
					FetchTimeout:      cfg.Fetch.Timeout,
					FetchMaxBytes:     cfg.Fetch.MaxBytes,
				},
				Sealer:  secrets.Sealer{Passphrase: cfg.Secrets.Passphrase},
				Logger:  log,
				Metrics: metrics.New(),
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info("serving creatordesk API",
				zap.String("addr", addr),
				zap.String("base_path", basePath),
				zap.String("openapi", "/openapi.json"),
				zap.String("metrics", "/metrics"))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides server.base_path)")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, *config.Config, engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{DataDir: cfg.Server.DataDir})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, cfg, engine.New(conn))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	return withEngine(ctx, func(ctx context.Context, _ *config.Config, e engine.Engine) error {
		return fn(ctx, e.Repo)
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"creatordesk/internal/config"
	"creatordesk/internal/domain"
	"creatordesk/internal/engine"
	"creatordesk/internal/engine/auth"
	"creatordesk/internal/repo"
	"creatordesk/internal/secrets"
	"creatordesk/internal/server"
)

const apiKeyPrefix = "dsk_"

func workspaceCmd() *cobra.Command {
	ws := &cobra.Command{Use: "workspace", Short: "Manage workspaces"}
	ws.AddCommand(workspaceCreateCmd())
	return ws
}

func workspaceCreateCmd() *cobra.Command {
	var email, userName, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workspace owned by a user (created when new)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, cfg *config.Config, e engine.Engine) error {
				signup, err := auth.Service{Repo: e.Repo}.Bootstrap(ctx, email, userName, name)
				if err != nil {
					return err
				}
				out := map[string]any{"user": signup.User, "workspace": signup.Workspace}
				if cfg.Auth.JWTSecret != "" {
					token, err := server.IssueToken(cfg.Auth.JWTSecret, signup.User.ID, cfg.Auth.TokenTTL, time.Now())
					if err != nil {
						return err
					}
					out["token"] = token
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Workspace: %s (%s)\n", signup.Workspace.Name, signup.Workspace.ID)
				fmt.Printf("Owner: %s (%s)\n", signup.User.Email, signup.User.ID)
				if token, ok := out["token"]; ok {
					fmt.Printf("Token: %s\n", token)
				} else {
					fmt.Println("Token: not issued (set DESK_JWT_SECRET, then run 'desk token')")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "owner email")
	cmd.Flags().StringVar(&userName, "user-name", "", "owner display name")
	cmd.Flags().StringVar(&name, "name", "", "workspace name (defaults to the email)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func tokenCmd() *cobra.Command {
	var email string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, cfg *config.Config, e engine.Engine) error {
				if cfg.Auth.JWTSecret == "" {
					return errors.New("auth.jwt_secret is not set (DESK_JWT_SECRET)")
				}
				u, err := userByEmail(ctx, e.Repo, email)
				if err != nil {
					return err
				}
				if ttl == 0 {
					ttl = cfg.Auth.TokenTTL
				}
				token, err := server.IssueToken(cfg.Auth.JWTSecret, u.ID, ttl, time.Now())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"token": token, "userId": u.ID})
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func apiKeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	k.AddCommand(apiKeyCreateCmd())
	return k
}

func apiKeyCreateCmd() *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for a user; the key is shown once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				u, err := userByEmail(ctx, r, email)
				if err != nil {
					return err
				}
				raw := make([]byte, 24)
				if _, err := rand.Read(raw); err != nil {
					return err
				}
				key := apiKeyPrefix + hex.EncodeToString(raw)
				rec := domain.APIKey{ID: uuid.NewString(), UserID: u.ID, Name: name, KeyHash: repo.HashAPIKey(key)}
				if err := r.InsertAPIKey(ctx, nil, rec); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": rec.ID, "userId": u.ID, "key": key})
				}
				fmt.Printf("API key %s for %s\n", rec.ID, u.Email)
				fmt.Println(key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&name, "name", "", "label for the key")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func credentialsCmd() *cobra.Command {
	c := &cobra.Command{Use: "credentials", Short: "Manage the workspace model API key"}
	c.AddCommand(credentialsSetCmd())
	c.AddCommand(credentialsClearCmd())
	return c
}

func credentialsSetCmd() *cobra.Command {
	var email, provider string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a model API key for the user's workspace (key read from stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, cfg *config.Config, e engine.Engine) error {
				if !config.ValidProvider(provider) {
					return fmt.Errorf("unsupported provider %q (want one of %s)", provider, strings.Join(config.Providers, ", "))
				}
				if cfg.Secrets.Passphrase == "" {
					return secrets.ErrNoPassphrase
				}
				scope, err := scopeByEmail(ctx, e.Repo, email)
				if err != nil {
					return err
				}
				key, err := readSecret(os.Stdin)
				if err != nil {
					return err
				}
				sealed, err := secrets.Sealer{Passphrase: cfg.Secrets.Passphrase}.Seal(scope.WorkspaceID, key)
				if err != nil {
					return err
				}
				cred := domain.Credential{
					WorkspaceID: scope.WorkspaceID,
					Provider:    provider,
					SealedKey:   sealed,
					Hint:        secrets.Hint(key),
				}
				if err := e.Repo.UpsertCredential(ctx, cred); err != nil {
					return err
				}
				fmt.Printf("Stored %s key %s for workspace %s\n", provider, cred.Hint, scope.WorkspaceID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "workspace owner email")
	cmd.Flags().StringVar(&provider, "provider", "anthropic", "model provider")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func credentialsClearCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the model API key of the user's workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				scope, err := scopeByEmail(ctx, r, email)
				if err != nil {
					return err
				}
				err = r.DeleteCredential(ctx, scope.WorkspaceID)
				if errors.Is(err, repo.ErrNotFound) {
					fmt.Println("No key stored")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Printf("Removed key for workspace %s\n", scope.WorkspaceID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "workspace owner email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func userByEmail(ctx context.Context, r repo.Repo, email string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := r.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, fmt.Errorf("no user with email %q", email)
	}
	return u, err
}

func scopeByEmail(ctx context.Context, r repo.Repo, email string) (auth.Scope, error) {
	u, err := userByEmail(ctx, r, email)
	if err != nil {
		return auth.Scope{}, err
	}
	return auth.Service{Repo: r}.Resolve(ctx, u.ID)
}

// readSecret reads the first non-empty line from f.
func readSecret(f *os.File) (string, error) {
	if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		fmt.Fprint(os.Stderr, "API key: ")
	}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", errors.New("no API key on stdin")
}

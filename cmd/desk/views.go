package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"creatordesk/internal/domain"
	"creatordesk/internal/repo"
)

func profileCmd() *cobra.Command {
	p := &cobra.Command{Use: "profile", Short: "Creator profile"}
	p.AddCommand(profileShowCmd())
	return p
}

func profileShowCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the creator profile of the user's workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				scope, err := scopeByEmail(ctx, r, email)
				if err != nil {
					return err
				}
				p, err := r.GetProfile(ctx, scope.WorkspaceID)
				if errors.Is(err, repo.ErrNotFound) {
					fmt.Println("No profile yet")
					return nil
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Print(p.DisplayName)
				if p.Niche != "" {
					fmt.Printf(" (%s)", p.Niche)
				}
				fmt.Println()
				if p.Bio != "" {
					fmt.Println(p.Bio)
				}
				if p.Audience != "" {
					fmt.Println("Audience:", p.Audience)
				}
				if p.RateCard != "" {
					fmt.Println("Rates:", p.RateCard)
				}
				if len(p.Platforms) == 0 {
					return nil
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Platform", "Handle", "Followers", "Avg views", "Engagement"})
				for _, s := range p.Platforms {
					eng := "-"
					if s.EngagementRate != nil {
						eng = fmt.Sprintf("%.2f%%", *s.EngagementRate)
					}
					tw.AppendRow(table.Row{s.Platform, s.Handle, s.Followers, s.AvgViews, eng})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "workspace owner email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func activityCmd() *cobra.Command {
	a := &cobra.Command{Use: "activity", Short: "Workspace activity feed"}
	a.AddCommand(activityTailCmd())
	return a
}

func activityTailCmd() *cobra.Command {
	var email, activityType string
	var limit int
	var follow bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest activities, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				scope, err := scopeByEmail(ctx, r, email)
				if err != nil {
					return err
				}
				items, err := r.ListActivities(ctx, scope.WorkspaceID, repo.ActivityFilters{Type: activityType, Limit: limit})
				if err != nil {
					return err
				}
				if err := printActivities(items); err != nil {
					return err
				}
				if !follow {
					return nil
				}
				var last int64
				if len(items) > 0 {
					last = items[0].Seq
				}
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
					}
					items, err := r.ListActivities(ctx, scope.WorkspaceID, repo.ActivityFilters{Type: activityType, Limit: 200})
					if err != nil {
						return err
					}
					var fresh []domain.Activity
					for _, a := range items {
						if a.Seq > last {
							fresh = append(fresh, a)
						}
					}
					if len(fresh) == 0 {
						continue
					}
					last = fresh[0].Seq
					if err := printActivities(fresh); err != nil {
						return err
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "workspace owner email")
	cmd.Flags().StringVar(&activityType, "type", "", "only this activity type")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of activities")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep polling for new activities")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval with --follow")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func printActivities(items []domain.Activity) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"Seq", "When", "Type", "Description"})
	for _, a := range items {
		tw.AppendRow(table.Row{a.Seq, a.CreatedAt, a.Type, a.Description})
	}
	tw.Render()
	return nil
}

func conversationsCmd() *cobra.Command {
	c := &cobra.Command{Use: "conversations", Short: "Chat conversations"}
	c.AddCommand(conversationsListCmd())
	return c
}

func conversationsListCmd() *cobra.Command {
	var email string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's conversations, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				scope, err := scopeByEmail(ctx, r, email)
				if err != nil {
					return err
				}
				items, err := r.ListConversations(ctx, scope.WorkspaceID, scope.UserID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Title", "Updated"})
				for _, c := range items {
					title := ""
					if c.Title != nil {
						title = *c.Title
					}
					tw.AppendRow(table.Row{c.ID, title, c.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().IntVar(&limit, "limit", 50, "number of conversations")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

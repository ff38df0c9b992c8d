package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/service/ai"
	"github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/store"
)

// serviceOpener builds the session service and returns a cleanup func.
type serviceOpener func(ctx context.Context) (*chat.Service, func() error, error)

// openService wires storage and, when configured, the model client.
func openService(ctx context.Context) (*chat.Service, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("配置加载失败: %w", err)
	}

	backend, err := cfg.Storage.OpenBackend(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open session storage: %w", err)
	}
	sessions := store.New(backend, store.Options{DefaultTitle: cfg.Chat.DefaultTitle})

	var client chat.Completer
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			_ = sessions.Close()
			return nil, nil, fmt.Errorf("create chat model: %w", err)
		}
		aiClient, err := ai.NewClient(ctx, chatModel)
		if err != nil {
			_ = sessions.Close()
			return nil, nil, err
		}
		client = aiClient
	}

	opts := chat.Options{SystemPrompt: cfg.Chat.SystemPrompt, Timeout: cfg.AI.Timeout}
	if cfg.AI.Temperature != nil {
		opts.Temperature = float32(*cfg.AI.Temperature)
	}
	if cfg.AI.MaxTokens != nil {
		opts.MaxTokens = *cfg.AI.MaxTokens
	}

	return chat.NewService(sessions, client, opts), sessions.Close, nil
}

// cli holds the lazily opened service shared by all subcommands.
type cli struct {
	open    serviceOpener
	svc     *chat.Service
	cleanup func() error
	cancel  context.CancelFunc
}

// close releases whatever PersistentPreRunE opened, even when the
// subcommand itself failed.
func (c *cli) close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.cleanup == nil {
		return nil
	}
	err := c.cleanup()
	c.cleanup = nil
	return err
}

func (c *cli) service() *chat.Service {
	return c.svc
}

func newRootCmd(open serviceOpener) (*cobra.Command, *cli) {
	c := &cli{open: open}
	var timeout time.Duration

	root := &cobra.Command{
		Use:           "chatctl",
		Short:         "Inspect and edit stored chat sessions",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			c.cancel = cancel
			cmd.SetContext(ctx)

			var err error
			c.svc, c.cleanup, err = c.open(ctx)
			return err
		},
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", 90*time.Second, "overall command timeout")

	root.AddCommand(
		newListCmd(c.service),
		newShowCmd(c.service),
		newCreateCmd(c.service),
		newRenameCmd(c.service),
		newDeleteCmd(c.service),
		newSendCmd(c.service),
	)
	return root, c
}

func newListCmd(service func() *chat.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries, err := service().ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tTITLE")
			for _, s := range summaries {
				created := "-"
				if !s.CreatedAt.IsZero() {
					created = s.CreatedAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, created, s.Title)
			}
			return w.Flush()
		},
	}
}

func newShowCmd(service func() *chat.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := service().GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", session.Title, session.ID)
			for _, turn := range session.Messages {
				fmt.Fprintf(out, "\n[%s]\n%s\n", turn.Role, strings.TrimSpace(turn.Content))
			}
			return nil
		},
	}
}

func newCreateCmd(service func() *chat.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "create [first message]",
		Short: "Create an empty session titled from the given text",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := service().CreateSession(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", session.ID, session.Title)
			return nil
		},
	}
}

func newRenameCmd(service func() *chat.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Change a session title",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := service().UpdateTitle(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %q\n", session.ID, session.Title)
			return nil
		},
	}
}

func newDeleteCmd(service func() *chat.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := service().DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newSendCmd(service func() *chat.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "send <id> <message>",
		Short: "Send a message and print the model reply",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := service().SendMessage(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

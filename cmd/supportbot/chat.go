package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"supportbot/internal/client"
	"supportbot/internal/domain"
	"supportbot/internal/service"
	"supportbot/internal/tui"
)

// levelForTUI keeps log lines from drawing over the terminal UI.
const levelForTUI = zerolog.ErrorLevel

// remotePort sends each message as a POST /api/chat request.
type remotePort struct {
	c *client.Client
}

func (p remotePort) Send(ctx context.Context, sessionID, message string) (tui.Reply, error) {
	r, err := p.c.Chat(ctx, sessionID, message)
	if err != nil {
		return tui.Reply{}, err
	}
	return tui.Reply{Text: r.Response, SessionID: r.SessionID, Escalate: r.Escalated()}, nil
}

// streamPort sends messages over one websocket connection.
type streamPort struct {
	s *client.Stream
}

func (p streamPort) Send(ctx context.Context, sessionID, message string) (tui.Reply, error) {
	r, err := p.s.Send(message)
	if err != nil {
		return tui.Reply{}, err
	}
	return tui.Reply{Text: r.Response, SessionID: r.SessionID, Escalate: r.Escalated()}, nil
}

// localPort runs the chat service in-process, without a server.
type localPort struct {
	svc *service.ChatService
}

func (p localPort) Send(ctx context.Context, sessionID, message string) (tui.Reply, error) {
	r, err := p.svc.Chat(ctx, sessionID, message)
	if err != nil {
		return tui.Reply{}, err
	}
	return tui.Reply{Text: r.Response, SessionID: r.SessionID, Escalate: r.Action == domain.ActionEscalate}, nil
}

func newChatCmd(cfgPath *string) *cobra.Command {
	var (
		serverURL string
		sessionID string
		local     bool
		useWS     bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the support bot in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				port    tui.ChatPort
				summary string
			)
			switch {
			case local:
				cfg, err := loadConfig(*cfgPath)
				if err != nil {
					return err
				}
				c, err := buildComponents(ctx, cfg, newLogger(cfg).Level(levelForTUI))
				if err != nil {
					return err
				}
				defer c.store.Close()
				port = localPort{svc: c.chat}
				summary = fmt.Sprintf("In-process, %d FAQ entries", c.index.Len())
			default:
				cl := client.New(serverURL, 0)
				hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				n, err := cl.Health(hctx)
				cancel()
				if err != nil {
					return fmt.Errorf("server %s not reachable: %w", serverURL, err)
				}
				summary = fmt.Sprintf("%s, %d FAQ entries", serverURL, n)
				if useWS {
					s, err := cl.Dial(ctx, sessionID)
					if err != nil {
						return err
					}
					defer s.Close()
					port = streamPort{s: s}
					summary += ", websocket"
				} else {
					port = remotePort{c: cl}
				}
			}

			final, err := tea.NewProgram(tui.New(port, summary, sessionID), tea.WithAltScreen()).Run()
			if err != nil {
				return err
			}
			if m, ok := final.(tui.Model); ok && m.SessionID() != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "session: %s\n", m.SessionID())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8000", "Base URL of a running supportbot server")
	cmd.Flags().StringVar(&sessionID, "session", "", "Resume an existing session")
	cmd.Flags().BoolVar(&local, "local", false, "Run the chat service in-process instead of connecting to a server")
	cmd.Flags().BoolVar(&useWS, "ws", false, "Use the websocket endpoint instead of HTTP requests")
	return cmd
}

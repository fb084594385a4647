package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"pokewatch/internal/metrics"
)

type entry struct {
	def    mcp.Tool
	handle func(context.Context, mcp.CallToolRequest) (any, bool)
}

// definitions lists every tool in registration order.
func (s *Service) definitions() []entry {
	return []entry{
		{
			mcp.NewTool("greet",
				mcp.WithDescription("Greet a user by name with a welcome message from the MCP server"),
				mcp.WithString("name", mcp.Required(), mcp.Description("Name to greet")),
			),
			func(_ context.Context, req mcp.CallToolRequest) (any, bool) {
				return s.Greet(req.GetString("name", "friend")), true
			},
		},
		{
			mcp.NewTool("get_server_info",
				mcp.WithDescription("Get server name, version, environment, configured integrations and available tools"),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			func(context.Context, mcp.CallToolRequest) (any, bool) {
				return s.ServerInfo(), true
			},
		},
		{
			mcp.NewTool("send_poke_message",
				mcp.WithDescription("Send a message via the Poke API"),
				mcp.WithString("message", mcp.Required(), mcp.Description("The message content to send")),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (any, bool) {
				msg, err := req.RequireString("message")
				if err != nil {
					return invalid(err), false
				}
				r := s.SendPokeMessage(ctx, msg)
				return r, r.OK()
			},
		},
		{
			mcp.NewTool("send_bulk_poke_messages",
				mcp.WithDescription("Send multiple messages via the Poke API, in order"),
				mcp.WithArray("messages", mcp.Required(), mcp.Description("Message strings to send"), mcp.WithStringItems()),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (any, bool) {
				msgs, err := req.RequireStringSlice("messages")
				if err != nil {
					return invalid(err), false
				}
				r := s.SendBulk(ctx, msgs)
				return r, r.OK()
			},
		},
		{
			mcp.NewTool("send_poke_notification",
				mcp.WithDescription("Send a formatted notification message via Poke"),
				mcp.WithString("title", mcp.Required(), mcp.Description("Notification title")),
				mcp.WithString("message", mcp.Required(), mcp.Description("The notification content")),
				mcp.WithBoolean("urgent", mcp.Description("Prefix the title with an urgent marker"), mcp.DefaultBool(false)),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (any, bool) {
				title, err := req.RequireString("title")
				if err != nil {
					return invalid(err), false
				}
				msg, err := req.RequireString("message")
				if err != nil {
					return invalid(err), false
				}
				r := s.SendNotification(ctx, title, msg, req.GetBool("urgent", false))
				return r, r.OK()
			},
		},
		{
			mcp.NewTool("test_poke_connection",
				mcp.WithDescription("Test the connection to the Poke API by sending a test message"),
			),
			func(ctx context.Context, _ mcp.CallToolRequest) (any, bool) {
				r := s.TestPokeConnection(ctx)
				return r, r.OK()
			},
		},
		{
			mcp.NewTool("get_poke_status",
				mcp.WithDescription("Get the current status of the Poke API integration"),
			),
			func(ctx context.Context, _ mcp.CallToolRequest) (any, bool) {
				r := s.PokeStatus(ctx)
				return r, r.OK()
			},
		},
		{
			mcp.NewTool("get_twitter_metrics",
				mcp.WithDescription("Get the last 24 hours of tweet engagement metrics for a user"),
				mcp.WithString("username", mcp.Required(), mcp.Description("X username, with or without @")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (any, bool) {
				u, err := req.RequireString("username")
				if err != nil {
					return invalid(err), false
				}
				r := s.TwitterMetrics(ctx, u)
				return r, r.OK()
			},
		},
		{
			mcp.NewTool("send_twitter_daily_report_tool",
				mcp.WithDescription("Send the daily Twitter metrics report via Poke"),
				mcp.WithString("username", mcp.Required(), mcp.Description("X username, with or without @")),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (any, bool) {
				u, err := req.RequireString("username")
				if err != nil {
					return invalid(err), false
				}
				r := s.SendDailyReport(ctx, u)
				return r, r.OK()
			},
		},
		{
			mcp.NewTool("setup_twitter_automation",
				mcp.WithDescription("Schedule the daily Twitter metrics report at a given hour"),
				mcp.WithString("username", mcp.Required(), mcp.Description("X username, with or without @")),
				mcp.WithNumber("time_hour", mcp.Description("Hour to send the report, 0-23"), mcp.DefaultNumber(21), mcp.Min(0), mcp.Max(23)),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (any, bool) {
				u, err := req.RequireString("username")
				if err != nil {
					return invalid(err), false
				}
				r := s.SetupAutomation(ctx, u, req.GetInt("time_hour", 21))
				return r, r.OK()
			},
		},
		{
			mcp.NewTool("get_tweet_count",
				mcp.WithDescription("Count a user's posts over the last 24 hours using the counts endpoint"),
				mcp.WithString("username", mcp.Required(), mcp.Description("X username, with or without @")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (any, bool) {
				u, err := req.RequireString("username")
				if err != nil {
					return invalid(err), false
				}
				r := s.TweetCount(ctx, u)
				return r, r.OK()
			},
		},
		{
			mcp.NewTool("setup_tweet_reminder",
				mcp.WithDescription("Register a daily reminder sent via Poke when a user has posted fewer than the required tweets in the last 24 hours"),
				mcp.WithString("username", mcp.Required(), mcp.Description("X username, with or without @")),
				mcp.WithString("time_of_day", mcp.Required(), mcp.Description("24-hour HH:MM time to check")),
				mcp.WithNumber("min_required_count", mcp.Description("Minimum posts in 24h before the reminder stays silent"), mcp.DefaultNumber(1), mcp.Min(1)),
				mcp.WithString("message", mcp.Description("Custom reminder text; a default is generated when empty")),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (any, bool) {
				u, err := req.RequireString("username")
				if err != nil {
					return invalid(err), false
				}
				tod, err := req.RequireString("time_of_day")
				if err != nil {
					return invalid(err), false
				}
				r := s.SetupReminder(ctx, u, tod, req.GetInt("min_required_count", 1), req.GetString("message", ""))
				return r, r.OK()
			},
		},
		{
			mcp.NewTool("list_tweet_reminders",
				mcp.WithDescription("List all tweet reminders, active and disabled"),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			func(ctx context.Context, _ mcp.CallToolRequest) (any, bool) {
				r := s.ListReminders(ctx)
				return r, r.OK()
			},
		},
		{
			mcp.NewTool("disable_tweet_reminder",
				mcp.WithDescription("Disable a tweet reminder by id (username@HH:MM)"),
				mcp.WithString("reminder_id", mcp.Required(), mcp.Description("Reminder id as returned by setup_tweet_reminder")),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (any, bool) {
				id, err := req.RequireString("reminder_id")
				if err != nil {
					return invalid(err), false
				}
				r := s.DisableReminder(ctx, id)
				return r, r.OK()
			},
		},
		{
			mcp.NewTool("check_tweet_reminders",
				mcp.WithDescription("Check reminders due this minute and send those whose goal is not met"),
			),
			func(ctx context.Context, _ mcp.CallToolRequest) (any, bool) {
				r := s.CheckReminders(ctx)
				return r, r.OK()
			},
		},
	}
}

// Names lists the tool names in registration order.
func Names() []string {
	var s Service
	defs := s.definitions()
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.def.Name)
	}
	return out
}

func invalid(err error) Result[struct{}] {
	return Result[struct{}]{Error: &Failure{Kind: KindValidation, Message: err.Error()}}
}

// Register adds every tool to srv.
func (s *Service) Register(srv *server.MCPServer) {
	for _, e := range s.definitions() {
		srv.AddTool(e.def, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			v, success := e.handle(ctx, req)
			metrics.IncToolCall(e.def.Name, success)
			return toolResult(v, success)
		})
	}
}

func toolResult(v any, success bool) (*mcp.CallToolResult, error) {
	if text, isText := v.(string); isText {
		return mcp.NewToolResultText(text), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("encode result", err), nil
	}
	res := mcp.NewToolResultStructured(v, string(b))
	res.IsError = !success
	return res, nil
}

// NewMCPServer builds the MCP server with every tool registered.
func NewMCPServer(s *Service) *server.MCPServer {
	srv := server.NewMCPServer(
		s.d.Info.Name,
		s.d.Info.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Relay messages through Poke and watch X posting activity: counts, daily reports and low-post reminders."),
	)
	s.Register(srv)
	return srv
}

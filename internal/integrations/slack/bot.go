package slackbot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"

	"protodash/internal/config"
	"protodash/internal/dashboard"
	"protodash/internal/report"
)

const tmoCommand = "/tmo"

// Poster is the part of the Slack web API the bot writes through.
type Poster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	PostEphemeral(channelID, userID string, options ...slack.MsgOption) (string, error)
}

type Bot struct {
	cfg    config.Config
	svc    *dashboard.Service
	api    Poster
	client *slack.Client
	logger *zap.Logger
}

func New(cfg config.Config, svc *dashboard.Service, api *slack.Client, logger *zap.Logger) *Bot {
	b := newBot(cfg, svc, api, logger)
	b.client = api
	return b
}

func newBot(cfg config.Config, svc *dashboard.Service, api Poster, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Bot{cfg: cfg, svc: svc, api: api, logger: logger}
}

// Run connects over Socket Mode and serves slash commands until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if b.client == nil {
		return errors.New("slack client not configured")
	}
	client := socketmode.New(b.client)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-client.Events:
				if !ok {
					return
				}
				switch evt.Type {
				case socketmode.EventTypeConnected:
					b.logger.Info("slack bot connected via socket mode")
				case socketmode.EventTypeSlashCommand:
					client.Ack(*evt.Request)
					cmd, ok := evt.Data.(slack.SlashCommand)
					if !ok {
						continue
					}
					b.logger.Info("slash command received",
						zap.String("command", cmd.Command),
						zap.String("user", cmd.UserID),
						zap.String("channel", cmd.ChannelID))
					go b.HandleSlashCommand(ctx, cmd)
				case socketmode.EventTypeEventsAPI, socketmode.EventTypeInteractive:
					client.Ack(*evt.Request)
				}
			}
		}
	}()

	return client.RunContext(ctx)
}

func (b *Bot) HandleSlashCommand(ctx context.Context, cmd slack.SlashCommand) {
	switch cmd.Command {
	case tmoCommand:
		b.handleTMO(ctx, cmd)
	}
}

func (b *Bot) handleTMO(ctx context.Context, cmd slack.SlashCommand) {
	if strings.EqualFold(strings.TrimSpace(cmd.Text), "help") {
		b.postEphemeral(cmd, helpText)
		return
	}
	q, err := ParseTMOArgs(cmd.Text)
	if err != nil {
		b.postEphemeral(cmd, fmt.Sprintf("Não entendi o comando: %v\n\n%s", err, helpText))
		return
	}

	identity := b.cfg.ReportUser
	if identity == "" {
		identity = cmd.UserID
	}
	sess, err := b.svc.Open(ctx, identity)
	if err != nil {
		b.postEphemeral(cmd, fmt.Sprintf("Erro ao carregar os dados: %v", err))
		return
	}
	v, err := sess.Run(ctx, q)
	if err != nil {
		b.postEphemeral(cmd, fmt.Sprintf("Erro: %v", err))
		return
	}
	b.postEphemeral(cmd, ToMrkdwn(report.RenderMarkdown(b.cfg.TeamName, v)))
	b.logger.Info("tmo view sent",
		zap.String("user", cmd.UserID),
		zap.String("view", string(v.Kind)),
		zap.Int("records", v.Summary.Total))
}

// PostDailyReport posts the overall view of the configured report user to the
// report channel. Its signature matches schedule.Job.
func (b *Bot) PostDailyReport(ctx context.Context, at time.Time) error {
	if b.cfg.ReportChannelID == "" {
		return errors.New("report_channel_id not set")
	}
	if b.cfg.ReportUser == "" {
		return errors.New("report_user not set")
	}
	sess, err := b.svc.Open(ctx, b.cfg.ReportUser)
	if err != nil {
		return err
	}
	v, err := sess.Run(ctx, dashboard.Query{})
	if err != nil {
		return err
	}
	text := fmt.Sprintf("*Relatório diário %s*\n\n%s",
		at.In(b.cfg.Location).Format("02/01/2006"),
		ToMrkdwn(report.RenderMarkdown(b.cfg.TeamName, v)))
	if _, _, err := b.api.PostMessage(b.cfg.ReportChannelID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("post daily report: %w", err)
	}
	return nil
}

func (b *Bot) postEphemeral(cmd slack.SlashCommand, text string) {
	if _, err := b.api.PostEphemeral(cmd.ChannelID, cmd.UserID, slack.MsgOptionText(text, false)); err != nil {
		b.logger.Error("error posting ephemeral", zap.Error(err))
	}
}

var helpText = strings.Join([]string{
	"*Comandos*",
	"",
	"`/tmo` - Visão geral de todos os analistas.",
	"`/tmo <analista>` - Visão de um analista.",
	"`/tmo [analista] <DD/MM/AAAA> [DD/MM/AAAA]` - Restringe ao período informado.",
	"`/tmo help` - Mostra esta ajuda.",
}, "\n")

var dateArg = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// ParseTMOArgs reads "[analyst] [from [to]]". Tokens shaped like DD/MM/YYYY
// are dates; everything else is joined into the analyst name.
func ParseTMOArgs(text string) (dashboard.Query, error) {
	q := dashboard.Query{Kind: dashboard.Overall}
	var name []string
	var dates []time.Time
	for _, tok := range strings.Fields(text) {
		if dateArg.MatchString(tok) {
			d, err := time.Parse("02/01/2006", tok)
			if err != nil {
				return q, fmt.Errorf("data inválida %q", tok)
			}
			dates = append(dates, d)
			continue
		}
		if len(dates) > 0 {
			return q, fmt.Errorf("o analista deve vir antes das datas")
		}
		name = append(name, tok)
	}
	switch len(dates) {
	case 0:
	case 1:
		q.Start = &dates[0]
	case 2:
		q.Start, q.End = &dates[0], &dates[1]
	default:
		return q, fmt.Errorf("informe no máximo duas datas")
	}
	if len(name) > 0 {
		q.Kind = dashboard.PerAnalyst
		q.Analyst = strings.Join(name, " ")
	}
	return q, nil
}

var boldMarkdown = regexp.MustCompile(`\*\*([^*]+)\*\*`)

// ToMrkdwn converts the report markdown to Slack's mrkdwn dialect.
func ToMrkdwn(md string) string {
	var out []string
	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#"):
			heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			out = append(out, "*"+boldMarkdown.ReplaceAllString(heading, "$1")+"*")
		case strings.HasPrefix(trimmed, "|---"):
		default:
			out = append(out, boldMarkdown.ReplaceAllString(line, "*$1*"))
		}
	}
	return strings.Join(out, "\n")
}

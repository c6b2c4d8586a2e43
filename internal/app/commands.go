package app

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"protodash/internal/config"
	"protodash/internal/dashboard"
	"protodash/internal/httpx"
	slackbot "protodash/internal/integrations/slack"
	"protodash/internal/logging"
	"protodash/internal/metrics"
	"protodash/internal/report"
	"protodash/internal/schedule"
	"protodash/internal/sheet"
)

const flagDateLayout = "02/01/2006"

// viewFlags selects the analyst and date window shared by the read commands.
type viewFlags struct {
	analyst string
	from    string
	to      string
}

func (f *viewFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.analyst, "analyst", "", "restrict to one analyst")
	cmd.Flags().StringVar(&f.from, "from", "", "first day, DD/MM/YYYY")
	cmd.Flags().StringVar(&f.to, "to", "", "last day, DD/MM/YYYY")
}

func (f *viewFlags) query() (dashboard.Query, error) {
	q := dashboard.Query{Kind: dashboard.Overall}
	if f.analyst != "" {
		q.Kind = dashboard.PerAnalyst
		q.Analyst = f.analyst
	}
	var err error
	if q.Start, err = parseDateFlag("from", f.from); err != nil {
		return q, err
	}
	if q.End, err = parseDateFlag("to", f.to); err != nil {
		return q, err
	}
	return q, nil
}

func parseDateFlag(name, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(flagDateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: expected DD/MM/YYYY", name, value)
	}
	return &t, nil
}

// runView opens a session and computes the view selected by f.
func (c *cli) runView(cmd *cobra.Command, f *viewFlags) (dashboard.View, error) {
	q, err := f.query()
	if err != nil {
		return dashboard.View{}, err
	}
	sess, err := c.openSession(cmd, false)
	if err != nil {
		return dashboard.View{}, err
	}
	return sess.Run(commandContext(cmd), q)
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE...",
		Short: "Append spreadsheet exports (.csv, .xlsx) to the stored dataset",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			rows, err := sheet.ReadFiles(ctx, args)
			if err != nil {
				return err
			}
			// A failed load must not be followed by a save that would
			// replace the stored dataset with the upload alone.
			sess, err := c.openSession(cmd, true)
			if err != nil {
				return err
			}
			before := len(sess.Dataset())
			v, err := sess.Run(ctx, dashboard.Query{Uploads: rows})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Importados %d registros de %d arquivo(s); total acumulado: %d.\n",
				len(sess.Dataset())-before, len(args), len(sess.Dataset()))
			if len(v.Duplicates) > 0 {
				fmt.Fprintf(out, "Atenção: %d protocolo(s) aparecem mais de uma vez para o mesmo usuário.\n", len(v.Duplicates))
			}
			if v.PersistError != nil {
				return fmt.Errorf("dados importados não foram salvos: %w", v.PersistError)
			}
			return nil
		},
	}
}

func (c *cli) saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Rewrite the stored dataset from its normalized form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.openSession(cmd, true)
			if err != nil {
				return err
			}
			v, err := sess.Run(commandContext(cmd), dashboard.Query{Save: true})
			if err != nil {
				return err
			}
			if v.PersistError != nil {
				return v.PersistError
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dados salvos: %d registros.\n", len(sess.Dataset()))
			return nil
		},
	}
}

func (c *cli) summaryCmd() *cobra.Command {
	var f viewFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show completion counts, TMO and status distribution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.runView(cmd, &f)
			if err != nil {
				return err
			}
			writeSummary(cmd.OutOrStdout(), v)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func writeSummary(w io.Writer, v dashboard.View) {
	if v.Kind == dashboard.PerAnalyst {
		fmt.Fprintf(w, "Analista: %s\n", v.Analyst)
		if len(v.Portfolios) > 0 {
			fmt.Fprintf(w, "Carteiras: %s\n", strings.Join(v.Portfolios, ", "))
		}
	}
	fmt.Fprintf(w, "Período: %s a %s\n", v.Range.Start.Format(flagDateLayout), v.Range.End.Format(flagDateLayout))
	if v.RangeWarning != "" {
		fmt.Fprintf(w, "Aviso: %s\n", v.RangeWarning)
	}
	fmt.Fprintf(w, "Registros: %d\n", v.Summary.Total)
	fmt.Fprintf(w, "Protocolos finalizados: %d\n", v.Summary.Completed)
	fmt.Fprintf(w, "TMO: %s\n", v.MeanDisplay)
	fmt.Fprintf(w, "Reclassificados: %d\n", v.Summary.Reclassified)
	fmt.Fprintf(w, "Em andamento: %d\n", v.Summary.InProgress)

	parts := make([]string, 0, len(v.Distribution))
	for _, s := range v.Distribution {
		parts = append(parts, fmt.Sprintf("%s %.1f%%", s.Label, s.Percent))
	}
	fmt.Fprintf(w, "Distribuição: %s\n", strings.Join(parts, " | "))
	if len(v.Duplicates) > 0 {
		fmt.Fprintf(w, "Protocolos repetidos: %d\n", len(v.Duplicates))
	}
}

func (c *cli) attentionCmd() *cobra.Command {
	var f viewFlags
	cmd := &cobra.Command{
		Use:   "attention",
		Short: "List protocols whose handling time exceeds the attention threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.runView(cmd, &f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(v.Attention) == 0 {
				fmt.Fprintf(out, "Nenhum protocolo com tempo acima de %s minutos.\n", formatMinutes(v.Threshold))
				return nil
			}
			for _, p := range v.Attention {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", p.Record.Protocol, p.Record.User, p.Record.Status, p.Display)
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func formatMinutes(d time.Duration) string {
	return strconv.FormatFloat(d.Minutes(), 'f', -1, 64)
}

func (c *cli) dailyCmd() *cobra.Command {
	var f viewFlags
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Show the average handling time per day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.runView(cmd, &f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(v.Daily) == 0 {
				fmt.Fprintln(out, "Nenhum protocolo finalizado com tempo registrado.")
				return nil
			}
			for _, d := range v.Daily {
				fmt.Fprintf(out, "%s\t%.2f min\t%d\n", d.Date.Format(flagDateLayout), d.Minutes, d.Count)
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func (c *cli) analystsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analysts",
		Short: "List the analysts in the dataset with their portfolios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.openSession(cmd, false)
			if err != nil {
				return err
			}
			ds := sess.Dataset()
			out := cmd.OutOrStdout()
			for _, a := range metrics.Analysts(ds) {
				if p := metrics.Portfolios(ds, a); len(p) > 0 {
					fmt.Fprintf(out, "%s (%s)\n", a, strings.Join(p, ", "))
					continue
				}
				fmt.Fprintln(out, a)
			}
			return nil
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write the accumulated dataset to a .csv or .xlsx file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.openSession(cmd, true)
			if err != nil {
				return err
			}
			if err := sheet.WriteFile(args[0], sess.Dataset()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exportados %d registros para %s.\n", len(sess.Dataset()), args[0])
			return nil
		},
	}
}

func (c *cli) reportCmd() *cobra.Command {
	var f viewFlags
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the dashboard view as a markdown report file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.runView(cmd, &f)
			if err != nil {
				return err
			}
			name := c.cfg.TeamName
			if v.Kind == dashboard.PerAnalyst {
				name += "_" + v.Analyst
			}
			content := report.RenderMarkdown(c.cfg.TeamName, v)
			path, err := report.WriteReportFile(content, c.cfg.ReportOutputDir, c.now().In(c.cfg.Location), name)
			if err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Relatório salvo em %s\n", path)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack bot and the scheduled daily report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !c.cfg.SlackConfigured() {
				return fmt.Errorf("slack_bot_token and slack_app_token are required to serve")
			}
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			httpClient, _ := httpx.NewClient(c.cfg.ExternalHTTPTimeoutSeconds)
			api := slack.New(c.cfg.SlackBotToken,
				slack.OptionAppLevelToken(c.cfg.SlackAppToken),
				slack.OptionHTTPClient(httpClient),
			)
			bot := slackbot.New(c.cfg, c.svc, api, logging.Component(c.logger, "slack"))

			var schedDone <-chan struct{}
			if spec := strings.TrimSpace(c.cfg.DailyReportSchedule); spec != "" {
				sched, err := config.ParseSchedule(spec)
				if err != nil {
					return fmt.Errorf("invalid daily_report_schedule: %w", err)
				}
				schedDone = schedule.New("daily-report", sched, bot.PostDailyReport,
					schedule.WithLocation(c.cfg.Location),
					schedule.WithLogger(logging.Component(c.logger, "scheduler")),
				).Start(ctx)
			} else {
				c.logger.Info("daily report disabled (daily_report_schedule not set)")
			}

			c.logger.Info("starting protodash bot", zap.String("team", c.cfg.TeamName))
			err := bot.Run(ctx)
			stop()
			if schedDone != nil {
				<-schedDone
			}
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("slack bot: %w", err)
			}
			return nil
		},
	}
}

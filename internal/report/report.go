// Package report renders dashboard views as markdown for files and Slack.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"protodash/internal/dashboard"
	"protodash/internal/metrics"
)

const dateLayout = "02/01/2006"

// RenderMarkdown renders v under a heading naming team and, for per-analyst
// views, the analyst.
func RenderMarkdown(team string, v dashboard.View) string {
	var buf strings.Builder

	title := fmt.Sprintf("### %s: visão geral", team)
	if v.Kind == dashboard.PerAnalyst {
		title = fmt.Sprintf("### %s: %s", team, v.Analyst)
	}
	buf.WriteString(title + "\n\n")

	if v.Range.Defaulted {
		buf.WriteString(fmt.Sprintf("Período: todos os registros (%s a %s)\n",
			v.Range.Start.Format(dateLayout), v.Range.End.Format(dateLayout)))
	} else {
		buf.WriteString(fmt.Sprintf("Período: %s a %s\n",
			v.Range.Start.Format(dateLayout), v.Range.End.Format(dateLayout)))
	}
	if v.RangeWarning != "" {
		buf.WriteString("**Atenção:** " + v.RangeWarning + "\n")
	}
	if len(v.Portfolios) > 0 {
		buf.WriteString("Carteiras: " + strings.Join(v.Portfolios, ", ") + "\n")
	}
	buf.WriteString("\n")

	buf.WriteString("#### Indicadores\n\n")
	buf.WriteString(fmt.Sprintf("- **Protocolos finalizados:** %d\n", v.Summary.Completed))
	buf.WriteString(fmt.Sprintf("- **TMO:** %s\n", v.MeanDisplay))
	buf.WriteString(fmt.Sprintf("- **Reclassificados:** %d\n", v.Summary.Reclassified))
	buf.WriteString(fmt.Sprintf("- **Em andamento:** %d\n", v.Summary.InProgress))
	buf.WriteString("\n")

	buf.WriteString("#### Distribuição por status\n\n")
	for _, share := range v.Distribution {
		buf.WriteString(fmt.Sprintf("- %s: %d (%.1f%%)\n", share.Label, share.Count, share.Percent))
	}
	buf.WriteString("\n")

	buf.WriteString("#### TMO por dia\n\n")
	if len(v.Daily) == 0 {
		buf.WriteString("Nenhum protocolo finalizado com tempo registrado.\n")
	} else {
		buf.WriteString("| Data | TMO (min) | Finalizados |\n")
		buf.WriteString("|---|---|---|\n")
		for _, d := range v.Daily {
			buf.WriteString(fmt.Sprintf("| %s | %.2f | %d |\n", d.Date.Format(dateLayout), d.Minutes, d.Count))
		}
	}
	buf.WriteString("\n")

	buf.WriteString("#### Pontos de atenção\n\n")
	buf.WriteString(renderAttention(v.Attention, v.Threshold))

	if len(v.Duplicates) > 0 {
		buf.WriteString("\n#### Protocolos repetidos\n\n")
		for _, d := range v.Duplicates {
			buf.WriteString(fmt.Sprintf("- %s (%s): %d ocorrências\n", d.Protocol, d.User, d.Count))
		}
	}

	if v.PersistError != nil {
		buf.WriteString("\n**Erro ao salvar os dados:** " + v.PersistError.Error() + "\n")
	}
	return buf.String()
}

func renderAttention(points []metrics.AttentionPoint, threshold time.Duration) string {
	if len(points) == 0 {
		return fmt.Sprintf("Nenhum protocolo com tempo acima de %s minutos.\n", thresholdMinutes(threshold))
	}
	var buf strings.Builder
	buf.WriteString("| Protocolo | Usuário | Status | Tempo de Análise |\n")
	buf.WriteString("|---|---|---|---|\n")
	for _, p := range points {
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			escapeCell(p.Record.Protocol), escapeCell(p.Record.User), escapeCell(string(p.Record.Status)), p.Display))
	}
	return buf.String()
}

func thresholdMinutes(d time.Duration) string {
	return strconv.FormatFloat(d.Minutes(), 'f', -1, 64)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

func sanitizeFilename(s string) string {
	s = filenameReplacer.Replace(strings.TrimSpace(s))
	s = strings.TrimLeft(s, ".")
	if s == "" {
		return "report"
	}
	return s
}

// WriteReportFile writes content to {outputDir}/{name}_{YYYYMMDD}.md and
// returns the path.
func WriteReportFile(content, outputDir string, reportDate time.Time, name string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s_%s.md", sanitizeFilename(name), reportDate.Format("20060102"))
	path := filepath.Join(outputDir, filename)
	return path, os.WriteFile(path, []byte(content), 0644)
}

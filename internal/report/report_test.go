package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"protodash/internal/dashboard"
	"protodash/internal/metrics"
)

func sampleView() dashboard.View {
	ds := metrics.Normalize([]metrics.RawRow{
		{Protocol: "1,001", User: "ana", Status: "FINALIZADO", AnalysisDuration: "0:01:30", ScheduledAt: "01/03/2024 09:00:00"},
		{Protocol: "1002", User: "ana", Status: "FINALIZADO", AnalysisDuration: "0:03:30", ScheduledAt: "02/03/2024 09:00:00"},
		{Protocol: "1003", User: "b|a", Status: "RECLASSIFICADO", AnalysisDuration: "0:05:00", ScheduledAt: "02/03/2024 10:00:00"},
	})
	s := metrics.Summarize(ds)
	return dashboard.View{
		Kind:         dashboard.Overall,
		Summary:      s,
		MeanDisplay:  s.MeanDisplay(),
		Distribution: s.Distribution(),
		Daily:        metrics.DailyAverageHandlingTime(ds),
		Attention:    metrics.Flagged(ds, 2*time.Minute),
		Threshold:    2 * time.Minute,
		Range:        metrics.ResolveRange(ds, nil, nil, time.Now()),
	}
}

func TestRenderMarkdownOverall(t *testing.T) {
	out := RenderMarkdown("Produtividade", sampleView())

	for _, want := range []string{
		"### Produtividade: visão geral",
		"Período: todos os registros (01/03/2024 a 02/03/2024)",
		"- **Protocolos finalizados:** 2",
		"- **TMO:** 2 min 30 sec",
		"- **Reclassificados:** 1",
		"- Finalizado: 2 (66.7%)",
		"- Andamento: 0 (0.0%)",
		"| 01/03/2024 | 1.50 | 1 |",
		"| 02/03/2024 | 3.50 | 1 |",
		"| 1002 | ana | FINALIZADO | 3 min 30 sec |",
		`| 1003 | b\|a | RECLASSIFICADO | 5 min 0 sec |`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in report:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Protocolos repetidos") {
		t.Fatalf("unexpected duplicates section:\n%s", out)
	}
}

func TestRenderMarkdownEmptyAttentionAndWarnings(t *testing.T) {
	v := sampleView()
	v.Kind = dashboard.PerAnalyst
	v.Analyst = "ana"
	v.Attention = nil
	v.Threshold = 90 * time.Second
	v.Daily = nil
	v.RangeWarning = "intervalo invertido"
	v.Range.Defaulted = false
	v.Portfolios = []string{"Varejo", "Atacado"}
	v.Duplicates = []metrics.DuplicateKey{{Protocol: "1001", User: "ana", Count: 2}}
	v.PersistError = errors.New("disk full")

	out := RenderMarkdown("Time", v)
	for _, want := range []string{
		"### Time: ana",
		"Período: 01/03/2024 a 02/03/2024",
		"**Atenção:** intervalo invertido",
		"Carteiras: Varejo, Atacado",
		"Nenhum protocolo finalizado com tempo registrado.",
		"Nenhum protocolo com tempo acima de 1.5 minutos.",
		"- 1001 (ana): 2 ocorrências",
		"**Erro ao salvar os dados:** disk full",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in report:\n%s", want, out)
		}
	}
}

func TestWriteReportFile(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "reports")
	date := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	path, err := WriteReportFile("hello report\n", outDir, date, "Produtividade")
	if err != nil {
		t.Fatalf("WriteReportFile failed: %v", err)
	}
	if !strings.HasSuffix(path, "Produtividade_20240302.md") {
		t.Fatalf("unexpected report file path: %s", path)
	}
	if data, err := os.ReadFile(path); err != nil || string(data) != "hello report\n" {
		t.Fatalf("unexpected report file content err=%v content=%q", err, string(data))
	}
}

func TestWriteReportFileSanitizesName(t *testing.T) {
	outDir := t.TempDir()
	date := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "path separators", in: "../Ops\\Team", want: "_Ops_Team_20240302.md"},
		{name: "special characters", in: "Team:Name<>|*?", want: "Team_Name______20240302.md"},
		{name: "only dots", in: "..", want: "report_20240302.md"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path, err := WriteReportFile("x", outDir, date, tc.in)
			if err != nil {
				t.Fatalf("WriteReportFile failed: %v", err)
			}
			if got := filepath.Base(path); got != tc.want {
				t.Fatalf("unexpected file name: got %q want %q", got, tc.want)
			}
			if filepath.Dir(path) != outDir {
				t.Fatalf("report path escaped output directory: %s", path)
			}
		})
	}
}

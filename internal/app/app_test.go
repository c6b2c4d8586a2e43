package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protodash/internal/sheet"
)

const uploadCSV = "Protocolo,Usuário,Status,Tempo de Análise,Próximo,Carteira\n" +
	"\"1,001\",ana,FINALIZADO,0:01:30,01/03/2024 09:00:00,Varejo\n" +
	"1002,ana,FINALIZADO,0:03:30,02/03/2024 09:00:00,Atacado\n" +
	"1003,bia,RECLASSIFICADO,0:05:00,02/03/2024 10:00:00,\n" +
	"1004,bia,ANDAMENTO_PRE,,05/03/2024 10:00:00,\n"

type testEnv struct {
	dir        string
	configPath string
}

func newTestEnv(t *testing.T, backend string) testEnv {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := "storage_backend: " + backend + "\n" +
		"data_dir: " + filepath.Join(dir, "data") + "\n" +
		"report_output_dir: " + filepath.Join(dir, "reports") + "\n" +
		"report_user: equipe\n" +
		"team_name: Produtividade\n" +
		"timezone: UTC\n" +
		"log_level: error\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return testEnv{dir: dir, configPath: configPath}
}

func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, c := newRootCmd()
	c.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(c.close)

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.Execute()
	c.close()
	return out.String(), err
}

func (e testEnv) importSample(t *testing.T) {
	t.Helper()
	upload := filepath.Join(e.dir, "upload.csv")
	require.NoError(t, os.WriteFile(upload, []byte(uploadCSV), 0o644))
	out, err := e.run(t, "import", upload)
	require.NoError(t, err)
	assert.Contains(t, out, "Importados 4 registros de 1 arquivo(s); total acumulado: 4.")
}

func TestImportAndSummary(t *testing.T) {
	for _, backend := range []string{"sqlite", "file"} {
		t.Run(backend, func(t *testing.T) {
			env := newTestEnv(t, backend)
			env.importSample(t)

			out, err := env.run(t, "summary")
			require.NoError(t, err)
			assert.Contains(t, out, "Período: 01/03/2024 a 05/03/2024")
			assert.Contains(t, out, "Registros: 4")
			assert.Contains(t, out, "Protocolos finalizados: 2")
			assert.Contains(t, out, "TMO: 2 min 30 sec")
			assert.Contains(t, out, "Reclassificados: 1")
			assert.Contains(t, out, "Em andamento: 1")
			assert.Contains(t, out, "Distribuição: Finalizado 50.0% | Reclassificado 25.0% | Andamento 25.0%")
		})
	}
}

func TestImportTwiceAccumulates(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	env.importSample(t)

	upload := filepath.Join(env.dir, "upload.csv")
	out, err := env.run(t, "import", upload)
	require.NoError(t, err)
	assert.Contains(t, out, "total acumulado: 8.")
	assert.Contains(t, out, "Atenção: 4 protocolo(s)")

	out, err = env.run(t, "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Protocolos repetidos: 4")
}

func TestSaveRewritesStoredDataset(t *testing.T) {
	env := newTestEnv(t, "file")

	out, err := env.run(t, "save")
	require.NoError(t, err)
	assert.Equal(t, "Dados salvos: 0 registros.\n", out)

	env.importSample(t)
	out, err = env.run(t, "save")
	require.NoError(t, err)
	assert.Equal(t, "Dados salvos: 4 registros.\n", out)

	out, err = env.run(t, "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Registros: 4")
	assert.Contains(t, out, "TMO: 2 min 30 sec")
}

func TestSummaryPerAnalystWithRange(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	env.importSample(t)

	out, err := env.run(t, "summary", "--analyst", "ana", "--from", "02/03/2024")
	require.NoError(t, err)
	assert.Contains(t, out, "Analista: ana")
	assert.Contains(t, out, "Carteiras: Varejo, Atacado")
	assert.Contains(t, out, "Período: 02/03/2024 a 05/03/2024")
	assert.Contains(t, out, "Protocolos finalizados: 1")
	assert.Contains(t, out, "TMO: 3 min 30 sec")

	out, err = env.run(t, "summary", "--from", "05/03/2024", "--to", "01/03/2024")
	require.NoError(t, err)
	assert.Contains(t, out, "Aviso:")
	assert.Contains(t, out, "Registros: 0")

	_, err = env.run(t, "summary", "--from", "2024-03-01")
	assert.Error(t, err)
}

func TestAttentionDailyAndAnalysts(t *testing.T) {
	env := newTestEnv(t, "sqlite")

	out, err := env.run(t, "attention")
	require.NoError(t, err)
	assert.Equal(t, "Nenhum protocolo com tempo acima de 2 minutos.\n", out)

	env.importSample(t)

	out, err = env.run(t, "attention")
	require.NoError(t, err)
	assert.Equal(t, "1002\tana\tFINALIZADO\t3 min 30 sec\n1003\tbia\tRECLASSIFICADO\t5 min 0 sec\n", out)

	out, err = env.run(t, "daily")
	require.NoError(t, err)
	assert.Equal(t, "01/03/2024\t1.50 min\t1\n02/03/2024\t3.50 min\t1\n", out)

	out, err = env.run(t, "analysts")
	require.NoError(t, err)
	assert.Equal(t, "ana (Varejo, Atacado)\nbia\n", out)
}

func TestUserFlagPartitionsData(t *testing.T) {
	env := newTestEnv(t, "file")
	env.importSample(t)

	out, err := env.run(t, "--user", "outra", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Registros: 0")
	assert.Contains(t, out, "TMO: 0 min")
}

func TestExportAndReport(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	env.importSample(t)

	exportPath := filepath.Join(env.dir, "export.xlsx")
	out, err := env.run(t, "export", exportPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Exportados 4 registros")

	rows, err := sheet.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	out, err = env.run(t, "report", "--analyst", "bia")
	require.NoError(t, err)
	path := strings.TrimSpace(strings.TrimPrefix(out, "Relatório salvo em "))
	assert.Equal(t, filepath.Join(env.dir, "reports", "Produtividade_bia_20240310.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "### Produtividade: bia")
	assert.Contains(t, string(data), "| 1003 | bia | RECLASSIFICADO | 5 min 0 sec |")
}

func TestServeRequiresSlackTokens(t *testing.T) {
	env := newTestEnv(t, "file")
	t.Setenv("SLACK_BOT_TOKEN", "")
	t.Setenv("SLACK_APP_TOKEN", "")
	_, err := env.run(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack_bot_token")
}

func TestInvalidConfigFails(t *testing.T) {
	env := newTestEnv(t, "mongo")
	_, err := env.run(t, "summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage_backend")
}

package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	jobmetrics "github.com/solution-studio/ai-studio/internal/jobs"
	"github.com/solution-studio/ai-studio/internal/twin"
)

type ruleFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert       string            `yaml:"alert"`
			Expr        string            `yaml:"expr"`
			For         string            `yaml:"for"`
			Labels      map[string]string `yaml:"labels"`
			Annotations map[string]string `yaml:"annotations"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

var metricName = regexp.MustCompile(`studio_[a-z_]+`)

// scrape wires every collector the binaries register and returns the
// exposition text.
func scrape(t *testing.T) string {
	t.Helper()
	m := NewMetrics()
	twin.NewMetrics(m.Registerer())
	jobs := jobmetrics.NewMetrics(m.Registerer())
	_ = jobs.Track("proposal_render").End(errors.New("gotenberg down"))
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/catalog", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestAlertRulesQueryExportedMetrics(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "studio.yml"))
	require.NoError(t, err)
	var file ruleFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	require.Len(t, file.Groups, 1)
	require.Equal(t, "studio", file.Groups[0].Name)

	exposed := scrape(t)
	seen := map[string]bool{}
	for _, rule := range file.Groups[0].Rules {
		assert.False(t, seen[rule.Alert], "duplicate alert %s", rule.Alert)
		seen[rule.Alert] = true
		assert.Contains(t, []string{"warning", "critical"}, rule.Labels["severity"], rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["description"], rule.Alert)

		names := metricName.FindAllString(rule.Expr, -1)
		require.NotEmpty(t, names, "%s queries no studio metric", rule.Alert)
		for _, name := range names {
			assert.True(t, strings.Contains(exposed, "\n"+name), "%s queries %s, which is not exported", rule.Alert, name)
		}
	}
	for _, alert := range []string{"HighErrorRate", "HighLatency", "ProposalRenderFailures", "TwinFramePanics"} {
		assert.True(t, seen[alert], "missing alert %s", alert)
	}
}

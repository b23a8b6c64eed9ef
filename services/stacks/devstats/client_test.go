package devstats

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("empty hostname should error", func(t *testing.T) {
		c, err := NewClient(ArgsClient{})

		assert.Nil(t, c)
		assert.True(t, c.IsInterfaceNil())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "empty devstats hostname")
	})
	t.Run("should work with defaults", func(t *testing.T) {
		c, err := NewClient(ArgsClient{Hostname: "devstats.cncf.io"})

		assert.NotNil(t, c)
		assert.False(t, c.IsInterfaceNil())
		assert.Nil(t, err)
		assert.Equal(t, "https", c.scheme)
	})
}

func TestMetricQuery(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		`select name, value, period from "shcom" where series = 'hcomcontributions' and period = 'y1'`,
		metricQuery("hcomcontributions", []string{"y1"}))

	assert.Equal(t,
		`select name, value, period from "shcom" where series = 'hcomcontributions' and period in ('y1', 'y2')`,
		metricQuery("hcomcontributions", []string{"y1", "y2"}))
}

func TestQueryURL(t *testing.T) {
	t.Parallel()

	c, _ := NewClient(ArgsClient{Hostname: "devstats.cncf.io"})

	assert.Equal(t, "https://devstats.cncf.io/api/tsdb/query", c.queryURL(""))
	assert.Equal(t, "https://k8s.devstats.cncf.io/api/tsdb/query", c.queryURL("k8s"))
}

func TestShortFromHref(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "k8s", shortFromHref("https://k8s.devstats.cncf.io/", "devstats.cncf.io"))
	assert.Equal(t, "all", shortFromHref("https://all.devstats.cncf.io", "devstats.cncf.io"))
	assert.Equal(t, "", shortFromHref("k8s.devstats.cncf.io", "devstats.cncf.io"))
	assert.Equal(t, "", shortFromHref("https://example.com/", "devstats.cncf.io"))
}

func TestClient_FetchComponents(t *testing.T) {
	t.Parallel()

	var host string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		page := `<html><body>
<table>
<tr>
<td><a href="http://k8s.` + host + `/"><img src="imgs/k8s.svg"></a></td>
<td><a href="http://k8s.` + host + `/">Kubernetes</a></td>
</tr>
<tr><td><a href="http://prom.` + host + `/">Prometheus</a></td></tr>
</table>
<a href="http://ignored.` + host + `/">outside the table</a>
</body></html>`
		_, _ = io.WriteString(w, page)
	})
	mux.HandleFunc("/imgs/k8s.svg", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<svg>k8s</svg>")
	})

	server := httptest.NewServer(mux)
	defer server.Close()
	host = strings.TrimPrefix(server.URL, "http://")

	c, err := NewClient(ArgsClient{Hostname: host, Scheme: "http"})
	require.NoError(t, err)

	components, err := c.FetchComponents(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, len(components))

	byShort := make(map[string]int)
	for i, comp := range components {
		byShort[comp.Short] = i
	}

	k8s := components[byShort["k8s"]]
	assert.Equal(t, "Kubernetes", k8s.Name)
	assert.Equal(t, "http://k8s."+host+"/", k8s.Href)
	assert.Equal(t, "<svg>k8s</svg>", k8s.SVG)

	prom := components[byShort["prom"]]
	assert.Equal(t, "Prometheus", prom.Name)
	assert.Empty(t, prom.SVG)
}

func TestClient_FetchComponentsUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c, _ := NewClient(ArgsClient{
		Hostname: strings.TrimPrefix(server.URL, "http://"),
		Scheme:   "http",
	})

	_, err := c.FetchComponents(context.Background())
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestClient_FetchMetricTable(t *testing.T) {
	t.Parallel()

	var capturedBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/tsdb/query", r.URL.Path)

		var err error
		capturedBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)

		response := `{"results":{"A":{"tables":[{
			"columns":[{"text":"name"},{"text":"value"},{"text":"period"}],
			"rows":[
				["Acme",5,"y1"],
				["Acme",9,"y2"],
				["Globex",3,"y1"],
				["Acme",6,"y1"],
				["Hollow Co",null,"y1"]
			]}]}}}`
		_, _ = io.WriteString(w, response)
	}))
	defer server.Close()

	c, err := NewClient(ArgsClient{
		Hostname: strings.TrimPrefix(server.URL, "http://"),
		Scheme:   "http",
	})
	require.NoError(t, err)

	table, err := c.FetchMetricTable(context.Background(), "", "hcomcontributions", []string{"y1", "y2"})
	require.NoError(t, err)

	rawSQL := gjson.GetBytes(capturedBody, "queries.0.rawSql").String()
	assert.Equal(t, `select name, value, period from "shcom" where series = 'hcomcontributions' and period in ('y1', 'y2')`, rawSQL)
	assert.Equal(t, "1446545259582", gjson.GetBytes(capturedBody, "from").String())
	assert.Equal(t, "A", gjson.GetBytes(capturedBody, "queries.0.refId").String())
	assert.Equal(t, "table", gjson.GetBytes(capturedBody, "queries.0.format").String())
	assert.Equal(t, int64(86400000), gjson.GetBytes(capturedBody, "queries.0.intervalMs").Int())
	assert.Equal(t, int64(814), gjson.GetBytes(capturedBody, "queries.0.maxDataPoints").Int())
	assert.Equal(t, int64(1), gjson.GetBytes(capturedBody, "queries.0.datasourceId").Int())

	require.Equal(t, []string{"name", "y1", "y2"}, table.Columns)
	require.Equal(t, 3, len(table.Rows))

	byName := make(map[string]map[string]float64)
	for _, row := range table.Rows {
		byName[row.Name] = row.Values
	}
	assert.Equal(t, 6.0, byName["Acme"]["y1"]) // later duplicate wins
	assert.Equal(t, 9.0, byName["Acme"]["y2"])
	assert.Equal(t, 3.0, byName["Globex"]["y1"])
	assert.Empty(t, byName["Hollow Co"]) // null cell skipped, row kept
}

func TestClient_FetchMetricTableErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty metric should error", func(t *testing.T) {
		c, _ := NewClient(ArgsClient{Hostname: "devstats.cncf.io"})

		_, err := c.FetchMetricTable(context.Background(), "", "", []string{"y1"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "empty metric name")
	})
	t.Run("empty periods should error", func(t *testing.T) {
		c, _ := NewClient(ArgsClient{Hostname: "devstats.cncf.io"})

		_, err := c.FetchMetricTable(context.Background(), "", "hcomcontributions", nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "empty periods list")
	})
	t.Run("non-2xx status should wrap ErrSourceUnavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		c, _ := NewClient(ArgsClient{
			Hostname: strings.TrimPrefix(server.URL, "http://"),
			Scheme:   "http",
		})

		_, err := c.FetchMetricTable(context.Background(), "", "hcomcontributions", []string{"y1"})
		require.ErrorIs(t, err, ErrSourceUnavailable)
	})
	t.Run("unexpected body should wrap ErrInvalidTableFormat", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"results":{}}`)
		}))
		defer server.Close()

		c, _ := NewClient(ArgsClient{
			Hostname: strings.TrimPrefix(server.URL, "http://"),
			Scheme:   "http",
		})

		_, err := c.FetchMetricTable(context.Background(), "", "hcomcontributions", []string{"y1"})
		require.ErrorIs(t, err, ErrInvalidTableFormat)
	})
}

func TestPivotTable(t *testing.T) {
	t.Parallel()

	t.Run("missing columns should error", func(t *testing.T) {
		_, err := pivotTable([]byte(`{"results":{"A":{"tables":[{"rows":[]}]}}}`))
		require.ErrorIs(t, err, ErrInvalidTableFormat)
	})
	t.Run("short rows should error", func(t *testing.T) {
		body := `{"results":{"A":{"tables":[{"columns":[{"text":"name"}],"rows":[["Acme",5]]}]}}}`
		_, err := pivotTable([]byte(body))
		require.ErrorIs(t, err, ErrInvalidTableFormat)
	})
	t.Run("empty period cell is skipped", func(t *testing.T) {
		body := `{"results":{"A":{"tables":[{"columns":[{"text":"name"}],"rows":[["Acme",5,""]]}]}}}`
		table, err := pivotTable([]byte(body))
		require.NoError(t, err)
		require.Equal(t, []string{"name"}, table.Columns)
		require.Equal(t, 1, len(table.Rows))
		require.Empty(t, table.Rows[0].Values)
	})
}

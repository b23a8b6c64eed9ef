package devstats

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
)

var log = logger.GetOrCreate("devstats")

const (
	tsdbQueryPath = "/api/tsdb/query"
	// queryFrom is the fixed lower time bound used by the upstream dashboard for all-time tables
	queryFrom          = "1446545259582"
	queryIntervalMs    = 86400000
	queryMaxDataPoints = 814
	queryDatasourceID  = 1
	queryFormat        = "table"
)

type tsdbQuery struct {
	RefID         string `json:"refId"`
	IntervalMs    int64  `json:"intervalMs"`
	MaxDataPoints int    `json:"maxDataPoints"`
	DatasourceID  int    `json:"datasourceId"`
	RawSQL        string `json:"rawSql"`
	Format        string `json:"format"`
}

type tsdbRequest struct {
	From    string      `json:"from"`
	To      string      `json:"to"`
	Queries []tsdbQuery `json:"queries"`
}

// ArgsClient defines the devstats client arguments
type ArgsClient struct {
	Hostname   string
	Scheme     string // defaults to "https"
	Timeout    time.Duration
	HTTPClient *http.Client // optional override, lets tests redirect per-component subdomains
	LogQueries bool
}

type client struct {
	hostname   string
	scheme     string
	httpClient *http.Client
	logQueries bool
}

// NewClient creates a new devstats client able to scrape the components listing page and to run
// tabular metric queries against the per-component subdomain endpoints
func NewClient(args ArgsClient) (*client, error) {
	if len(args.Hostname) == 0 {
		return nil, errors.New("empty devstats hostname")
	}

	scheme := args.Scheme
	if len(scheme) == 0 {
		scheme = "https"
	}

	httpClient := args.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: args.Timeout,
		}
	}

	return &client{
		hostname:   args.Hostname,
		scheme:     scheme,
		httpClient: httpClient,
		logQueries: args.LogQueries,
	}, nil
}

type iconRef struct {
	href string
	src  string
}

// FetchComponents scrapes the listing page for component entries. Text anchors carry the display name
// and the short id (the subdomain segment of the href), image anchors carry the icon which is fetched
// with a follow-up request. Both kinds are merged into a single record keyed by href; the icon stays
// optional.
func (c *client) FetchComponents(ctx context.Context) ([]common.Component, error) {
	baseURL := c.scheme + "://" + c.hostname + "/"

	body, err := c.get(ctx, baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching listing page: %s", ErrSourceUnavailable, err.Error())
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing listing page: %s", ErrSourceUnavailable, err.Error())
	}

	components := make(map[string]*common.Component)
	var icons []iconRef

	for _, anchor := range tableAnchors(doc) {
		href := attrValue(anchor, "href")
		if len(href) == 0 || anchor.FirstChild == nil {
			continue
		}

		firstChild := anchor.FirstChild
		switch {
		case firstChild.Type == html.TextNode:
			comp := ensureComponent(components, href)
			comp.Name = firstChild.Data
			comp.Short = shortFromHref(href, c.hostname)
		case firstChild.Type == html.ElementNode && firstChild.Data == "img":
			src := attrValue(firstChild, "src")
			if len(src) == 0 {
				continue
			}
			ensureComponent(components, href)
			icons = append(icons, iconRef{href: href, src: src})
		}
	}

	c.fetchIcons(ctx, baseURL, components, icons)

	out := make([]common.Component, 0, len(components))
	for href, comp := range components {
		comp.Href = href
		out = append(out, *comp)
	}

	return out, nil
}

func (c *client) fetchIcons(ctx context.Context, baseURL string, components map[string]*common.Component, icons []iconRef) {
	var mut sync.Mutex
	var wg sync.WaitGroup

	wg.Add(len(icons))
	for _, ref := range icons {
		go func(ref iconRef) {
			defer wg.Done()

			data, err := c.get(ctx, baseURL+ref.src)
			if err != nil {
				log.Warn("failed to fetch component icon", "src", ref.src, "error", err)
				return
			}

			mut.Lock()
			comp, found := components[ref.href]
			if found {
				comp.SVG = string(data)
			}
			mut.Unlock()
		}(ref)
	}
	wg.Wait()
}

// FetchMetricTable runs one combined tabular query for all requested periods against the component's
// subdomain endpoint (an empty component targets the default host, holding the all-components
// aggregates) and pivots the long-form (name, value, period) response into wide form.
func (c *client) FetchMetricTable(ctx context.Context, component string, metric string, periods []string) (common.TabularResult, error) {
	if len(metric) == 0 {
		return common.TabularResult{}, errors.New("empty metric name")
	}
	if len(periods) == 0 {
		return common.TabularResult{}, errors.New("empty periods list")
	}

	rawSQL := metricQuery(metric, periods)
	url := c.queryURL(component)
	if c.logQueries {
		log.Info("querying devstats", "url", url, "query", rawSQL)
	}

	request := tsdbRequest{
		From: queryFrom,
		To:   strconv.FormatInt(time.Now().UnixMilli(), 10),
		Queries: []tsdbQuery{
			{
				RefID:         "A",
				IntervalMs:    queryIntervalMs,
				MaxDataPoints: queryMaxDataPoints,
				DatasourceID:  queryDatasourceID,
				RawSQL:        rawSQL,
				Format:        queryFormat,
			},
		},
	}

	body, err := json.Marshal(&request)
	if err != nil {
		return common.TabularResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return common.TabularResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return common.TabularResult{}, fmt.Errorf("%w: %s", ErrSourceUnavailable, err.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return common.TabularResult{}, fmt.Errorf("%w: status code %d from %s", ErrSourceUnavailable, resp.StatusCode, url)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.TabularResult{}, fmt.Errorf("%w: %s", ErrSourceUnavailable, err.Error())
	}

	return pivotTable(respBody)
}

func (c *client) queryURL(component string) string {
	host := c.hostname
	if len(component) > 0 {
		host = component + "." + c.hostname
	}

	return c.scheme + "://" + host + tsdbQueryPath
}

func metricQuery(metric string, periods []string) string {
	var sb strings.Builder
	sb.WriteString(`select name, value, period from "shcom" where series = '`)
	sb.WriteString(metric)
	sb.WriteString(`' and period `)

	if len(periods) > 1 {
		quoted := make([]string, len(periods))
		for i, period := range periods {
			quoted[i] = "'" + period + "'"
		}
		sb.WriteString("in (" + strings.Join(quoted, ", ") + ")")
	} else {
		sb.WriteString("= '" + periods[0] + "'")
	}

	return sb.String()
}

// pivotTable converts the long-form response table into wide form: one row per distinct entity name,
// one column per distinct period, first column holding the entity name. When two raw rows carry the
// same (name, period) pair, the later one wins.
func pivotTable(body []byte) (common.TabularResult, error) {
	table := gjson.GetBytes(body, "results.A.tables.0")
	if !table.Exists() {
		return common.TabularResult{}, fmt.Errorf("%w: missing results.A.tables", ErrInvalidTableFormat)
	}

	rawColumns := table.Get("columns.#.text").Array()
	if len(rawColumns) == 0 {
		return common.TabularResult{}, fmt.Errorf("%w: missing columns", ErrInvalidTableFormat)
	}
	mainColumn := rawColumns[0].String()

	columns := []string{mainColumn}
	seenColumns := map[string]struct{}{
		mainColumn: {},
	}

	var rows []common.TableRow
	index := make(map[string]int)

	for _, rawRow := range table.Get("rows").Array() {
		cells := rawRow.Array()
		if len(cells) < 3 {
			return common.TabularResult{}, fmt.Errorf("%w: expected (name, value, period) rows", ErrInvalidTableFormat)
		}

		name := cells[0].String()
		value := cells[1]
		period := cells[2].String()

		rowIdx, found := index[name]
		if !found {
			rows = append(rows, common.TableRow{
				Name:   name,
				Values: make(map[string]float64),
			})
			rowIdx = len(rows) - 1
			index[name] = rowIdx
		}

		if len(period) == 0 || value.Type == gjson.Null {
			continue
		}

		_, seen := seenColumns[period]
		if !seen {
			columns = append(columns, period)
			seenColumns[period] = struct{}{}
		}
		rows[rowIdx].Values[period] = value.Float()
	}

	return common.TabularResult{
		Columns: columns,
		Rows:    rows,
	}, nil
}

func (c *client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status code %d from %s", resp.StatusCode, url)
	}

	return io.ReadAll(resp.Body)
}

func tableAnchors(doc *html.Node) []*html.Node {
	var anchors []*html.Node

	var walk func(n *html.Node, inTable bool, inRow bool)
	walk = func(n *html.Node, inTable bool, inRow bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "table":
				inTable = true
			case "tr":
				inRow = inRow || inTable
			case "a":
				if inRow {
					anchors = append(anchors, n)
				}
			}
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, inTable, inRow)
		}
	}
	walk(doc, false, false)

	return anchors
}

func attrValue(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}

	return ""
}

func ensureComponent(components map[string]*common.Component, href string) *common.Component {
	comp, found := components[href]
	if !found {
		comp = &common.Component{}
		components[href] = comp
	}

	return comp
}

// shortFromHref extracts the subdomain segment between "://" and "."+hostname, e.g.
// https://k8s.devstats.cncf.io -> k8s
func shortFromHref(href string, hostname string) string {
	const marker = "://"

	begin := strings.Index(href, marker)
	if begin < 0 {
		return ""
	}
	begin += len(marker)

	end := strings.Index(href, "."+hostname)
	if end < 0 || end < begin {
		return ""
	}

	return href[begin:end]
}

// IsInterfaceNil returns true if the value under the interface is nil
func (c *client) IsInterfaceNil() bool {
	return c == nil
}

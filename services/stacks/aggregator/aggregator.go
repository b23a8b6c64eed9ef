package aggregator

import (
	"context"
	"errors"
	"sync"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/cache"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("aggregator")

const nameColumn = "name"

// allCompaniesSentinel disables the company allow-list filter when sent as the first entry
const allCompaniesSentinel = "all"

const companiesMetric = "hcomcontributions"
const companiesPeriod = "y10"

type seriesKey struct {
	component string
	metric    string
}

// aggregator merges the cached metric tables of one or more components into a single company-keyed
// table, refreshing stale entries in the background. While any requested component's refresh is still
// in flight the caller gets an updating signal instead of data and is expected to poll again.
type aggregator struct {
	source Source
	cache  MetricsCache
	store  Storage

	mut        sync.Mutex
	refreshing map[seriesKey]struct{}
	lastErr    map[seriesKey]error

	companiesMut   sync.Mutex
	knownCompanies map[string]struct{}
}

// NewAggregator creates a new metrics aggregation engine
func NewAggregator(source Source, metricsCache MetricsCache, store Storage) (*aggregator, error) {
	if check.IfNil(source) {
		return nil, errors.New("nil source")
	}
	if check.IfNil(metricsCache) {
		return nil, errors.New("nil metrics cache")
	}
	if check.IfNil(store) {
		return nil, errors.New("nil storage")
	}

	return &aggregator{
		source:         source,
		cache:          metricsCache,
		store:          store,
		refreshing:     make(map[seriesKey]struct{}),
		lastErr:        make(map[seriesKey]error),
		knownCompanies: make(map[string]struct{}),
	}, nil
}

// GetMetrics returns the merged table for the requested components, metric and periods. The second
// return value is true while at least one component is still refreshing; in that case no rows are
// returned and the caller must poll again. A company allow-list filters the merged rows by exact
// name match, the "all" sentinel (or an empty list) disables filtering.
func (a *aggregator) GetMetrics(
	ctx context.Context,
	componentIDs []string,
	metric string,
	periods []string,
	companies []string,
) (common.TabularResult, bool, error) {
	components := dedupe(componentIDs)

	updating := false
	views := make([]map[string]cache.PeriodData, 0, len(components))
	for _, component := range components {
		inFlight, err := a.ensureFresh(ctx, component, metric, periods)
		if err != nil {
			return common.TabularResult{}, false, err
		}
		if inFlight {
			updating = true
			continue
		}

		view, found := a.cache.Get(component, metric, periods)
		if !found {
			// a component with no cached companies contributes nothing
			continue
		}
		views = append(views, view)
	}

	if updating {
		return common.TabularResult{}, true, nil
	}

	return a.merge(views, periods, companies), false, nil
}

func (a *aggregator) merge(views []map[string]cache.PeriodData, periods []string, companies []string) common.TabularResult {
	rowsByName := make(map[string]*common.TableRow)

	for _, view := range views {
		for _, period := range periods {
			data := view[period]
			for company, value := range data.Values {
				row, found := rowsByName[company]
				if !found {
					row = &common.TableRow{
						Name:   company,
						Values: make(map[string]float64, len(periods)),
					}
					rowsByName[company] = row
				}

				row.Values[period] += value
				if data.UpdatedAt.After(row.UpdatedAt) {
					row.UpdatedAt = data.UpdatedAt
				}
			}
		}
	}

	filter := companiesFilter(companies)
	rows := make([]common.TableRow, 0, len(rowsByName))
	for _, row := range rowsByName {
		if filter != nil && !filter[row.Name] {
			continue
		}

		for _, period := range periods {
			_, hasPeriod := row.Values[period]
			if !hasPeriod {
				row.Values[period] = 0
			}
		}
		rows = append(rows, *row)
	}

	return common.TabularResult{
		Columns: append([]string{nameColumn}, periods...),
		Rows:    rows,
	}
}

// ensureFresh reports whether a refresh for the series is in flight, starting one when the cached
// entry is stale. A refresh failure observed by a previous call is surfaced exactly once, leaving the
// cache unchanged; the retry is triggered by the next call.
func (a *aggregator) ensureFresh(_ context.Context, component string, metric string, periods []string) (bool, error) {
	key := seriesKey{component: component, metric: metric}

	a.mut.Lock()
	defer a.mut.Unlock()

	_, inFlight := a.refreshing[key]
	if inFlight {
		return true, nil
	}

	lastErr := a.lastErr[key]
	if lastErr != nil {
		delete(a.lastErr, key)
		return false, lastErr
	}

	if !a.cache.NeedsRefresh(component, metric, periods) {
		return false, nil
	}

	a.refreshing[key] = struct{}{}
	go a.refresh(component, metric, append([]string(nil), periods...))

	return true, nil
}

func (a *aggregator) refresh(component string, metric string, periods []string) {
	// in-flight refreshes always run to completion, detached from the triggering request
	ctx := context.Background()

	table, err := a.source.FetchMetricTable(ctx, component, metric, periods)
	if err != nil {
		log.Warn("metric refresh failed", "component", component, "metric", metric, "error", err)
		a.finishRefresh(component, metric, err)
		return
	}

	// the upstream may answer with fewer period columns than requested; extend the column list so
	// every requested period gets a (zero-filled) cache entry
	if len(table.Columns) < len(periods)+1 {
		mainColumn := nameColumn
		if len(table.Columns) > 0 {
			mainColumn = table.Columns[0]
		}
		table.Columns = append([]string{mainColumn}, periods...)
	}

	changeSet := a.cache.Put(component, metric, table)

	err = a.store.UpsertCacheRows(ctx, changeSet)
	if err != nil {
		// the in-memory cache stays authoritative, the durable mirror just lags behind
		log.Warn("failed to mirror cache rows", "component", component, "metric", metric, "error", err)
	}

	a.finishRefresh(component, metric, nil)
}

func (a *aggregator) finishRefresh(component string, metric string, err error) {
	key := seriesKey{component: component, metric: metric}

	a.mut.Lock()
	defer a.mut.Unlock()

	delete(a.refreshing, key)
	if err != nil {
		a.lastErr[key] = err
	}
}

// Companies fetches the company list seen by a component (the all-components aggregate when the
// component is empty), remembers the names already encountered and mirrors only the new ones.
func (a *aggregator) Companies(ctx context.Context, component string) ([]string, error) {
	if len(component) == 0 {
		component = common.AllComponentsShort
	}

	table, err := a.source.FetchMetricTable(ctx, component, companiesMetric, []string{companiesPeriod})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(table.Rows))
	for i, row := range table.Rows {
		if i == 0 {
			// the first row is the upstream total, not a company
			continue
		}
		names = append(names, row.Name)
	}

	a.companiesMut.Lock()
	var newNames []string
	for _, name := range names {
		_, seen := a.knownCompanies[name]
		if !seen {
			a.knownCompanies[name] = struct{}{}
			newNames = append(newNames, name)
		}
	}
	a.companiesMut.Unlock()

	if len(newNames) > 0 {
		err = a.store.UpsertCompanies(ctx, newNames)
		if err != nil {
			log.Warn("failed to mirror companies", "error", err)
		}
	}

	return names, nil
}

func dedupe(componentIDs []string) []string {
	seen := make(map[string]struct{}, len(componentIDs))
	out := make([]string, 0, len(componentIDs))
	for _, id := range componentIDs {
		_, found := seen[id]
		if found {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}

func companiesFilter(companies []string) map[string]bool {
	if len(companies) == 0 || companies[0] == allCompaniesSentinel {
		return nil
	}

	filter := make(map[string]bool, len(companies))
	for _, name := range companies {
		filter[name] = true
	}

	return filter
}

// IsInterfaceNil returns true if the value under the interface is nil
func (a *aggregator) IsInterfaceNil() bool {
	return a == nil
}

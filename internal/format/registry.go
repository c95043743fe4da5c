package format

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"lidoDigest/internal/model"
)

// Metric names as produced by the Dune loader.
const (
	MetricTVL                  = "tvl"
	MetricNetDepositGrowth     = "netDepositGrowthLeaders"
	MetricStakingAPR           = "stETHApr"
	MetricStEthToEth           = "stEthToEth"
	MetricDexLiquidityReserves = "dexLiquidityReserves"
	MetricBridgeChange         = "bridgeChange"
	MetricStEthInDeFi          = "totalStEthinDeFi"
	MetricStEthOnL2            = "stEthOnL2"
)

var metricNames = []string{
	MetricTVL,
	MetricNetDepositGrowth,
	MetricStakingAPR,
	MetricStEthToEth,
	MetricDexLiquidityReserves,
	MetricBridgeChange,
	MetricStEthInDeFi,
	MetricStEthOnL2,
}

// CanonicalName returns the metric constant matching name case-insensitively,
// or name unchanged when it is not a known metric.
func CanonicalName(name string) string {
	for _, metric := range metricNames {
		if strings.EqualFold(metric, name) {
			return metric
		}
	}
	return name
}

// ErrRowNotFound reports a required row missing from a dataset.
var ErrRowNotFound = errors.New("row not found")

// Rule turns one dataset into a human-readable summary.
type Rule func(ds model.Dataset) (string, error)

// Registry maps metric name to its formatting rule.
type Registry map[string]Rule

// DefaultRegistry returns the seven metrics summarised in every digest.
func DefaultRegistry() Registry {
	return Registry{
		MetricTVL:                  FormatTVL,
		MetricNetDepositGrowth:     FormatNetDepositGrowth,
		MetricStakingAPR:           FormatStakingAPR,
		MetricStEthToEth:           FormatStEthToEth,
		MetricDexLiquidityReserves: FormatDexLiquidityReserves,
		MetricBridgeChange:         FormatBridgeChange,
		MetricStEthInDeFi:          FormatStEthInDeFi,
	}
}

// NewRegistry returns the default registry, adding the layer 2 bridge breakdown when includeL2 is set.
func NewRegistry(includeL2 bool) Registry {
	reg := DefaultRegistry()
	if includeL2 {
		reg[MetricStEthOnL2] = FormatStEthOnL2
	}
	return reg
}

// FormatAll applies the registered rule to each known dataset. Unknown metric
// names are skipped. The first rule error aborts formatting.
func (r Registry) FormatAll(datasets model.Datasets) (map[string]string, error) {
	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]string, len(names))
	for _, name := range names {
		rule, ok := r[name]
		if !ok {
			continue
		}
		summary, err := rule(datasets[name])
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", name, err)
		}
		out[name] = summary
	}
	return out, nil
}

// FormatAll formats datasets with the default registry.
func FormatAll(datasets model.Datasets) (map[string]string, error) {
	return DefaultRegistry().FormatAll(datasets)
}

func findRow(ds model.Dataset, column, value string) (model.Row, error) {
	row, ok := ds.Find(column, value)
	if !ok {
		return nil, fmt.Errorf("%w: %s=%q", ErrRowNotFound, column, value)
	}
	return row, nil
}

func firstRow(ds model.Dataset) (model.Row, error) {
	row, ok := ds.First()
	if !ok {
		return nil, fmt.Errorf("%w: dataset is empty", ErrRowNotFound)
	}
	return row, nil
}

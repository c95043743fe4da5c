package format

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"lidoDigest/internal/model"
)

// FormatTVL summarises total value locked and the Ethereum and Polygon token price moves.
func FormatTVL(ds model.Dataset) (string, error) {
	total, err := findRow(ds, "chain", "Total")
	if err != nil {
		return "", err
	}
	tvl, err := total.Float("TVL")
	if err != nil {
		return "", err
	}
	tvlChange, err := total.Float("TVL change, %")
	if err != nil {
		return "", err
	}

	eth, err := findRow(ds, "chain", "Ethereum")
	if err != nil {
		return "", err
	}
	ethPriceChange, err := eth.Float("Token price change, %")
	if err != nil {
		return "", err
	}

	polygon, err := findRow(ds, "chain", "Polygon")
	if err != nil {
		return "", err
	}
	polygonPriceChange, err := polygon.Float("Token price change, %")
	if err != nil {
		return "", err
	}

	return "TVL: " + billions(tvl) + "\n" +
		"TVL Percentage Change: " + percent(tvlChange) + "\n" +
		"Ethereum Token Price Change: " + percent(ethPriceChange) + "\n" +
		"Polygon Token Price Change: " + percent(polygonPriceChange), nil
}

type growthEntry struct {
	name   string
	growth float64
}

// FormatNetDepositGrowth reports Lido's place on the ETH net deposit growth leaderboard.
// Lido missing from the leaderboard yields an empty summary.
func FormatNetDepositGrowth(ds model.Dataset) (string, error) {
	entries := make([]growthEntry, 0, len(ds))
	for _, row := range ds {
		name, err := row.String("name")
		if err != nil {
			return "", err
		}
		growth, err := floatOrNaN(row, "eth_deposits_growth")
		if err != nil {
			return "", err
		}
		entries = append(entries, growthEntry{name: name, growth: growth})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].growth, entries[j].growth
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})

	for i, entry := range entries {
		if entry.name != "Lido" {
			continue
		}
		return fmt.Sprintf("Lido had net deposit growth of %s ETH. ETH Growth Leaderboard rank: %d",
			shortFloat(roundTo(entry.growth, 2)), i+1), nil
	}
	return "", nil
}

// floatOrNaN reads a numeric column, treating a null cell as NaN.
func floatOrNaN(row model.Row, column string) (float64, error) {
	if val, ok := row[column]; ok && val == nil {
		return math.NaN(), nil
	}
	return row.Float(column)
}

// FormatStakingAPR reports the latest 7 day moving average staking APR.
func FormatStakingAPR(ds model.Dataset) (string, error) {
	row, err := firstRow(ds)
	if err != nil {
		return "", err
	}
	ma7, err := row.Float("stakingAPR_ma_7")
	if err != nil {
		return "", err
	}
	return "7d MA: " + percent(ma7), nil
}

// FormatStEthToEth reports the latest weighted average stETH/ETH price.
func FormatStEthToEth(ds model.Dataset) (string, error) {
	row, err := firstRow(ds)
	if err != nil {
		return "", err
	}
	price, err := row.Float("weight_avg_price")
	if err != nil {
		return "", err
	}
	return "stETH/ETH price: " + fixed(price, 6), nil
}

// FormatDexLiquidityReserves reports total DEX liquidity and its change over the period.
func FormatDexLiquidityReserves(ds model.Dataset) (string, error) {
	total, err := findRow(ds, "token", "total")
	if err != nil {
		return "", err
	}
	endValue, err := total.Float("end value")
	if err != nil {
		return "", err
	}
	periodChange, err := total.Float("period_change")
	if err != nil {
		return "", err
	}
	return "Total End Value: " + billions(endValue) + "\nPeriod Change: " + percent(periodChange), nil
}

// FormatStEthInDeFi writes one line per protocol describing how its stETH balance moved.
func FormatStEthInDeFi(ds model.Dataset) (string, error) {
	lines := make([]string, 0, len(ds))
	for _, row := range ds {
		title, err := row.String("title")
		if err != nil {
			return "", err
		}
		endAmount, err := row.Float("end_amount")
		if err != nil {
			return "", err
		}
		periodChange, err := row.Float("period_change")
		if err != nil {
			return "", err
		}

		change := periodChange * 100
		changeStr := fixed(change, 2) + "%"
		end := grouped(endAmount, 2)

		if change < 0 {
			lines = append(lines, fmt.Sprintf("%s decreased by %s, ending at %s", capitalize(title), changeStr[1:], end))
		} else {
			lines = append(lines, fmt.Sprintf("%s increased by %s, ending at %s", capitalize(title), changeStr, end))
		}
	}
	return strings.Join(lines, "\n"), nil
}

// FormatStEthOnL2 reports wstETH held on layer 2 bridges, total first.
// Period changes in this dataset are already percentages.
func FormatStEthOnL2(ds model.Dataset) (string, error) {
	total, err := findRow(ds, "bridge", "total")
	if err != nil {
		return "", err
	}
	totalEnd, err := total.Float("end_amount")
	if err != nil {
		return "", err
	}
	totalChange, err := total.Float("period_change")
	if err != nil {
		return "", err
	}

	var bridges strings.Builder
	for _, row := range ds {
		bridge, err := row.String("bridge")
		if err != nil {
			return "", err
		}
		if bridge == "total" {
			continue
		}
		endAmount, err := row.Float("end_amount")
		if err != nil {
			return "", err
		}
		periodChange, err := row.Float("period_change")
		if err != nil {
			return "", err
		}
		bridges.WriteString(fmt.Sprintf("%s: %s wstETH (7d: %s%%)\n", bridge, fixed(endAmount, 0), fixed(periodChange, 2)))
	}

	return fmt.Sprintf("The amount of wstETH on L2 grew by %s%%, hitting %s wstETH:\n\n%s",
		fixed(totalChange, 2), fixed(totalEnd, 0), bridges.String()), nil
}

var bridgeChangeRows = []struct {
	bridge string
	label  string
}{
	{bridge: "total", label: "Total period change"},
	{bridge: "Arbitrum Bridges", label: "Arbitrum Bridge Change"},
	{bridge: "Optimism Bridges", label: "Optimism Bridge Change"},
	{bridge: "Polygon Bridges", label: "Polygon Bridge Change"},
}

// FormatBridgeChange enumerates the total and per-bridge period changes in one sentence.
func FormatBridgeChange(ds model.Dataset) (string, error) {
	parts := make([]string, 0, len(bridgeChangeRows))
	for _, item := range bridgeChangeRows {
		row, err := findRow(ds, "bridge", item.bridge)
		if err != nil {
			return "", err
		}
		change, err := row.Float("period_change")
		if err != nil {
			return "", err
		}
		parts = append(parts, item.label+": "+shortFloat(roundTo(change, 2)))
	}
	return strings.Join(parts, ". "), nil
}

package llm

import (
	"fmt"
	"sort"
	"strings"
)

const promptVersion = "v1"

const threadSystemPrompt = `You are the writer of the Lido weekly digest, a Twitter thread summarising how Lido and stETH performed over the past week.

Rules:
1. Start with a one-tweet overview naming the date range.
2. Write one tweet per metric section you are given, in the order given.
3. Keep every number exactly as provided: do not round, convert, or invent figures.
4. Keep each tweet under 280 characters and separate tweets with a blank line.
5. Number the tweets "1/", "2/", and so on.
6. Neutral, factual tone. No hashtags, no emojis, no price predictions.
7. Skip sections that are empty.

Output the thread as plain text only.`

// metricTitles gives each known metric a heading in the prompt.
var metricTitles = map[string]string{
	"tvl":                     "Total value locked",
	"netDepositGrowthLeaders": "Net deposit growth",
	"stETHApr":                "stETH APR",
	"stEthToEth":              "stETH/ETH peg",
	"dexLiquidityReserves":    "DEX liquidity",
	"bridgeChange":            "Bridge balances",
	"totalStEthinDeFi":        "stETH in DeFi",
	"stEthOnL2":               "wstETH on layer 2",
}

// metricOrder is the section order of the thread; unknown metrics follow alphabetically.
var metricOrder = []string{
	"tvl",
	"stETHApr",
	"stEthToEth",
	"netDepositGrowthLeaders",
	"dexLiquidityReserves",
	"totalStEthinDeFi",
	"bridgeChange",
	"stEthOnL2",
}

func orderedMetrics(summaries map[string]string) []string {
	rank := make(map[string]int, len(metricOrder))
	for i, name := range metricOrder {
		rank[name] = i
	}

	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, iKnown := rank[names[i]]
		rj, jKnown := rank[names[j]]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown != jKnown:
			return iKnown
		default:
			return names[i] < names[j]
		}
	})
	return names
}

func buildThreadPrompt(summaries map[string]string, startDate, endDate string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Period: %s to %s\n\n", startDate, endDate))
	for _, name := range orderedMetrics(summaries) {
		summary := strings.TrimSpace(summaries[name])
		if summary == "" {
			continue
		}
		title, ok := metricTitles[name]
		if !ok {
			title = name
		}
		sb.WriteString(fmt.Sprintf("### %s\n%s\n\n", title, summary))
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

package chart

// Kind selects how a dataset is drawn.
type Kind int

const (
	KindBar Kind = iota
	KindLine
)

// Spec describes which columns of a dataset are plotted.
type Spec struct {
	Kind        Kind
	Title       string
	LabelColumn string
	ValueColumn string
	Exclude     []string
	// Rows arrive newest first; line charts are drawn oldest first.
	Reverse bool
}

// DefaultSpecs returns the chart for each digest metric that has one.
func DefaultSpecs() map[string]Spec {
	return map[string]Spec{
		"tvl": {
			Kind:        KindBar,
			Title:       "Lido TVL by chain",
			LabelColumn: "chain",
			ValueColumn: "TVL",
			Exclude:     []string{"Total"},
		},
		"netDepositGrowthLeaders": {
			Kind:        KindBar,
			Title:       "ETH net deposit growth",
			LabelColumn: "name",
			ValueColumn: "eth_deposits_growth",
		},
		"stETHApr": {
			Kind:        KindLine,
			Title:       "stETH APR, 7d moving average",
			ValueColumn: "stakingAPR_ma_7",
			Reverse:     true,
		},
		"stEthToEth": {
			Kind:        KindLine,
			Title:       "stETH/ETH price",
			ValueColumn: "weight_avg_price",
			Reverse:     true,
		},
		"dexLiquidityReserves": {
			Kind:        KindBar,
			Title:       "DEX liquidity reserves",
			LabelColumn: "token",
			ValueColumn: "end value",
			Exclude:     []string{"total"},
		},
		"totalStEthinDeFi": {
			Kind:        KindBar,
			Title:       "stETH in DeFi",
			LabelColumn: "title",
			ValueColumn: "end_amount",
		},
		"bridgeChange": {
			Kind:        KindBar,
			Title:       "Bridge balance change",
			LabelColumn: "bridge",
			ValueColumn: "period_change",
			Exclude:     []string{"total"},
		},
		"stEthOnL2": {
			Kind:        KindBar,
			Title:       "wstETH on layer 2",
			LabelColumn: "bridge",
			ValueColumn: "end_amount",
			Exclude:     []string{"total"},
		},
	}
}

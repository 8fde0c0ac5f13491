package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"

	"eve-warehouse/internal/logger"
)

const unknownItemName = "Unknown Item"

// ItemOrders lists open orders for one item.
type ItemOrders struct {
	BuyOrders       []Order `json:"buy_orders"`
	SellOrders      []Order `json:"sell_orders"`
	TotalBuyOrders  int     `json:"total_buy_orders"`
	TotalSellOrders int     `json:"total_sell_orders"`
}

func (o *ItemOrders) add(ord Order) {
	if ord.IsBuyOrder {
		o.BuyOrders = append(o.BuyOrders, ord)
		o.TotalBuyOrders++
	} else {
		o.SellOrders = append(o.SellOrders, ord)
		o.TotalSellOrders++
	}
}

func newItemOrders() *ItemOrders {
	return &ItemOrders{BuyOrders: []Order{}, SellOrders: []Order{}}
}

// ItemAnalysis is the valuation of one asset stack.
type ItemAnalysis struct {
	TypeID     int32  `json:"type_id"`
	ItemName   string `json:"item_name"`
	Quantity   int64  `json:"quantity"`
	LocationID int64  `json:"location_id"`

	AvgBuyPrice        float64 `json:"avg_buy_price"`
	MinSellPrice       float64 `json:"min_sell_price"`
	RealisticSellPrice float64 `json:"realistic_sell_price"`
	SpreadPercentage   float64 `json:"spread_percentage"`

	ActualCostPerUnit float64    `json:"actual_cost_per_unit"`
	HasCostBasis      bool       `json:"has_cost_basis"`
	CostBasisData     *CostBasis `json:"cost_basis_data"`

	EffectiveBuyPrice      float64 `json:"effective_buy_price"`
	EffectiveSellPrice     float64 `json:"effective_sell_price"`
	ActualEffectiveCost    float64 `json:"actual_effective_cost"`
	MinProfitableSellPrice float64 `json:"min_profitable_sell_price"`

	CurrentValue             float64 `json:"current_value"`
	ActualProfit             float64 `json:"actual_profit"`
	TheoreticalProfitPerUnit float64 `json:"theoretical_profit_per_unit"`
	ActualProfitPerUnit      float64 `json:"actual_profit_per_unit"`

	BuyOrdersAvailable  int         `json:"buy_orders_available"`
	SellOrdersAvailable int         `json:"sell_orders_available"`
	ActiveOrders        *ItemOrders `json:"active_orders"`
}

// ActiveOrdersSummary describes the open orders at one hub station.
type ActiveOrdersSummary struct {
	BuyOrders        int                   `json:"buy_orders"`
	SellOrders       int                   `json:"sell_orders"`
	TotalISKInOrders float64               `json:"total_isk_in_orders"`
	OrdersByType     map[int32]*ItemOrders `json:"orders_by_type"`
}

// HubReport aggregates the items held at one hub.
type HubReport struct {
	HubName               string              `json:"hub_name"`
	TotalItems            int                 `json:"total_items"`
	TotalTheoreticalValue float64             `json:"total_theoretical_value"`
	TotalActualValue      float64             `json:"total_actual_value"`
	ISKInOrders           float64             `json:"isk_in_orders"`
	BrokerFeeRate         float64             `json:"broker_fee_rate"`
	SalesTaxRate          float64             `json:"sales_tax_rate"`
	Items                 []ItemAnalysis      `json:"items"`
	ActiveOrdersSummary   ActiveOrdersSummary `json:"active_orders_summary"`
	EnhancedAnalysis      bool                `json:"enhanced_analysis"`
	LastUpdated           time.Time           `json:"last_updated"`
	Errors                []string            `json:"errors"`
}

// PrecisionMetrics reports how much of a valuation is backed by transactions.
type PrecisionMetrics struct {
	CostBasisCoveragePercentage float64 `json:"cost_basis_coverage_percentage"`
	ItemsWithCostBasis          int     `json:"items_with_cost_basis"`
	TotalItems                  int     `json:"total_items"`
	TotalActiveOrders           int     `json:"total_active_orders"`
}

// SummaryTotals are the cross-hub totals.
type SummaryTotals struct {
	TotalTheoreticalValue float64          `json:"total_theoretical_value"`
	TotalActualValue      float64          `json:"total_actual_value"`
	TotalISKInOrders      float64          `json:"total_isk_in_orders"`
	TotalItemsAllHubs     int              `json:"total_items_all_hubs"`
	HubsAnalyzed          int              `json:"hubs_analyzed"`
	EnhancedAnalysis      bool             `json:"enhanced_analysis"`
	AnalysisTimestamp     time.Time        `json:"analysis_timestamp"`
	PrecisionMetrics      PrecisionMetrics `json:"precision_metrics"`
	// RealizedProfit is nil when transactions were not fetched (non-enhanced runs).
	RealizedProfit *RealizedProfit `json:"realized_profit"`
}

// WarehouseSummary is the all-hub valuation.
type WarehouseSummary struct {
	AnalysisID    string                `json:"analysis_id"`
	Source        Source                `json:"source"`
	Hubs          []string              `json:"hubs"`
	WarehouseData map[string]*HubReport `json:"warehouse_data"`
	Summary       SummaryTotals         `json:"summary"`
}

// Degraded reports whether an upstream failure was folded into the report.
func (r *HubReport) Degraded() bool { return len(r.Errors) > 0 }

// Degraded reports whether any hub report is degraded.
func (s *WarehouseSummary) Degraded() bool {
	for _, r := range s.WarehouseData {
		if r.Degraded() {
			return true
		}
	}
	return false
}

// WarehouseOptions tunes the valuation engine.
type WarehouseOptions struct {
	TransactionDaysBack int
	RealizedWindowDays  int
	MinProfitMargin     float64
	MarketConcurrency   int
	CorporationDivision int
	Hubs                []Hub
	Now                 func() time.Time
}

// Warehouse values hub inventories against live markets, fees and cost basis.
type Warehouse struct {
	aggregator *Aggregator
	accounts   AccountAPI
	markets    *MarketFetcher
	names      ItemNames
	skills     *SkillSet
	hubs       []Hub
	opts       WarehouseOptions
	now        func() time.Time
}

// NewWarehouse wires the engine. Zero options fall back to the usual defaults.
func NewWarehouse(accounts AccountAPI, market MarketAPI, names ItemNames, skills *SkillSet, opts WarehouseOptions) *Warehouse {
	if len(opts.Hubs) == 0 {
		opts.Hubs = DefaultHubs()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TransactionDaysBack <= 0 {
		opts.TransactionDaysBack = 30
	}
	if opts.RealizedWindowDays <= 0 {
		opts.RealizedWindowDays = 30
	}
	if opts.MinProfitMargin == 0 {
		opts.MinProfitMargin = 0.05
	}
	if opts.CorporationDivision <= 0 {
		opts.CorporationDivision = 1
	}
	if skills == nil {
		skills = NewSkillSet()
	}
	return &Warehouse{
		aggregator: NewAggregator(accounts, opts.Hubs, opts.CorporationDivision),
		accounts:   accounts,
		markets:    NewMarketFetcher(market, opts.MarketConcurrency),
		names:      names,
		skills:     skills,
		hubs:       opts.Hubs,
		opts:       opts,
		now:        opts.Now,
	}
}

// Skills exposes the mutable skill set.
func (w *Warehouse) Skills() *SkillSet { return w.skills }

// Hubs returns the configured hubs.
func (w *Warehouse) Hubs() []Hub {
	out := make([]Hub, len(w.hubs))
	copy(out, w.hubs)
	return out
}

// cycle holds the inputs shared by every hub in one analysis run.
type cycle struct {
	enhanced bool
	fees     Fees
	assets   []Asset
	orders   []Order
	tracker  *CostBasisTracker
	errs     []string
}

// gather runs FETCH_ASSETS, FETCH_COST_BASIS and FETCH_ORDERS. Failures degrade to
// empty inputs and are kept as error strings.
func (w *Warehouse) gather(ctx context.Context, enhanced bool, src Source) *cycle {
	c := &cycle{
		enhanced: enhanced,
		fees:     FeesForSkills(w.skills),
		tracker:  NewCostBasisTracker(w.now),
		errs:     []string{},
	}

	assets, err := w.aggregator.FetchAssets(ctx, src)
	if err != nil {
		logger.Error("Warehouse", err.Error())
		c.errs = append(c.errs, err.Error())
	}
	c.assets = assets

	if !enhanced || !w.accounts.IsAuthenticated() {
		return c
	}
	// Realized profit reads the same transactions, so they must reach back over its window too.
	daysBack := max(w.opts.TransactionDaysBack, w.opts.RealizedWindowDays)
	if err := c.tracker.Refresh(ctx, w.accounts, src, w.opts.CorporationDivision, daysBack); err != nil {
		msg := fmt.Sprintf("fetch %s transactions: %v", src, err)
		logger.Warn("Warehouse", msg)
		c.errs = append(c.errs, msg)
	}
	orders, err := w.aggregator.FetchOrders(ctx, src)
	if err != nil {
		logger.Warn("Warehouse", err.Error())
		c.errs = append(c.errs, err.Error())
	}
	c.orders = orders
	return c
}

// AnalyzeHub values a single hub. Unknown names return ErrUnknownHub.
func (w *Warehouse) AnalyzeHub(ctx context.Context, hubName string, enhanced bool, src Source) (*HubReport, error) {
	hub, err := FindHub(w.hubs, hubName)
	if err != nil {
		return nil, err
	}
	src, err = ParseSource(string(src))
	if err != nil {
		return nil, err
	}
	c := w.gather(ctx, enhanced, src)
	r := w.analyzeHub(ctx, hub, c)
	r.round()
	return r, nil
}

// AnalyzeAll values every hub and reconciles realized profit.
func (w *Warehouse) AnalyzeAll(ctx context.Context, enhanced bool, src Source) (*WarehouseSummary, error) {
	src, err := ParseSource(string(src))
	if err != nil {
		return nil, err
	}
	start := w.now()
	c := w.gather(ctx, enhanced, src)

	sum := &WarehouseSummary{
		AnalysisID:    uuid.NewString(),
		Source:        src,
		Hubs:          HubNames(w.hubs),
		WarehouseData: make(map[string]*HubReport, len(w.hubs)),
	}
	totals := &sum.Summary
	var withBasis int
	for _, hub := range w.hubs {
		r := w.analyzeHub(ctx, hub, c)
		sum.WarehouseData[hub.Name] = r

		totals.TotalTheoreticalValue += r.TotalTheoreticalValue
		totals.TotalActualValue += r.TotalActualValue
		totals.TotalISKInOrders += r.ISKInOrders
		totals.TotalItemsAllHubs += r.TotalItems
		for _, it := range r.Items {
			if it.HasCostBasis {
				withBasis++
			}
		}
		totals.PrecisionMetrics.TotalActiveOrders += r.ActiveOrdersSummary.BuyOrders + r.ActiveOrdersSummary.SellOrders
	}
	totals.HubsAnalyzed = len(sum.WarehouseData)
	totals.EnhancedAnalysis = enhanced
	totals.AnalysisTimestamp = w.now()
	totals.PrecisionMetrics.ItemsWithCostBasis = withBasis
	totals.PrecisionMetrics.TotalItems = totals.TotalItemsAllHubs
	if totals.TotalItemsAllHubs > 0 {
		totals.PrecisionMetrics.CostBasisCoveragePercentage = roundTo(float64(withBasis)/float64(totals.TotalItemsAllHubs)*100, 1)
	}

	if enhanced && w.accounts.IsAuthenticated() {
		rp := ComputeRealizedProfit(c.tracker.Transactions(), c.tracker.CostBasis, c.fees, totals.AnalysisTimestamp, w.opts.RealizedWindowDays).rounded()
		totals.RealizedProfit = &rp
	}

	totals.TotalTheoreticalValue = round2(totals.TotalTheoreticalValue)
	totals.TotalActualValue = round2(totals.TotalActualValue)
	totals.TotalISKInOrders = round2(totals.TotalISKInOrders)
	for _, r := range sum.WarehouseData {
		r.round()
	}

	logger.Info("Warehouse", fmt.Sprintf("Analyzed %d hubs, %d items in %s",
		totals.HubsAnalyzed, totals.TotalItemsAllHubs, w.now().Sub(start).Round(time.Millisecond)))
	return sum, nil
}

func emptyHubReport(hub Hub, c *cycle) *HubReport {
	return &HubReport{
		HubName:          hub.Name,
		BrokerFeeRate:    c.fees.BrokerRate,
		SalesTaxRate:     c.fees.SalesTaxRate,
		Items:            []ItemAnalysis{},
		EnhancedAnalysis: c.enhanced,
		ActiveOrdersSummary: ActiveOrdersSummary{
			OrdersByType: map[int32]*ItemOrders{},
		},
		Errors: append([]string{}, c.errs...),
	}
}

// analyzeHub computes one hub in isolation; a panic becomes an error on the report.
func (w *Warehouse) analyzeHub(ctx context.Context, hub Hub, c *cycle) (report *HubReport) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Warehouse", fmt.Sprintf("hub %s panic: %v\n%s", hub.Name, r, debug.Stack()))
			report = emptyHubReport(hub, c)
			report.LastUpdated = w.now()
			report.Errors = append(report.Errors, fmt.Sprintf("analysis failed: %v", r))
		}
	}()

	report = emptyHubReport(hub, c)
	report.ActiveOrdersSummary = summarizeStationOrders(hub.StationID, c.orders)
	report.ISKInOrders = report.ActiveOrdersSummary.TotalISKInOrders

	var assets []Asset
	for _, a := range c.assets {
		if a.TradeHub == hub.Name {
			assets = append(assets, a)
		}
	}
	if len(assets) == 0 {
		report.LastUpdated = w.now()
		return report
	}

	seen := make(map[int32]bool, len(assets))
	typeIDs := make([]int32, 0, len(assets))
	for _, a := range assets {
		if !seen[a.TypeID] {
			seen[a.TypeID] = true
			typeIDs = append(typeIDs, a.TypeID)
		}
	}
	market := w.markets.Fetch(ctx, hub.RegionID, typeIDs, c.enhanced)
	failed := 0
	for _, e := range market {
		if e.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		report.Errors = append(report.Errors, fmt.Sprintf("market data unavailable for %d of %d item types", failed, len(typeIDs)))
	}

	items := make([]ItemAnalysis, 0, len(assets))
	for _, a := range assets {
		it := w.analyzeItem(a, market[a.TypeID], c)
		report.TotalTheoreticalValue += it.CurrentValue
		report.TotalActualValue += it.ActualProfit
		items = append(items, it)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].ActualProfit > items[j].ActualProfit })

	report.Items = items
	report.TotalItems = len(items)
	report.LastUpdated = w.now()
	return report
}

func (w *Warehouse) analyzeItem(a Asset, m MarketEntry, c *cycle) ItemAnalysis {
	it := ItemAnalysis{
		TypeID:              a.TypeID,
		ItemName:            unknownItemName,
		Quantity:            a.Quantity,
		LocationID:          a.LocationID,
		AvgBuyPrice:         m.Snapshot.AvgBuyPrice,
		MinSellPrice:        m.Snapshot.MinSellPrice,
		RealisticSellPrice:  m.Snapshot.MinSellPrice,
		BuyOrdersAvailable:  m.Snapshot.BuyOrdersCount,
		SellOrdersAvailable: m.Snapshot.SellOrdersCount,
		ActualCostPerUnit:   m.Snapshot.AvgBuyPrice,
	}
	if w.names != nil {
		if name, ok := w.names.Lookup(a.TypeID); ok {
			it.ItemName = name
		}
	}

	if c.enhanced {
		if m.Depth != nil {
			it.RealisticSellPrice = m.Depth.RealisticSellPrice
			it.SpreadPercentage = m.Depth.SpreadPercentage
		}
		if cb, ok := c.tracker.CostBasis(a.TypeID, a.LocationID); ok {
			it.ActualCostPerUnit = cb.AverageCost
			it.HasCostBasis = true
			it.CostBasisData = &cb
		}
	}

	fees := c.fees
	it.EffectiveBuyPrice = fees.EffectiveBuyPrice(it.AvgBuyPrice)
	it.EffectiveSellPrice = fees.EffectiveSellPrice(it.RealisticSellPrice)
	it.ActualEffectiveCost = fees.EffectiveBuyPrice(it.ActualCostPerUnit)
	it.MinProfitableSellPrice = fees.MinProfitableSellPrice(it.ActualEffectiveCost, w.opts.MinProfitMargin)

	qty := float64(a.Quantity)
	it.CurrentValue = it.EffectiveSellPrice * qty
	it.ActualProfit = (it.EffectiveSellPrice - it.ActualEffectiveCost) * qty
	it.TheoreticalProfitPerUnit = max(0, it.EffectiveSellPrice-it.EffectiveBuyPrice)
	it.ActualProfitPerUnit = max(0, it.EffectiveSellPrice-it.ActualEffectiveCost)

	it.ActiveOrders = newItemOrders()
	for _, o := range c.orders {
		if o.TypeID == a.TypeID && o.LocationID == a.LocationID {
			it.ActiveOrders.add(o)
		}
	}
	return it
}

// summarizeStationOrders counts orders at a station; ISK in orders is price × remaining
// volume over buy orders.
func summarizeStationOrders(stationID int64, orders []Order) ActiveOrdersSummary {
	s := ActiveOrdersSummary{OrdersByType: map[int32]*ItemOrders{}}
	for _, o := range orders {
		if o.LocationID != stationID {
			continue
		}
		if o.IsBuyOrder {
			s.BuyOrders++
			s.TotalISKInOrders += o.Price * float64(o.VolumeRemain)
		} else {
			s.SellOrders++
		}
		byType, ok := s.OrdersByType[o.TypeID]
		if !ok {
			byType = newItemOrders()
			s.OrdersByType[o.TypeID] = byType
		}
		byType.add(o)
	}
	return s
}

func (r *HubReport) round() {
	r.TotalTheoreticalValue = round2(r.TotalTheoreticalValue)
	r.TotalActualValue = round2(r.TotalActualValue)
	r.ISKInOrders = round2(r.ISKInOrders)
	r.BrokerFeeRate = round2(r.BrokerFeeRate)
	r.SalesTaxRate = round2(r.SalesTaxRate)
	r.ActiveOrdersSummary.TotalISKInOrders = round2(r.ActiveOrdersSummary.TotalISKInOrders)
	for i := range r.Items {
		it := &r.Items[i]
		it.AvgBuyPrice = round2(it.AvgBuyPrice)
		it.MinSellPrice = round2(it.MinSellPrice)
		it.RealisticSellPrice = round2(it.RealisticSellPrice)
		it.SpreadPercentage = round2(it.SpreadPercentage)
		it.ActualCostPerUnit = round2(it.ActualCostPerUnit)
		it.EffectiveBuyPrice = round2(it.EffectiveBuyPrice)
		it.EffectiveSellPrice = round2(it.EffectiveSellPrice)
		it.ActualEffectiveCost = round2(it.ActualEffectiveCost)
		it.MinProfitableSellPrice = round2(it.MinProfitableSellPrice)
		it.CurrentValue = round2(it.CurrentValue)
		it.ActualProfit = round2(it.ActualProfit)
		it.TheoreticalProfitPerUnit = round2(it.TheoreticalProfitPerUnit)
		it.ActualProfitPerUnit = round2(it.ActualProfitPerUnit)
		if it.CostBasisData != nil {
			it.CostBasisData.AverageCost = round2(it.CostBasisData.AverageCost)
			it.CostBasisData.TotalCost = round2(it.CostBasisData.TotalCost)
		}
	}
}

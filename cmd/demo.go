package cmd

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/railops/wagonmatch/config"
	"github.com/railops/wagonmatch/core/allot"
	"github.com/railops/wagonmatch/core/audit"
	"github.com/railops/wagonmatch/core/catalog"
	"github.com/railops/wagonmatch/core/match"
	"github.com/railops/wagonmatch/core/model"
	"github.com/railops/wagonmatch/core/registry"
	"github.com/railops/wagonmatch/infra/logger"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Seed sample yard data and run one match/allot cycle",
	RunE:  runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		// The demo works without a config file.
		cfg = &config.Config{}
		cfg.Matching.SetDefaults()
		cfg.Registry.SetDefaults()
	}

	logg := logger.New("demo")
	reg := registry.New(cfg.Registry)
	cat := catalog.New()
	store := audit.NewMemoryStore()
	orch := allot.New(reg, cat, match.New(cfg.Matching), store, nil, nil, logg)

	indents := []model.Indent{
		{ID: "IN001", Commodity: "Coal", QuantityTons: 500, Origin: "Jharia", Destination: "Mumbai",
			Requester: "NTPC Ltd", Priority: model.PriorityHigh, AgePendingDays: 5,
			WagonTypeRequired: "BOXN", WagonCountRequired: 9, PenaltyRisk: decimal.NewFromInt(420000)},
		{ID: "IN002", Commodity: "Steel", QuantityTons: 200, Origin: "Jamshedpur", Destination: "Chennai",
			Requester: "Tata Steel", Priority: model.PriorityMedium, AgePendingDays: 3,
			WagonTypeRequired: "BCNA", WagonCountRequired: 4, PenaltyRisk: decimal.NewFromInt(180000)},
		{ID: "IN003", Commodity: "Cement", QuantityTons: 150, Origin: "Satna", Destination: "Delhi",
			Requester: "UltraTech", Priority: model.PriorityLow, AgePendingDays: 1,
			WagonTypeRequired: "BCNA", WagonCountRequired: 3, PenaltyRisk: decimal.NewFromInt(80000)},
		{ID: "IN004", Commodity: "Iron Ore", QuantityTons: 800, Origin: "Goa", Destination: "Vizag",
			Requester: "SAIL", Priority: model.PriorityHigh, AgePendingDays: 7,
			WagonTypeRequired: "BOXN", WagonCountRequired: 14, PenaltyRisk: decimal.NewFromInt(650000)},
	}
	for _, in := range indents {
		if err := reg.Add(in); err != nil {
			return err
		}
	}

	pools := []model.WagonSource{
		{Location: "Kalyan Yard", WagonType: "BOXN", CountAvailable: 45, CapacityPerWagonTons: 58.8,
			DistanceToOriginKM: 1240, EmptyRunCost: decimal.NewFromInt(210000), Availability: model.Immediate()},
		{Location: "Tughlakabad", WagonType: "BCNA", CountAvailable: 32, CapacityPerWagonTons: 60.0,
			DistanceToOriginKM: 28, EmptyRunCost: decimal.NewFromInt(40000), Availability: model.Immediate()},
		{Location: "Whitefield", WagonType: "BOXN", CountAvailable: 28, CapacityPerWagonTons: 58.8,
			DistanceToOriginKM: 2100, EmptyRunCost: decimal.NewFromInt(380000), Availability: model.NextDay()},
		{Location: "Vadodara", WagonType: "BOBR", CountAvailable: 15, CapacityPerWagonTons: 59.0,
			DistanceToOriginKM: 950, EmptyRunCost: decimal.NewFromInt(170000), Availability: model.Immediate()},
		{Location: "Sonpur", WagonType: "BCFC", CountAvailable: 22, CapacityPerWagonTons: 55.0,
			DistanceToOriginKM: 980, EmptyRunCost: decimal.NewFromInt(180000), Availability: model.InDays(2)},
	}
	for _, ws := range pools {
		if err := cat.Seed(ws); err != nil {
			return err
		}
	}

	fmt.Println("Pending indents by urgency:")
	for _, in := range reg.ListOpen() {
		fmt.Printf("  %-6s %-9s %3d x %-5s urgency %5.1f  [%s]\n",
			in.ID, in.Commodity, in.WagonCountRequired, in.WagonTypeRequired,
			in.UrgencyScore, reg.BandOf(in.AgePendingDays))
	}

	top := reg.ListOpen()[0]
	cands, err := orch.RankCandidates(top.ID)
	if err != nil {
		return err
	}
	fmt.Printf("\nSmart matches for %s (%s):\n", top.ID, top.Commodity)
	for _, c := range cands {
		fmt.Printf("  %-12s %3d x %-5s score %5.1f  empty-run %s\n",
			c.Source.Location, c.Source.CountAvailable, c.Source.WagonType,
			c.Score, c.Source.EmptyRunCost)
	}
	if len(cands) == 0 {
		return fmt.Errorf("no candidates for %s", top.ID)
	}

	best := cands[0].Source
	a, err := orch.Propose(ctx, "demo", top.ID, best.Location, best.WagonType, top.WagonCountRequired)
	if err != nil {
		return err
	}
	a, err = orch.Confirm(ctx, "demo", a.ID)
	if err != nil {
		return err
	}
	after, err := cat.Get(best.Location, best.WagonType)
	if err != nil {
		return err
	}
	fmt.Printf("\nAllotment %s %s: %d x %s from %s (%d left in pool)\n",
		a.ID, a.State, a.CountAssigned, a.WagonType, a.Location, after.CountAvailable)

	entries, err := store.Query(ctx, audit.Query{IndentID: top.ID})
	if err != nil {
		return err
	}
	fmt.Println("\nAudit trail:")
	for _, e := range entries {
		fmt.Printf("  %s %-8s %s\n", e.Timestamp.Format("15:04:05"), e.Action, e.Summary)
	}
	return nil
}

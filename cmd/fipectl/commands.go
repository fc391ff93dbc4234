package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"fipetracker/server/internal/comparison"
	"fipetracker/server/internal/database"
	"fipetracker/server/internal/format"
	"fipetracker/server/internal/inflation"
	"fipetracker/server/internal/models"
	"fipetracker/server/internal/options"
)

var commands = []subcommands.Command{
	&brandsCmd{},
	&optionsCmd{},
	&historyCmd{},
	&compareCmd{},
}

func openReadOnly() (*database.Database, error) {
	return database.NewReadOnlyDatabase(dbPath)
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func pct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

type brandsCmd struct {
	json bool
}

func (*brandsCmd) Name() string     { return "brands" }
func (*brandsCmd) Synopsis() string { return "list the brands of the catalogue" }
func (*brandsCmd) Usage() string {
	return `fipectl brands [-json]

  Lists every brand with its id, ordered by name.
`
}

func (c *brandsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "Print JSON instead of a table.")
}

func (c *brandsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	db, err := openReadOnly()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	brands, err := db.ListBrands(ctx)
	if err != nil {
		return fail(err)
	}
	if c.json {
		if err := writeJSON(os.Stdout, brands); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBRAND")
	for _, b := range brands {
		fmt.Fprintf(tw, "%d\t%s\n", b.ID, b.Name)
	}
	if err := tw.Flush(); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

// resolveBrand accepts a brand id or a case-insensitive brand name.
func resolveBrand(ctx context.Context, db *database.Database, brand string) (uint, error) {
	if id, err := strconv.ParseUint(brand, 10, 32); err == nil {
		return uint(id), nil
	}
	brands, err := db.ListBrands(ctx)
	if err != nil {
		return 0, err
	}
	for _, b := range brands {
		if strings.EqualFold(b.Name, brand) {
			return b.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: brand %q", models.ErrNotFound, brand)
}

type optionsCmd struct {
	brand string
	all   bool
	json  bool
}

func (*optionsCmd) Name() string     { return "options" }
func (*optionsCmd) Synopsis() string { return "show the selectable models and years of a brand" }
func (*optionsCmd) Usage() string {
	return `fipectl options -brand <name|id> [-all] [-json]

  Prints the option index of a brand: every model with its years and the
  model year id that pair resolves to. By default only vehicles priced in
  the latest reference month are listed.
`
}

func (c *optionsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.brand, "brand", "", "Brand name or id.")
	f.BoolVar(&c.all, "all", false, "Include vehicles without a price in the latest month.")
	f.BoolVar(&c.json, "json", false, "Print the index as JSON.")
}

func (c *optionsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.brand == "" {
		return fail(fmt.Errorf("-brand is required"))
	}
	db, err := openReadOnly()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	brandID, err := resolveBrand(ctx, db, c.brand)
	if err != nil {
		return fail(err)
	}
	idx, err := options.NewService(db, !c.all, logger).BuildIndex(ctx, brandID)
	if err != nil {
		return fail(err)
	}
	if c.json {
		if err := writeJSON(os.Stdout, idx); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}

	if idx.ReferenceMonth != "" {
		fmt.Printf("Priced in %s\n\n", idx.ReferenceMonth)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tYEAR\tVEHICLE ID")
	for _, m := range idx.Models {
		for _, y := range idx.YearsForModel(m.ID) {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", m.Name, y, idx.ModelYearLookup[m.ID][y])
		}
	}
	if err := tw.Flush(); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

// rangeFlags are the date bounds shared by history and compare.
type rangeFlags struct {
	from      string
	to        string
	inflation bool
}

func (r *rangeFlags) set(f *flag.FlagSet) {
	f.StringVar(&r.from, "from", "", "First month (YYYY-MM), open when empty.")
	f.StringVar(&r.to, "to", "", "Last month (YYYY-MM), open when empty.")
	f.BoolVar(&r.inflation, "inflation", false, "Query the IPCA series to compute real depreciation.")
}

func (r *rangeFlags) aggregator(db *database.Database) *comparison.Aggregator {
	var provider comparison.InflationProvider
	if r.inflation {
		provider = inflation.NewClient(cfg.Inflation.BaseURL, cfg.Inflation.Series, cfg.Inflation.Timeout, logger)
	}
	return comparison.NewAggregator(db, provider, cfg.Compare.Workers, cfg.Compare.FetchTimeout, logger)
}

func (r *rangeFlags) compare(ctx context.Context, ids []uint, indexed bool) (*comparison.Result, error) {
	rng, err := models.ParseRange(r.from, r.to)
	if err != nil {
		return nil, err
	}
	db, err := openReadOnly()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return r.aggregator(db).Compare(ctx, comparison.Request{ModelYearIDs: ids, Range: rng, Indexed: indexed})
}

func vehicleName(v *models.VehicleInfo) string {
	return fmt.Sprintf("%s %s %s", v.BrandName, v.ModelName, v.YearDescription)
}

type historyCmd struct {
	rangeFlags
	vehicle uint
	json    bool
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "print the price history of one vehicle" }
func (*historyCmd) Usage() string {
	return `fipectl history -vehicle <id> [-from YYYY-MM] [-to YYYY-MM] [-inflation] [-json]

  Prints every monthly price of a vehicle followed by its depreciation
  statistics.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	c.rangeFlags.set(f)
	f.UintVar(&c.vehicle, "vehicle", 0, "Model year id of the vehicle.")
	f.BoolVar(&c.json, "json", false, "Print JSON instead of a table.")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	res, err := c.compare(ctx, []uint{c.vehicle}, false)
	if err != nil {
		return fail(err)
	}
	entry := res.Vehicles[0]
	if c.json {
		if err := writeJSON(os.Stdout, entry); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}

	fmt.Println(vehicleName(entry.Vehicle))
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tPRICE")
	for _, p := range entry.Series {
		fmt.Fprintf(tw, "%s\t%s\n", p.Label, p.FormattedPrice)
	}
	if err := tw.Flush(); err != nil {
		return fail(err)
	}

	st := entry.Statistics
	fmt.Printf("\nChange: %s over %d months, annualized %s, monthly %s, real %s\n",
		pct(st.TotalChangePct), st.MonthsElapsed, pct(st.AnnualizedPct), pct(st.MonthlyPct), pct(st.RealDepreciationPct))
	return subcommands.ExitSuccess
}

type compareCmd struct {
	rangeFlags
	vehicles string
	indexed  bool
	json     bool
}

func (*compareCmd) Name() string     { return "compare" }
func (*compareCmd) Synopsis() string { return "compare the depreciation of up to five vehicles" }
func (*compareCmd) Usage() string {
	return `fipectl compare -vehicles <id,id,...> [-from YYYY-MM] [-to YYYY-MM] [-indexed] [-inflation] [-json]

  Fetches every vehicle over the same range and prints one summary line
  per vehicle. The comparison fails as a whole when any vehicle is missing.
`
}

func (c *compareCmd) SetFlags(f *flag.FlagSet) {
	c.rangeFlags.set(f)
	f.StringVar(&c.vehicles, "vehicles", "", "Comma separated model year ids.")
	f.BoolVar(&c.indexed, "indexed", false, "Include the base-100 index of every series.")
	f.BoolVar(&c.json, "json", false, "Print JSON instead of a table.")
}

func parseIDs(s string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid vehicle id %q", models.ErrInvalidRequest, part)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func (c *compareCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ids, err := parseIDs(c.vehicles)
	if err != nil {
		return fail(err)
	}
	res, err := c.compare(ctx, ids, c.indexed)
	if err != nil {
		return fail(err)
	}
	if c.json {
		if err := writeJSON(os.Stdout, res); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVEHICLE\tFIRST\tLAST\tCHANGE\tANNUALIZED\tREAL")
	for _, e := range res.Vehicles {
		first, last := "-", "-"
		if n := len(e.Series); n > 0 {
			first = format.PriceBRL(e.Series[0].Price)
			last = format.PriceBRL(e.Series[n-1].Price)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", e.ModelYearID, vehicleName(e.Vehicle), first, last,
			pct(e.Statistics.TotalChangePct), pct(e.Statistics.AnnualizedPct), pct(e.Statistics.RealDepreciationPct))
	}
	if err := tw.Flush(); err != nil {
		return fail(err)
	}
	if res.Inflation.Available {
		fmt.Printf("\nIPCA %s to %s: %s\n", res.Inflation.Start, res.Inflation.End, pct(res.Inflation.RatePct))
	}
	return subcommands.ExitSuccess
}

type importCmd struct {
	file string
	demo bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "load a JSON catalogue fixture into the database" }
func (*importCmd) Usage() string {
	return `fipectl import (-file <fixture.json> | -demo)

  Creates the schema when missing and upserts every brand, model, year,
  reference month and price of the fixture. Intended for local development;
  production data comes from the ingestion job.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "Fixture file to import.")
	f.BoolVar(&c.demo, "demo", false, "Import the built-in demo catalogue.")
}

func (c *importCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var fx *database.Fixture
	switch {
	case c.demo && c.file != "":
		return fail(fmt.Errorf("-file and -demo are exclusive"))
	case c.demo:
		fx = database.DemoFixture()
	case c.file != "":
		var err error
		if fx, err = database.LoadFixtureFile(c.file); err != nil {
			return fail(err)
		}
	default:
		return fail(fmt.Errorf("one of -file or -demo is required"))
	}

	db, err := database.NewDatabase(dbPath)
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		return fail(err)
	}
	summary, err := db.ImportFixture(ctx, fx)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Imported %d brands, %d models, %d years, %d months, %d prices into %s\n",
		summary.Brands, summary.Models, summary.Years, summary.Months, summary.Prices, dbPath)
	return subcommands.ExitSuccess
}

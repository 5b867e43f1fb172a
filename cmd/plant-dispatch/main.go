// Command plant-dispatch runs the cost-minimizing operational dispatch
// MILP for one scenario, or a whole use-case family of them, grounded on
// main.go's flag-driven single-shot entrypoint and generalized to
// spec.md 6's exact CLI contract.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/devskill-org/plant-dispatch/assemble"
	"github.com/devskill-org/plant-dispatch/config"
	"github.com/devskill-org/plant-dispatch/dashboard"
	"github.com/devskill-org/plant-dispatch/history"
	"github.com/devskill-org/plant-dispatch/solver"
	"github.com/devskill-org/plant-dispatch/validate"
	"github.com/devskill-org/plant-dispatch/writeback"
)

const (
	successExitCode = 0
	failureExitCode = 1
)

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Sector-coupled plant dispatch MILP driver.")
	app.HelpFlag.Short('h')

	configFile := app.Flag("config", "Single scenario config file.").String()
	useCase := app.Flag("use-case", "Run every config in --scenarios-dir whose basename starts with <prefix>_.").String()
	scenariosDir := app.Flag("scenarios-dir", "Directory to search when --use-case is given.").Default("./scenarios").String()
	dryRun := app.Flag("dry-run", "Validate and assemble every selected scenario without solving.").Bool()
	serve := app.Flag("serve", "Start the status/result dashboard server.").Bool()
	serveAddr := app.Flag("serve-addr", "Dashboard server bind address.").Default(":8090").String()
	writeBackAddr := app.Flag("write-back", "host:port of a Modbus TCP plant controller to push the first dispatch hour to.").String()
	noHistory := app.Flag("no-history", "Disable run-history persistence.").Bool()
	parallel := app.Flag("parallel", "Number of scenarios to run concurrently via self re-invocation.").Default("1").Int()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	if (*configFile == "") == (*useCase == "") {
		kingpin.Fatalf("exactly one of --config or --use-case must be given")
	}

	logger := log.New(os.Stdout, "[plant-dispatch] ", log.LstdFlags)

	var dash *dashboard.Server
	if *serve {
		dash = dashboard.NewServer(*serveAddr, logger)
		dash.Start()
		logger.Printf("dashboard server listening on %s", *serveAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			dash.Stop(ctx)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Printf("shutdown signal received, cancelling remaining scenarios...")
		cancel()
	}()
	defer cancel()

	scenarioFiles, useCaseName, err := selectScenarios(*configFile, *useCase, *scenariosDir)
	if err != nil {
		logger.Printf("error: %v", err)
		os.Exit(failureExitCode)
	}

	if *parallel > 1 && len(scenarioFiles) > 1 {
		os.Exit(runParallel(ctx, scenarioFiles, *parallel, logger))
	}

	succeeded, failed := 0, 0
	for _, f := range scenarioFiles {
		if ctx.Err() != nil {
			break
		}
		name := scenarioName(f)
		if err := runScenario(ctx, name, useCaseName, f, logger, dash, *noHistory, *dryRun, *writeBackAddr); err != nil {
			logger.Printf("scenario %q failed: %v", name, err)
			failed++
			continue
		}
		succeeded++
	}

	logger.Printf("run complete: %d succeeded, %d failed", succeeded, failed)
	if failed > 0 {
		os.Exit(failureExitCode)
	}
	os.Exit(successExitCode)
}

// selectScenarios resolves the --config/--use-case mutual exclusion into
// a concrete list of config file paths and the use-case directory name
// (empty for a single --config run, per spec.md 6's "dummy" case).
func selectScenarios(configFile, useCase, scenariosDir string) ([]string, string, error) {
	if configFile != "" {
		return []string{configFile}, "", nil
	}

	entries, err := os.ReadDir(scenariosDir)
	if err != nil {
		return nil, "", fmt.Errorf("reading scenarios dir %q: %w", scenariosDir, err)
	}
	prefix := useCase + "_"
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			files = append(files, filepath.Join(scenariosDir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, "", fmt.Errorf("no config files under %q match prefix %q", scenariosDir, prefix)
	}
	return files, useCase, nil
}

func scenarioName(configPath string) string {
	base := filepath.Base(configPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// runScenario loads, assembles, solves, and writes the output for one
// scenario, matching spec.md 6's output layout and 7's error propagation
// policy (a scenario's own failure never aborts the orchestrator loop).
func runScenario(ctx context.Context, name, useCase, configPath string, logger *log.Logger, dash *dashboard.Server, noHistory, dryRun bool, writeBackAddr string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	sc, err := assemble.Assemble(name, cfg)
	if err != nil {
		return err
	}
	for _, warn := range sc.Warnings {
		logger.Printf("scenario %q: warning: %s", name, warn)
	}
	if dryRun {
		logger.Printf("scenario %q: assembled %d variables, %d rows (dry run, not solving)",
			name, sc.Model.NVars(), sc.Model.NRows())
		return nil
	}

	opts := solver.DefaultOptions()
	if cfg.SolverName != "" {
		opts.Name = cfg.SolverName
	}
	if cfg.TimeLimitSeconds > 0 {
		opts.TimeLimit = time.Duration(cfg.TimeLimitSeconds * float64(time.Second))
	}
	if cfg.MIPGap > 0 {
		opts.MIPGap = cfg.MIPGap
	}

	start := time.Now()
	result, solveErr := solver.Run(name, sc.Model, opts)
	elapsed := time.Since(start)

	status := "optimal"
	if solveErr != nil {
		if verr, ok := solveErr.(*validate.Error); ok && verr.Kind != validate.SolverTimeout {
			return solveErr
		}
		status = "partial"
		logger.Printf("scenario %q: %v", name, solveErr)
	}

	outDir := outputDir(cfg.OutputRoot, useCase, name)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir %q: %w", outDir, err)
	}
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	if err := writeOutputs(sc, result, cfg, name, status, outDir, timestamp); err != nil {
		return err
	}

	costs := computeCostBreakdown(sc, result, cfg)
	if !noHistory {
		store, err := history.Open(cfg.DatabaseURL, cfg.OutputRoot, logger)
		if err != nil {
			logger.Printf("scenario %q: history store unavailable: %v", name, err)
		} else {
			rec := history.RunRecord{
				Scenario: name, Timestamp: time.Now(), Status: status,
				Objective: costs.Objective, GasCosts: costs.GasCosts, PowerCosts: costs.PowerCosts,
				HydrogenCosts: costs.HydrogenCosts, HeatRevenue: costs.HeatRevenue,
				NetTotal: costs.NetTotal, Discrepancy: costs.Discrepancy,
				NodesExplored: result.NodesExplored, SolveSeconds: elapsed.Seconds(),
			}
			if err := store.SaveRun(ctx, rec); err != nil {
				logger.Printf("scenario %q: saving run history: %v", name, err)
			}
			store.Close()
		}
	}

	if dash != nil {
		dash.Publish(dashboard.ScenarioResult{
			Scenario: name, Status: status, Timestamp: time.Now().UTC().Format(time.RFC3339),
			Costs: costs,
			Metadata: solver.RunMetadata{
				Scenario: name, SolverName: opts.Name, MIPGap: opts.MIPGap,
				TimeLimitSeconds: opts.TimeLimit.Seconds(), Status: status, NodesExplored: result.NodesExplored,
			},
		}, elapsed.Seconds())
	}

	if writeBackAddr != "" {
		if err := pushSetpoints(writeBackAddr, sc, logger); err != nil {
			logger.Printf("scenario %q: write-back failed: %v", name, err)
		}
	}

	printSummary(name, status, costs, elapsed, result.NodesExplored)
	return nil
}

func outputDir(root, useCase, scenario string) string {
	if useCase == "" {
		return filepath.Join(root, scenario)
	}
	return filepath.Join(root, useCase, scenario)
}

func writeOutputs(sc *assemble.Scenario, result solver.Result, cfg *config.Config, name, status, outDir, timestamp string) error {
	prefix := filepath.Join(outDir, fmt.Sprintf("%s_%s", name, timestamp))

	outCSV, err := os.Create(prefix + "_output.csv")
	if err != nil {
		return err
	}
	defer outCSV.Close()
	if err := solver.WriteOutputCSV(outCSV, sc.Model, nil); err != nil {
		return err
	}

	costs := computeCostBreakdown(sc, result, cfg)
	costsFile, err := os.Create(prefix + "_costs.json")
	if err != nil {
		return err
	}
	defer costsFile.Close()
	if err := solver.WriteCostsJSON(costsFile, costs); err != nil {
		return err
	}

	metaFile, err := os.Create(prefix + "_metadata.json")
	if err != nil {
		return err
	}
	defer metaFile.Close()
	md := solver.RunMetadata{
		Scenario: name, Timestamp: timestamp, SolverName: cfg.SolverName,
		MIPGap: cfg.MIPGap, TimeLimitSeconds: cfg.TimeLimitSeconds, Status: status,
		NodesExplored: result.NodesExplored,
		HydrogenAdmixture: map[string]float64{
			"chp_1": cfg.Parameters["HYDROGEN_ADMIXTURE_CHP_1"],
			"chp_2": cfg.Parameters["HYDROGEN_ADMIXTURE_CHP_2"],
		},
		ScalarPrices: map[string]float64{
			"CO2_PRICE": cfg.Parameters["CO2_PRICE"], "HEAT_PRICE": cfg.Parameters["HEAT_PRICE"],
			"H2_PRICE": cfg.Parameters["H2_PRICE"],
		},
	}
	if err := solver.WriteMetadataJSON(metaFile, md); err != nil {
		return err
	}

	logFile, err := os.Create(prefix + "_solver.log")
	if err != nil {
		return err
	}
	defer logFile.Close()
	return solver.WriteSolverLog(logFile, result, nil)
}

func computeCostBreakdown(sc *assemble.Scenario, result solver.Result, cfg *config.Config) solver.CostBreakdown {
	gasCosts, powerCosts, hydrogenCosts, heatRevenue := 0.0, 0.0, 0.0, 0.0
	co2PerCHP := map[string]float64{}
	co2Price := cfg.Parameters["CO2_PRICE"]
	heatPrice := cfg.Parameters["HEAT_PRICE"]
	hours := sc.Model.Hours
	for t := 1; t <= hours; t++ {
		gasCosts += sc.NaturalGasBus.Supply.At(t) * sc.GasPrice.At(t)
		powerCosts += sc.ElectricalBus.Balance.At(t) * sc.PowerPrice.At(t)
		h2Price := sc.H2Price.At(t)
		if cfg.UsesConstantH2Price() {
			h2Price = cfg.Parameters["H2_PRICE"]
		}
		hydrogenCosts += sc.HydrogenBus.Supply.At(t) * h2Price
		heatRevenue += sc.HeatBus.Feedin.At(t) * heatPrice
		co2PerCHP["chp_1"] += sc.CHP1.CO2.At(t) * co2Price
		co2PerCHP["chp_2"] += sc.CHP2.CO2.At(t) * co2Price
	}
	netTotal := gasCosts + co2PerCHP["chp_1"] + co2PerCHP["chp_2"] + powerCosts + hydrogenCosts - heatRevenue
	discrepancy, exceeded := validate.ReconcileCost(netTotal, result.Objective)
	return solver.CostBreakdown{
		GasCosts: gasCosts, CO2CostsPerCHP: co2PerCHP, PowerCosts: powerCosts,
		HydrogenCosts: hydrogenCosts, HeatRevenue: heatRevenue, NetTotal: netTotal,
		Objective: result.Objective, Discrepancy: discrepancy, DiscrepancyWarning: exceeded,
	}
}

func pushSetpoints(addr string, sc *assemble.Scenario, logger *log.Logger) error {
	client, err := writeback.DialTCP(addr, 247)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.PushFirstHour(sc); err != nil {
		return err
	}
	logger.Printf("pushed first-hour setpoints to %s", addr)
	return nil
}

func printSummary(name, status string, costs solver.CostBreakdown, elapsed time.Duration, nodes int) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Scenario", "Status", "Objective", "Gas", "Power", "H2", "Heat Revenue", "Net", "Nodes", "Seconds"})
	t.AppendRow(table.Row{
		name, status,
		fmt.Sprintf("%.2f", costs.Objective), fmt.Sprintf("%.2f", costs.GasCosts),
		fmt.Sprintf("%.2f", costs.PowerCosts), fmt.Sprintf("%.2f", costs.HydrogenCosts),
		fmt.Sprintf("%.2f", costs.HeatRevenue), fmt.Sprintf("%.2f", costs.NetTotal),
		nodes, fmt.Sprintf("%.1f", elapsed.Seconds()),
	})
	t.Render()
}

// runParallel re-invokes this same binary once per scenario with a
// single --config, capping concurrency at parallel, mirroring spec.md
// 5's "fork independent processes with distinct output directories"
// resource model instead of sharing solver state across goroutines.
func runParallel(ctx context.Context, scenarioFiles []string, parallel int, logger *log.Logger) int {
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	var failedCount int32

	exe, err := os.Executable()
	if err != nil {
		logger.Printf("error: resolving own executable path: %v", err)
		return failureExitCode
	}

	for _, f := range scenarioFiles {
		f := f
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			cmd := exec.CommandContext(ctx, exe, "--config", f)
			cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
			if err := cmd.Run(); err != nil {
				logger.Printf("scenario %q: subprocess failed: %v", f, err)
				atomic.AddInt32(&failedCount, 1)
			}
		}()
	}
	wg.Wait()

	if failedCount > 0 {
		return failureExitCode
	}
	return successExitCode
}

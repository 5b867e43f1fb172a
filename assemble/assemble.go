// Package assemble builds the MILP in the dependency order spec.md 4.D
// specifies: time set -> exogenous parameters -> instantiate assets ->
// open all ports -> register arcs -> composer -> objective. It lives
// outside package plant because it must import both plant and asset, and
// asset already imports plant.
package assemble

import (
	"fmt"

	"github.com/devskill-org/plant-dispatch/asset"
	"github.com/devskill-org/plant-dispatch/carrier"
	"github.com/devskill-org/plant-dispatch/config"
	"github.com/devskill-org/plant-dispatch/ingest"
	"github.com/devskill-org/plant-dispatch/plant"
	"github.com/devskill-org/plant-dispatch/validate"
)

// Scenario bundles the assembled model together with every asset handle
// and exogenous price series the solver output writer needs afterward.
type Scenario struct {
	Model *plant.Model

	CHP1, CHP2         *asset.CHP
	HPStage1, HPStage2 *asset.HeatPump
	PV                 *asset.PV
	SolarThermal       *asset.SolarThermal
	Battery            *asset.Battery
	HeatStorage        *asset.Storage
	HydrogenStorage    *asset.Storage
	GeothermalStore    *asset.Storage
	Stratified         *asset.StratifiedStore
	HeatCoupling       *asset.HeatLocalCoupling

	ElectricalBus, NaturalGasBus, HydrogenBus *asset.CarrierBus
	HeatBus, LocalHeatBus, WasteHeatBus       *asset.CarrierBus

	GasPrice, PowerPrice, H2Price carrier.Series

	// Warnings collects non-fatal notices surfaced during assembly, such as
	// an admixture-specific CHP parameter file falling back to the base
	// file (spec.md 4.F).
	Warnings []string
}

// series reads a timeseries parameter by name from cfg, falling back to a
// constant-valued series when the config omits it. Missing *required*
// series are the caller's responsibility to reject via validate.
func series(cfg *config.Config, scenario, name string, hours int, constant float64) (carrier.Series, error) {
	spec, ok := cfg.Timeseries[name]
	if !ok {
		s := carrier.NewSeries(hours)
		for t := 1; t <= hours; t++ {
			s[t] = constant
		}
		return s, nil
	}
	if err := validate.CheckFileExists(scenario, spec.File); err != nil {
		return nil, err
	}
	vals, err := ingest.Timeseries(spec.File, hours)
	if err != nil {
		return nil, validate.New(validate.InputMissing, scenario, err)
	}
	return carrier.Series(vals), nil
}

// envelope loads an asset parameter table if cfg names one, else returns
// nil so callers fall back to their own defaults.
func envelope(cfg *config.Config, scenario, assetName string) (map[string]map[string]float64, error) {
	path, ok := cfg.AssetParameterTables[assetName]
	if !ok {
		return nil, nil
	}
	if err := validate.CheckFileExists(scenario, path); err != nil {
		return nil, err
	}
	table, err := ingest.ParameterTable(path)
	if err != nil {
		return nil, validate.New(validate.InputMissing, scenario, err)
	}
	return table, nil
}

// chpEnvelope loads a CHP's parameter table, first resolving the
// admixture-specific file variant via validate.ResolveCHPParamsFile
// (spec.md 4.F's chp_h2_{30,50,100}.csv naming convention), falling back
// to the base file with a recorded warning if the variant is missing.
func chpEnvelope(cfg *config.Config, scenario, assetName string, admixture float64, warnings *[]string) (map[string]map[string]float64, error) {
	path, ok := cfg.AssetParameterTables[assetName]
	if !ok {
		return nil, nil
	}
	resolved, warn := validate.ResolveCHPParamsFile(path, admixture)
	if warn != "" {
		*warnings = append(*warnings, warn)
	}
	if err := validate.CheckFileExists(scenario, resolved); err != nil {
		return nil, err
	}
	table, err := ingest.ParameterTable(resolved)
	if err != nil {
		return nil, validate.New(validate.InputMissing, scenario, err)
	}
	return table, nil
}

func get(table map[string]map[string]float64, col, row string, def float64) float64 {
	if v, ok := ingest.Scalar(table, col, row); ok {
		return v
	}
	return def
}

// checkTableColumns implements spec.md 4.F's option-dict validation: every
// column name in a loaded asset parameter table must appear in that
// asset's documented whitelist, or the scenario is rejected as
// ConfigInvalid before the model is ever built.
func checkTableColumns(scenario, assetName string, table map[string]map[string]float64, allowed ...string) error {
	if table == nil {
		return nil
	}
	got := make(map[string]struct{}, len(table))
	for col := range table {
		got[col] = struct{}{}
	}
	if err := asset.CheckOptions(assetName, got, allowed...); err != nil {
		return validate.New(validate.ConfigInvalid, scenario, err)
	}
	return nil
}

// Assemble builds a full Scenario from a validated config.
func Assemble(scenarioName string, cfg *config.Config) (*Scenario, error) {
	hours := cfg.Hours
	m := plant.NewModel(hours)
	sc := &Scenario{Model: m}

	gasPrice, err := series(cfg, scenarioName, "gas_price", hours, 30.0)
	if err != nil {
		return nil, err
	}
	powerPrice, err := series(cfg, scenarioName, "power_price", hours, 80.0)
	if err != nil {
		return nil, err
	}
	h2Price, err := series(cfg, scenarioName, "hydrogen_price", hours, cfg.Parameters["H2_PRICE"])
	if err != nil {
		return nil, err
	}
	heatDemand, err := series(cfg, scenarioName, "heat_demand", hours, 0)
	if err != nil {
		return nil, err
	}
	localHeatDemand, err := series(cfg, scenarioName, "local_heat_demand", hours, 0)
	if err != nil {
		return nil, err
	}
	pvProfile, err := series(cfg, scenarioName, "pv_profile", hours, 0)
	if err != nil {
		return nil, err
	}
	stProfile, err := series(cfg, scenarioName, "solar_thermal_profile", hours, 0)
	if err != nil {
		return nil, err
	}
	sourceTemp, err := series(cfg, scenarioName, "source_temp", hours, 281.15)
	if err != nil {
		return nil, err
	}
	sinkTemp, err := series(cfg, scenarioName, "sink_temp", hours, 313.15)
	if err != nil {
		return nil, err
	}
	sc.GasPrice, sc.PowerPrice, sc.H2Price = gasPrice, powerPrice, h2Price

	admix1 := cfg.Parameters["HYDROGEN_ADMIXTURE_CHP_1"]
	admix2 := cfg.Parameters["HYDROGEN_ADMIXTURE_CHP_2"]
	if err := validate.CheckAdmixture(scenarioName, admix1); err != nil {
		return nil, err
	}
	if err := validate.CheckAdmixture(scenarioName, admix2); err != nil {
		return nil, err
	}

	chp1Table, err := chpEnvelope(cfg, scenarioName, "chp_1", admix1, &sc.Warnings)
	if err != nil {
		return nil, err
	}
	if err := checkTableColumns(scenarioName, "chp_1", chp1Table, "power", "gas", "heat", "co2", "waste_heat", "forced_operation_time"); err != nil {
		return nil, err
	}
	chp2Table, err := chpEnvelope(cfg, scenarioName, "chp_2", admix2, &sc.Warnings)
	if err != nil {
		return nil, err
	}
	if err := checkTableColumns(scenarioName, "chp_2", chp2Table, "power", "gas", "heat", "co2", "waste_heat", "forced_operation_time"); err != nil {
		return nil, err
	}

	sc.CHP1, err = asset.NewCHP("chp_1", m, chpParamsFromTable(chp1Table, admix1))
	if err != nil {
		return nil, validate.New(validate.ConfigInvalid, scenarioName, err)
	}
	sc.CHP2, err = asset.NewCHP("chp_2", m, chpParamsFromTable(chp2Table, admix2))
	if err != nil {
		return nil, validate.New(validate.ConfigInvalid, scenarioName, err)
	}

	hp1Table, err := envelope(cfg, scenarioName, "heat_pump_stage1")
	if err != nil {
		return nil, err
	}
	if err := checkTableColumns(scenarioName, "heat_pump_stage1", hp1Table, "heat_input"); err != nil {
		return nil, err
	}
	hp2Table, err := envelope(cfg, scenarioName, "heat_pump_stage2")
	if err != nil {
		return nil, err
	}
	if err := checkTableColumns(scenarioName, "heat_pump_stage2", hp2Table, "heat_input"); err != nil {
		return nil, err
	}
	sc.HPStage1, err = asset.NewHeatPump("heat_pump_stage1", m, heatPumpParamsFromTable(1, hp1Table, sourceTemp, sinkTemp))
	if err != nil {
		return nil, err
	}
	sc.HPStage2, err = asset.NewHeatPump("heat_pump_stage2", m, heatPumpParamsFromTable(2, hp2Table, sourceTemp, sinkTemp))
	if err != nil {
		return nil, err
	}

	pvTable, err := envelope(cfg, scenarioName, "pv")
	if err != nil {
		return nil, err
	}
	if err := checkTableColumns(scenarioName, "pv", pvTable, "power", "efficiency"); err != nil {
		return nil, err
	}
	sc.PV = asset.NewPV("pv", m, asset.PVParams{
		InstalledPower:     get(pvTable, "power", "max", 20),
		InverterEfficiency: get(pvTable, "efficiency", "value", 0.97),
		Profile:            pvProfile,
	})
	sc.SolarThermal = asset.NewSolarThermal("solar_thermal", m, asset.SolarThermalParams{Profile: stProfile})

	battTable, err := envelope(cfg, scenarioName, "battery")
	if err != nil {
		return nil, err
	}
	if err := checkTableColumns(scenarioName, "battery", battTable, "power", "content", "cyclic_behaviour"); err != nil {
		return nil, err
	}
	sc.Battery = asset.NewBattery("battery", m, asset.BatteryParams{
		MaxPower:        get(battTable, "power", "max", 5),
		MinContent:      get(battTable, "content", "min", 0),
		MaxContent:      get(battTable, "content", "max", 20),
		InitialContent:  get(battTable, "content", "initial", 0),
		CyclicBehaviour: int(get(battTable, "cyclic_behaviour", "value", 0)),
	})

	heatStoreTable, err := envelope(cfg, scenarioName, "heat_storage")
	if err != nil {
		return nil, err
	}
	if err := checkTableColumns(scenarioName, "heat_storage", heatStoreTable, "flow", "content"); err != nil {
		return nil, err
	}
	sc.HeatStorage = asset.NewHeatStorage("heat_storage", m, asset.StorageParams{
		MaxFlow:        get(heatStoreTable, "flow", "max", 10),
		MinContent:     get(heatStoreTable, "content", "min", 0),
		MaxContent:     get(heatStoreTable, "content", "max", 200),
		InitialContent: get(heatStoreTable, "content", "initial", 0),
	})

	h2StoreTable, err := envelope(cfg, scenarioName, "hydrogen_storage")
	if err != nil {
		return nil, err
	}
	if err := checkTableColumns(scenarioName, "hydrogen_storage", h2StoreTable, "flow", "content"); err != nil {
		return nil, err
	}
	sc.HydrogenStorage = asset.NewHydrogenStorage("hydrogen_storage", m, asset.StorageParams{
		MaxFlow:        get(h2StoreTable, "flow", "max", 10),
		MinContent:     get(h2StoreTable, "content", "min", 0),
		MaxContent:     get(h2StoreTable, "content", "max", 200),
		InitialContent: get(h2StoreTable, "content", "initial", 0),
	})

	geoTable, err := envelope(cfg, scenarioName, "geothermal_store")
	if err != nil {
		return nil, err
	}
	if err := checkTableColumns(scenarioName, "geothermal_store", geoTable, "flow", "content", "k_loss", "relax_exclusivity", "force_active"); err != nil {
		return nil, err
	}
	sc.GeothermalStore = asset.NewGeothermalStore("geothermal_store", m, asset.StorageParams{
		MaxFlow:              get(geoTable, "flow", "max", 5),
		MinContent:           get(geoTable, "content", "min", 0),
		MaxContent:           get(geoTable, "content", "max", 500),
		InitialContent:       get(geoTable, "content", "initial", 0),
		KLoss:                get(geoTable, "k_loss", "value", 0.01),
		RelaxExclusivity:     get(geoTable, "relax_exclusivity", "value", 0) != 0,
		ForceActiveEveryHour: get(geoTable, "force_active", "value", 0) != 0,
	})

	stratTable, err := envelope(cfg, scenarioName, "stratified_store")
	if err != nil {
		return nil, err
	}
	if err := checkTableColumns(scenarioName, "stratified_store", stratTable, "heat", "seasonal_restriction"); err != nil {
		return nil, err
	}
	sc.Stratified = asset.NewStratifiedStore("stratified_store", m, asset.StratifiedStoreParams{
		HeatMax:             get(stratTable, "heat", "max", cfg.Parameters["INSTALLED_ST_POWER"]),
		SeasonalRestriction: get(stratTable, "seasonal_restriction", "value", 1) != 0 && hasKnownWinterHours(hours),
	})

	sc.ElectricalBus = asset.NewCarrierBus("electrical_bus", m, asset.BusParams{Carrier: carrier.Power, MaxFlow: 1e9, HasFeedin: true})
	sc.NaturalGasBus = asset.NewCarrierBus("natural_gas_bus", m, asset.BusParams{Carrier: carrier.NaturalGas, MaxFlow: 1e9})
	sc.HydrogenBus = asset.NewCarrierBus("hydrogen_bus", m, asset.BusParams{Carrier: carrier.Hydrogen, MaxFlow: 1e9})
	sc.WasteHeatBus = asset.NewCarrierBus("waste_heat_bus", m, asset.BusParams{Carrier: carrier.WasteHeat, MaxFlow: 1e9})
	sc.HeatBus = asset.NewCarrierBus("heat_bus", m, asset.BusParams{Carrier: carrier.Heat, MaxFlow: 1e9, HasFeedin: true})
	sc.LocalHeatBus = asset.NewCarrierBus("local_heat_bus", m, asset.BusParams{Carrier: carrier.LocalHeat, MaxFlow: 1e9, HasFeedin: true})

	sc.HeatCoupling = asset.NewHeatLocalCoupling("heat_local_coupling", m, asset.DefaultHeatLocalCoupling(), sc.Stratified.QZ1FW)

	comp := plant.NewComposer(m)
	comp.AddBus(plant.NewBus("electrical", carrier.Power))
	comp.AddBus(plant.NewBus("natural_gas", carrier.NaturalGas))
	comp.AddBus(plant.NewBus("hydrogen", carrier.Hydrogen))
	comp.AddBus(plant.NewBus("waste_heat", carrier.WasteHeat))
	comp.AddBus(plant.NewBus("st_heat", carrier.STHeat))
	comp.AddBus(plant.NewBus("wp_heat", carrier.WPHeat))
	comp.AddBus(plant.NewDemandBus("heat", carrier.Heat, heatDemand))
	comp.AddBus(plant.NewDemandBus("local_heat", carrier.LocalHeat, localHeatDemand))

	assets := []asset.Asset{
		sc.CHP1, sc.CHP2, sc.HPStage1, sc.HPStage2, sc.PV, sc.SolarThermal,
		sc.Battery, sc.HeatStorage, sc.HydrogenStorage, sc.GeothermalStore,
		sc.Stratified, sc.HeatCoupling,
		sc.ElectricalBus, sc.NaturalGasBus, sc.HydrogenBus, sc.WasteHeatBus,
		sc.HeatBus, sc.LocalHeatBus,
	}
	busForCarrier := map[carrier.Carrier]string{
		carrier.Power:      "electrical",
		carrier.NaturalGas: "natural_gas",
		carrier.Hydrogen:   "hydrogen",
		carrier.Heat:       "heat",
		carrier.LocalHeat:  "local_heat",
		carrier.WasteHeat:  "waste_heat",
		carrier.STHeat:     "st_heat",
		carrier.WPHeat:     "wp_heat",
	}
	for _, a := range assets {
		for _, p := range a.Ports() {
			// NWExcessHeat/FWHeat never route through the composer: the
			// stratified store's Z1->district outflow is reconciled onto the
			// heat bus via HeatLocalCoupling's own alias equality instead, so
			// the bare NWExcessHeat/FWHeat ports carry no bus of their own.
			if p.Carrier == carrier.NWExcessHeat || p.Carrier == carrier.FWHeat {
				continue
			}
			busName, ok := busForCarrier[p.Carrier]
			if !ok {
				return nil, fmt.Errorf("assemble: asset %q: no bus registered for carrier %s", a.Name(), p.Carrier)
			}
			if err := comp.Connect(busName, p); err != nil {
				return nil, err
			}
		}
	}
	if err := comp.Build(); err != nil {
		return nil, err
	}

	asset.AnnualLocalShareCovenant(m, "local_heat_covenant", sc.HeatCoupling.FWtoNW, localHeatDemand)

	co2Price := cfg.Parameters["CO2_PRICE"]
	heatPrice := cfg.Parameters["HEAT_PRICE"]
	useConstH2 := cfg.UsesConstantH2Price()
	h2PriceScalar := cfg.Parameters["H2_PRICE"]

	for t := 1; t <= hours; t++ {
		m.AddObjective(sc.NaturalGasBus.Supply.Ref(t), gasPrice.At(t))
		m.AddObjective(sc.CHP1.CO2.Ref(t), co2Price)
		m.AddObjective(sc.CHP2.CO2.Ref(t), co2Price)
		m.AddObjective(sc.ElectricalBus.Balance.Ref(t), powerPrice.At(t))
		if useConstH2 {
			m.AddObjective(sc.HydrogenBus.Supply.Ref(t), h2PriceScalar)
		} else {
			m.AddObjective(sc.HydrogenBus.Supply.Ref(t), h2Price.At(t))
		}
		m.AddObjective(sc.HeatBus.Feedin.Ref(t), -heatPrice)
	}

	return sc, nil
}

func hasKnownWinterHours(hours int) bool {
	switch hours {
	case 168, 8760, 8784:
		return true
	default:
		return false
	}
}

func chpParamsFromTable(t map[string]map[string]float64, admixture float64) asset.CHPParams {
	return asset.CHPParams{
		MinPower: get(t, "power", "min", 5), MaxPower: get(t, "power", "max", 50),
		MinGas: get(t, "gas", "min", 10), MaxGas: get(t, "gas", "max", 120),
		MinHeat: get(t, "heat", "min", 6), MaxHeat: get(t, "heat", "max", 55),
		MinCO2: get(t, "co2", "min", 1), MaxCO2: get(t, "co2", "max", 12),
		MinWasteHeat: get(t, "waste_heat", "min", 0.5), MaxWasteHeat: get(t, "waste_heat", "max", 5),
		HydrogenAdmixture:   admixture,
		ForcedOperationHours: int(get(t, "forced_operation_time", "value", 0)),
	}
}

func heatPumpParamsFromTable(stage int, t map[string]map[string]float64, sourceTemp, sinkTemp carrier.Variable) asset.HeatPumpParams {
	return asset.HeatPumpParams{
		Stage:        stage,
		MinHeatInput: get(t, "heat_input", "min", 0),
		MaxHeatInput: get(t, "heat_input", "max", 2),
		R:            488,
		H1:           1480,
		H2:           1625,
		H4:           395,
		P1:           5.5e5,
		Z:            6,
		N:            1500.0 / 60.0,
		EtaEl:        0.9,
		SourceTemp:   sourceTemp,
		SinkTemp:     sinkTemp,
	}
}

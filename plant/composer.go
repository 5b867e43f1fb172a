package plant

import (
	"fmt"

	"github.com/devskill-org/plant-dispatch/carrier"
)

// refSeries is implemented by any carrier.Variable that is backed by MILP
// decision variables rather than a plain exogenous constant; the composer
// needs the underlying variable index to build a constraint row.
type refSeries interface {
	carrier.Variable
	Ref(t int) int
}

// Bus is a conservation point for one carrier: it has no internal state
// beyond the ports connected to it and, for demand-terminated buses
// (heat, local_heat), an exogenous demand profile pinning its balance.
type Bus struct {
	Name    string
	Carrier carrier.Carrier
	Demand  carrier.Variable // nil => 0 for every hour
}

// NewBus declares a bus with no demand pinning (electrical, natural_gas,
// hydrogen, waste_heat).
func NewBus(name string, c carrier.Carrier) *Bus {
	return &Bus{Name: name, Carrier: c}
}

// NewDemandBus declares a bus whose balance is pinned against an exogenous
// demand profile (heat, local_heat).
func NewDemandBus(name string, c carrier.Carrier, demand carrier.Variable) *Bus {
	return &Bus{Name: name, Carrier: c, Demand: demand}
}

func (b *Bus) demandAt(t int) float64 {
	if b.Demand == nil {
		return 0
	}
	return b.Demand.At(t)
}

// Composer federates asset ports into per-bus, per-carrier conservation
// constraints. Assets register their ports via Connect; after every asset
// has registered, Build materializes one row per (bus, carrier, hour):
//
//	sum_{p in ports(bus)} sign(p) * p.Var(t)  ==  demand(t)
//
// Arcs are directional only in labeling; the actual constraint is
// carrier-level conservation on the bus, exactly as spec.md 4.C specifies.
type Composer struct {
	model *Model
	buses map[string]*Bus
	ports map[string][]carrier.Port // bus name -> connected ports
}

// NewComposer creates a composer bound to the given model; constraints it
// builds are added directly to that model.
func NewComposer(m *Model) *Composer {
	return &Composer{model: m, buses: map[string]*Bus{}, ports: map[string][]carrier.Port{}}
}

// AddBus registers a bus with the composer.
func (c *Composer) AddBus(b *Bus) {
	c.buses[b.Name] = b
}

// Bus looks up a previously registered bus by name.
func (c *Composer) Bus(name string) (*Bus, bool) {
	b, ok := c.buses[name]
	return b, ok
}

// Connect binds a port to a bus by name, appending it to that bus's port
// list. It fails with
// ErrCarrierMismatch if the port's carrier does not match the bus's
// declared carrier (spec.md 4.A: "The composer forbids cross-carrier
// arcs").
func (c *Composer) Connect(busName string, p carrier.Port) error {
	b, ok := c.buses[busName]
	if !ok {
		return fmt.Errorf("plant: connect: unknown bus %q", busName)
	}
	if p.Carrier != b.Carrier {
		return &carrier.ErrCarrierMismatch{
			Bus: busName, BusCarrier: b.Carrier,
			PortOwner: p.Owner, PortCarrier: p.Carrier,
		}
	}
	c.ports[busName] = append(c.ports[busName], p)
	return nil
}

// Build materializes the per-hour conservation constraints for every
// registered bus. Must be called after every asset has connected its
// ports and before the model is handed to the solver.
func (c *Composer) Build() error {
	for name, b := range c.buses {
		ports := c.ports[name]
		for t := 1; t <= c.model.Hours; t++ {
			coef := map[int]float64{}
			for _, p := range ports {
				rs, ok := p.Var.(refSeries)
				if !ok {
					return fmt.Errorf("plant: bus %q: port from %q carries a non-decision variable at t=%d", name, p.Owner, t)
				}
				ref := rs.Ref(t)
				coef[ref] += p.Sign()
			}
			if len(coef) == 0 {
				continue // no asset ever connected to this bus/hour; nothing to conserve
			}
			rowName := fmt.Sprintf("conserve[%s,%d]", name, t)
			c.model.AddRow(rowName, EQ, b.demandAt(t), coef)
		}
	}
	return nil
}

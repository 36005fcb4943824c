package policy

import (
	"fmt"

	"github.com/spec-kit/fleet-maintenance/internal/calendar"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	"github.com/spec-kit/fleet-maintenance/internal/sla"
	sm "github.com/spec-kit/fleet-maintenance/internal/statemachine"
)

// Kernel bundles every validated, immutable business-rule component. It is
// built once at startup and shared by all requests.
type Kernel struct {
	Calendar      *calendar.Calendar
	Clock         *sla.Clock
	Incidents     *sm.Machine[sm.IncidentState]
	Inventory     *sm.Machine[sm.InventoryState]
	Assets        *sm.Machine[sm.AssetState]
	IncidentGuard *sm.RoleGuard[sm.IncidentState]
	Permissions   *permission.Matrix
	Routes        *permission.Routes
}

// Build validates f and assembles the kernel. Any invalid section aborts.
func Build(f *File) (*Kernel, error) {
	calCfg, err := f.CalendarConfig()
	if err != nil {
		return nil, err
	}
	cal, err := calendar.New(calCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}

	fallback := f.SLA.DefaultPriority
	if fallback == "" {
		fallback = sla.PriorityMedia
	}
	table, err := sla.NewTable(f.SLA.Targets, fallback)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}

	matrix := permission.DefaultMatrix()
	if f.Permissions != nil {
		if matrix, err = permission.NewMatrix(f.Permissions); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
		}
	}
	routes := permission.DefaultRoutes()
	if f.Routes != nil {
		if routes, err = permission.NewRoutes(f.Routes); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
		}
	}

	incidents := sm.NewIncidentMachine()
	guard, err := sm.NewIncidentGuard(incidents)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}

	return &Kernel{
		Calendar:      cal,
		Clock:         sla.NewClock(cal, table),
		Incidents:     incidents,
		Inventory:     sm.NewInventoryMachine(),
		Assets:        sm.NewAssetMachine(),
		IncidentGuard: guard,
		Permissions:   matrix,
		Routes:        routes,
	}, nil
}

// FromPath builds the kernel from a policy file, or from the defaults when
// path is empty.
func FromPath(path string) (*Kernel, error) {
	f := Default()
	if path != "" {
		var err error
		if f, err = Load(path); err != nil {
			return nil, err
		}
	}
	return Build(f)
}

// MustDefault builds the kernel from the built-in defaults.
func MustDefault() *Kernel {
	k, err := Build(Default())
	if err != nil {
		panic(err)
	}
	return k
}

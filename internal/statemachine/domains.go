package statemachine

// IncidentState is the lifecycle state of an incident.
type IncidentState string

const (
	IncidentNueva          IncidentState = "nueva"
	IncidentEnAnalisis     IncidentState = "en_analisis"
	IncidentEnIntervencion IncidentState = "en_intervencion"
	IncidentResuelta       IncidentState = "resuelta"
	IncidentCerrada        IncidentState = "cerrada"
	IncidentReabierta      IncidentState = "reabierta"
)

// InventoryState is the lifecycle state of an inventory item.
type InventoryState string

const (
	InventoryInstalado  InventoryState = "instalado"
	InventoryAlmacen    InventoryState = "almacen"
	InventoryReparacion InventoryState = "reparacion"
	InventoryBaja       InventoryState = "baja"
)

// AssetState is the lifecycle state of a fleet asset (a bus).
type AssetState string

const (
	AssetOperativo AssetState = "operativo"
	AssetEnTaller  AssetState = "en_taller"
	AssetAveriado  AssetState = "averiado"
	AssetBaja      AssetState = "baja"
)

const (
	DomainIncident  = "incident"
	DomainInventory = "inventory"
	DomainAsset     = "asset"
)

func IncidentStates() []IncidentState {
	return []IncidentState{IncidentNueva, IncidentEnAnalisis, IncidentEnIntervencion,
		IncidentResuelta, IncidentCerrada, IncidentReabierta}
}

// IncidentTransitions returns a fresh copy of the incident table. Reopening is
// the only way back from cerrada.
func IncidentTransitions() Table[IncidentState] {
	return Table[IncidentState]{
		IncidentNueva:          {IncidentEnAnalisis, IncidentCerrada},
		IncidentEnAnalisis:     {IncidentEnIntervencion, IncidentNueva},
		IncidentEnIntervencion: {IncidentResuelta, IncidentEnAnalisis},
		IncidentResuelta:       {IncidentCerrada, IncidentReabierta},
		IncidentCerrada:        {IncidentReabierta},
		IncidentReabierta:      {IncidentEnAnalisis},
	}
}

func InventoryStates() []InventoryState {
	return []InventoryState{InventoryInstalado, InventoryAlmacen, InventoryReparacion, InventoryBaja}
}

// InventoryTransitions returns a fresh copy of the inventory item table.
func InventoryTransitions() Table[InventoryState] {
	return Table[InventoryState]{
		InventoryInstalado:  {InventoryAlmacen, InventoryReparacion, InventoryBaja},
		InventoryAlmacen:    {InventoryInstalado, InventoryReparacion, InventoryBaja},
		InventoryReparacion: {InventoryAlmacen, InventoryBaja},
		InventoryBaja:       {},
	}
}

func AssetStates() []AssetState {
	return []AssetState{AssetOperativo, AssetEnTaller, AssetAveriado, AssetBaja}
}

// AssetTransitions returns a fresh copy of the asset table.
func AssetTransitions() Table[AssetState] {
	return Table[AssetState]{
		AssetOperativo: {AssetEnTaller, AssetAveriado, AssetBaja},
		AssetEnTaller:  {AssetOperativo, AssetAveriado, AssetBaja},
		AssetAveriado:  {AssetEnTaller, AssetBaja},
		AssetBaja:      {},
	}
}

func NewIncidentMachine() *Machine[IncidentState] {
	return MustNew(DomainIncident, IncidentStates(), IncidentTransitions())
}

func NewInventoryMachine() *Machine[InventoryState] {
	return MustNew(DomainInventory, InventoryStates(), InventoryTransitions())
}

func NewAssetMachine() *Machine[AssetState] {
	return MustNew(DomainAsset, AssetStates(), AssetTransitions())
}

// IsOpen reports whether an incident still requires action.
func (s IncidentState) IsOpen() bool {
	switch s {
	case IncidentNueva, IncidentEnAnalisis, IncidentEnIntervencion, IncidentReabierta:
		return true
	}
	return false
}

// IsClosed reports whether an incident is finished (resolved or closed).
func (s IncidentState) IsClosed() bool {
	return s == IncidentResuelta || s == IncidentCerrada
}

// IsAvailable reports whether an asset can be in service.
func (s AssetState) IsAvailable() bool { return s == AssetOperativo }

// IsNonOperational reports whether the asset counts as out of service.
func (s AssetState) IsNonOperational() bool { return s == AssetEnTaller || s == AssetAveriado }

// IsAvailable reports whether an item can be installed.
func (s InventoryState) IsAvailable() bool { return s == InventoryAlmacen }

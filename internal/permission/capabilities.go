package permission

// DetailLevel names how much information a role is shown.
type DetailLevel string

const (
	DetailOperativo              DetailLevel = "operativo"
	DetailFuncionalTactico       DetailLevel = "funcional-tactico"
	DetailContractualEstrategico DetailLevel = "contractual-estrategico"
	DetailTecnicoAdministrativo  DetailLevel = "tecnico-administrativo"
)

// DetailConfig is what a detail level unlocks.
type DetailConfig struct {
	ShowCosts             bool `json:"show_costs"`
	ShowSLAPenalties      bool `json:"show_sla_penalties"`
	ShowContractDetails   bool `json:"show_contract_details"`
	ShowOtherTenants      bool `json:"show_other_tenants"`
	ShowTechnicianMetrics bool `json:"show_technician_metrics"`
	ShowAuditTrail        bool `json:"show_audit_trail"`
	MaxHistoryDays        int  `json:"max_history_days"`
}

// Detail returns the configuration of a level; unknown levels get the most
// restrictive one.
func Detail(level DetailLevel) DetailConfig {
	switch level {
	case DetailFuncionalTactico:
		return DetailConfig{
			ShowCosts:             true,
			ShowTechnicianMetrics: true,
			ShowAuditTrail:        true,
			MaxHistoryDays:        365,
		}
	case DetailContractualEstrategico:
		return DetailConfig{
			ShowSLAPenalties:    true,
			ShowContractDetails: true,
			ShowOtherTenants:    true,
			ShowAuditTrail:      true,
			MaxHistoryDays:      1825,
		}
	case DetailTecnicoAdministrativo:
		return DetailConfig{
			ShowCosts:             true,
			ShowSLAPenalties:      true,
			ShowContractDetails:   true,
			ShowOtherTenants:      true,
			ShowTechnicianMetrics: true,
			ShowAuditTrail:        true,
			MaxHistoryDays:        1825,
		}
	default:
		return DetailConfig{MaxHistoryDays: 30}
	}
}

// Definition describes a role for display and ranking.
type Definition struct {
	Role        Role        `json:"role"`
	Label       string      `json:"label"`
	ShortLabel  string      `json:"short_label"`
	Level       int         `json:"level"`
	DetailLevel DetailLevel `json:"detail_level"`
}

// DefinitionOf returns the definition of r and whether r is known.
func DefinitionOf(r Role) (Definition, bool) {
	switch r {
	case RoleAdmin:
		return Definition{r, "Administrador del Sistema", "Admin", 100, DetailTecnicoAdministrativo}, true
	case RoleDFG:
		return Definition{r, "Consorcio / Administración Pública", "DFG", 80, DetailContractualEstrategico}, true
	case RoleOperador:
		return Definition{r, "Operador de Transporte", "Operador", 60, DetailFuncionalTactico}, true
	case RoleJefeMantenimiento:
		return Definition{r, "Jefe de Mantenimiento", "Jefe Mant.", 50, DetailFuncionalTactico}, true
	case RoleTecnico:
		return Definition{r, "Técnico de Mantenimiento", "Técnico", 30, DetailOperativo}, true
	}
	return Definition{Role: r, DetailLevel: DetailOperativo}, false
}

// DetailLevelFor is the detail level of r; unknown roles get operativo.
func DetailLevelFor(r Role) DetailLevel {
	d, _ := DefinitionOf(r)
	return d.DetailLevel
}

// CanAccessAllTenants is true for roles that see every tenant's data.
func CanAccessAllTenants(r Role) bool {
	return r == RoleAdmin || r == RoleDFG
}

// IsManagerRole is true for roles that create, edit and assign work.
func IsManagerRole(r Role) bool {
	return r == RoleAdmin || r == RoleJefeMantenimiento
}

// IsReadOnlyRole is true for roles that must not mutate operational data.
func IsReadOnlyRole(r Role) bool {
	return r == RoleDFG
}

func CanViewCosts(r Role) bool { return Detail(DetailLevelFor(r)).ShowCosts }

func CanViewSLAPenalties(r Role) bool { return Detail(DetailLevelFor(r)).ShowSLAPenalties }

// MaxHistoryDays bounds how far back r may query history. It is reported
// only; callers enforce it.
func MaxHistoryDays(r Role) int { return Detail(DetailLevelFor(r)).MaxHistoryDays }

// Capabilities bundles every derived flag of a role.
type Capabilities struct {
	Role                Role        `json:"role"`
	Known               bool        `json:"known"`
	CanAccessAllTenants bool        `json:"can_access_all_tenants"`
	IsManager           bool        `json:"is_manager"`
	IsReadOnly          bool        `json:"is_read_only"`
	CanViewCosts        bool        `json:"can_view_costs"`
	CanViewSLAPenalties bool        `json:"can_view_sla_penalties"`
	MaxHistoryDays      int         `json:"max_history_days"`
	DetailLevel         DetailLevel `json:"detail_level"`
}

func CapabilitiesOf(r Role) Capabilities {
	return Capabilities{
		Role:                r,
		Known:               r.Known(),
		CanAccessAllTenants: CanAccessAllTenants(r),
		IsManager:           IsManagerRole(r),
		IsReadOnly:          IsReadOnlyRole(r),
		CanViewCosts:        CanViewCosts(r),
		CanViewSLAPenalties: CanViewSLAPenalties(r),
		MaxHistoryDays:      MaxHistoryDays(r),
		DetailLevel:         DetailLevelFor(r),
	}
}

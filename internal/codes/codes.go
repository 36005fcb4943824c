// Package codes formats and parses the human-readable identifiers of the
// maintenance domain (INC-2026-00001, PRV-0001, CAM-321-002, ...).
//
// Obtaining the next sequence number is left to a counter held by the
// caller; this package only turns numbers into codes and back.
package codes

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedCode   = errors.New("malformed code")
	ErrInvalidSequence = errors.New("invalid sequence number")
)

const (
	PrefixIncident      = "INC"
	PrefixWorkOrder     = "OT"
	PrefixPreventive    = "PRV"
	PrefixPreventiveRun = "EPR"
	PrefixMovement      = "MOV"
	PrefixBus           = "BUS"
	PrefixAsset         = "ACT"
	PrefixEquipment     = "EQP"
)

var equipmentPrefixes = map[string]string{
	"amplificador":       "AMP",
	"cpu":                "CPU",
	"licencia_software":  "LIC",
	"switch":             "SWT",
	"router":             "RTR",
	"modulo_wifi":        "WIF",
	"comunicacion":       "COM",
	"camara":             "CAM",
	"pupitre":            "PUP",
	"validadora":         "VAL",
	"ip_fija":            "IPF",
	"sim_card":           "SIM",
	"dvr":                "DVR",
	"pantalla":           "PAN",
	"contador_pasajeros": "CNT",
}

// EquipmentPrefix maps an equipment type to its code prefix, EQP when the
// type has none.
func EquipmentPrefix(equipmentType string) string {
	if p, ok := equipmentPrefixes[strings.ToLower(strings.TrimSpace(equipmentType))]; ok {
		return p
	}
	return PrefixEquipment
}

func isEquipmentPrefix(p string) bool {
	if p == PrefixEquipment {
		return true
	}
	for _, v := range equipmentPrefixes {
		if v == p {
			return true
		}
	}
	return false
}

// Kind is the entity a code identifies.
type Kind string

const (
	KindIncident   Kind = "incidencia"
	KindWorkOrder  Kind = "orden_trabajo"
	KindEquipment  Kind = "equipo"
	KindPreventive Kind = "preventivo"
	KindMovement   Kind = "movimiento"
	KindAsset      Kind = "activo"
	KindUnknown    Kind = "desconocido"
)

// KindOf classifies a code by its prefix alone.
func KindOf(code string) Kind {
	prefix, _, _ := strings.Cut(code, "-")
	switch prefix {
	case PrefixIncident:
		return KindIncident
	case PrefixWorkOrder:
		return KindWorkOrder
	case PrefixPreventive, PrefixPreventiveRun:
		return KindPreventive
	case PrefixMovement:
		return KindMovement
	case PrefixBus, PrefixAsset:
		return KindAsset
	}
	if isEquipmentPrefix(prefix) {
		return KindEquipment
	}
	return KindUnknown
}

// Code is the parsed form of any identifier. Fields a format does not carry
// are zero.
type Code struct {
	Prefix   string `json:"prefix"`
	Year     int    `json:"year,omitempty"`
	Month    int    `json:"month,omitempty"`
	Day      int    `json:"day,omitempty"`
	Scope    string `json:"scope,omitempty"`
	Sequence int    `json:"sequence"`
}

func (c Code) Kind() Kind { return KindOf(c.Prefix) }

func checkSequence(seq int) error {
	if seq < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidSequence, seq)
	}
	return nil
}

func checkYear(year int) error {
	if year < 1000 || year > 9999 {
		return fmt.Errorf("%w: year %d must have four digits", ErrInvalidSequence, year)
	}
	return nil
}

// Yearly formats PREFIX-YYYY-NNNNN.
func Yearly(prefix string, seq, year int) (string, error) {
	if err := checkSequence(seq); err != nil {
		return "", err
	}
	if err := checkYear(year); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d-%05d", prefix, year, seq), nil
}

// Incident formats INC-YYYY-NNNNN.
func Incident(seq, year int) (string, error) { return Yearly(PrefixIncident, seq, year) }

// WorkOrder formats OT-YYYY-NNNNN.
func WorkOrder(seq, year int) (string, error) { return Yearly(PrefixWorkOrder, seq, year) }

// Preventive formats PRV-NNNN.
func Preventive(seq int) (string, error) {
	if err := checkSequence(seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d", PrefixPreventive, seq), nil
}

// PreventiveRun formats EPR-YYYYMM-NNNN for an execution on date.
func PreventiveRun(seq int, date time.Time) (string, error) {
	if err := checkSequence(seq); err != nil {
		return "", err
	}
	if err := checkYear(date.Year()); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d%02d-%04d", PrefixPreventiveRun, date.Year(), int(date.Month()), seq), nil
}

// Movement formats MOV-YYYYMMDD-NNNN for a movement on date.
func Movement(seq int, date time.Time) (string, error) {
	if err := checkSequence(seq); err != nil {
		return "", err
	}
	if err := checkYear(date.Year()); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%04d", PrefixMovement, date.Format("20060102"), seq), nil
}

// BusEquipment formats <TYPE>-<BUS>-NNN: the index-th equipment of a type
// fitted to a bus.
func BusEquipment(equipmentType, busCode string, index int) (string, error) {
	if err := checkSequence(index); err != nil {
		return "", err
	}
	if busCode == "" || !allDigits(busCode) {
		return "", fmt.Errorf("%w: bus code %q must be numeric", ErrMalformedCode, busCode)
	}
	return fmt.Sprintf("%s-%s-%03d", EquipmentPrefix(equipmentType), busCode, index), nil
}

// Equipment formats <PREFIX>-NNNNNN, the tenant-wide equipment code.
func Equipment(prefix string, seq int) (string, error) {
	if err := checkSequence(seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", prefix, seq), nil
}

// Parse recognises every format produced by this package.
func Parse(code string) (Code, error) {
	parts := strings.Split(strings.TrimSpace(code), "-")
	bad := func(why string) (Code, error) {
		return Code{}, fmt.Errorf("%w: %q: %s", ErrMalformedCode, code, why)
	}
	if len(parts) < 2 || parts[0] == "" {
		return bad("missing prefix")
	}
	c := Code{Prefix: parts[0]}
	last := parts[len(parts)-1]

	switch c.Prefix {
	case PrefixIncident, PrefixWorkOrder:
		if len(parts) != 3 || len(parts[1]) != 4 || len(last) < 5 {
			return bad("want PREFIX-YYYY-NNNNN")
		}
		c.Year = number(parts[1])
	case PrefixPreventiveRun:
		if len(parts) != 3 || len(parts[1]) != 6 || len(last) < 4 {
			return bad("want EPR-YYYYMM-NNNN")
		}
		c.Year, c.Month = number(parts[1][:4]), number(parts[1][4:])
		if c.Month < 1 || c.Month > 12 {
			return bad("month out of range")
		}
	case PrefixMovement:
		if len(parts) != 3 || len(parts[1]) != 8 || len(last) < 4 {
			return bad("want MOV-YYYYMMDD-NNNN")
		}
		d, err := time.Parse("20060102", parts[1])
		if err != nil {
			return bad("invalid date")
		}
		c.Year, c.Month, c.Day = d.Year(), int(d.Month()), d.Day()
	case PrefixPreventive:
		if len(parts) != 2 || len(last) < 4 {
			return bad("want PRV-NNNN")
		}
	default:
		if !upperLetters(c.Prefix) {
			return bad("prefix must be upper-case letters")
		}
		switch len(parts) {
		case 2:
			if len(last) < 6 {
				return bad("want PREFIX-NNNNNN")
			}
		case 3:
			if parts[1] == "" || !allDigits(parts[1]) || len(last) < 3 {
				return bad("want PREFIX-BUS-NNN")
			}
			c.Scope = parts[1]
		default:
			return bad("too many parts")
		}
	}

	for _, p := range parts[1:] {
		if !allDigits(p) {
			return bad("non-numeric part")
		}
	}
	seq, err := strconv.Atoi(last)
	if err != nil || seq < 1 {
		return bad("invalid sequence")
	}
	c.Sequence = seq
	return c, nil
}

// NextYearly returns the code following last within year. The sequence
// restarts at 1 when last is empty, unparseable, uses another prefix or
// belongs to a different year.
func NextYearly(prefix, last string, year int) (string, error) {
	c, err := Parse(last)
	if err != nil || c.Prefix != prefix || c.Year != year {
		return Yearly(prefix, 1, year)
	}
	return Yearly(prefix, c.Sequence+1, year)
}

// NextIncident is NextYearly for incident codes.
func NextIncident(last string, year int) (string, error) {
	return NextYearly(PrefixIncident, last, year)
}

// NextWorkOrder is NextYearly for work-order codes.
func NextWorkOrder(last string, year int) (string, error) {
	return NextYearly(PrefixWorkOrder, last, year)
}

var (
	incidentRe  = regexp.MustCompile(`^INC-\d{4}-\d{5}$`)
	workOrderRe = regexp.MustCompile(`^OT-\d{4}-\d{5}$`)
	equipmentRe = regexp.MustCompile(`^[A-Z]{3}-\d+-\d{3}$`)
)

// ValidIncident reports whether code has the canonical INC-YYYY-NNNNN shape.
func ValidIncident(code string) bool { return incidentRe.MatchString(code) }

func ValidWorkOrder(code string) bool { return workOrderRe.MatchString(code) }

// ValidBusEquipment reports whether code has the TYPE-BUS-NNN shape.
func ValidBusEquipment(code string) bool { return equipmentRe.MatchString(code) }

// IncidentCounter names the per-year counter incident codes are drawn from.
func IncidentCounter(year int) string { return fmt.Sprintf("incidencias_%d", year) }

// WorkOrderCounter names the per-year counter work-order codes are drawn from.
func WorkOrderCounter(year int) string { return fmt.Sprintf("ordenes_trabajo_%d", year) }

// EquipmentCounter names the counter behind <PREFIX>-NNNNNN codes.
func EquipmentCounter(prefix string) string { return "equipos_" + prefix }

func number(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func upperLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return s != ""
}

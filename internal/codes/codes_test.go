package codes

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatters(t *testing.T) {
	day := time.Date(2026, time.March, 7, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"incident", func() (string, error) { return Incident(1, 2026) }, "INC-2026-00001"},
		{"incident wide", func() (string, error) { return Incident(123456, 2026) }, "INC-2026-123456"},
		{"work order", func() (string, error) { return WorkOrder(123, 2026) }, "OT-2026-00123"},
		{"preventive", func() (string, error) { return Preventive(7) }, "PRV-0007"},
		{"preventive run", func() (string, error) { return PreventiveRun(12, day) }, "EPR-202603-0012"},
		{"movement", func() (string, error) { return Movement(3, day) }, "MOV-20260307-0003"},
		{"bus equipment", func() (string, error) { return BusEquipment("camara", "321", 2) }, "CAM-321-002"},
		{"bus equipment unknown type", func() (string, error) { return BusEquipment("altavoz", "12", 1) }, "EQP-12-001"},
		{"equipment", func() (string, error) { return Equipment("VAL", 42) }, "VAL-000042"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatters_RejectBadInput(t *testing.T) {
	_, err := Incident(0, 2026)
	assert.ErrorIs(t, err, ErrInvalidSequence)
	_, err = Incident(1, 26)
	assert.ErrorIs(t, err, ErrInvalidSequence)
	_, err = Preventive(-1)
	assert.ErrorIs(t, err, ErrInvalidSequence)
	_, err = BusEquipment("camara", "A1", 1)
	assert.ErrorIs(t, err, ErrMalformedCode)
	_, err = Equipment("CAM", 0)
	assert.ErrorIs(t, err, ErrInvalidSequence)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Code
	}{
		{"INC-2026-00123", Code{Prefix: "INC", Year: 2026, Sequence: 123}},
		{"OT-2025-00001", Code{Prefix: "OT", Year: 2025, Sequence: 1}},
		{"PRV-0042", Code{Prefix: "PRV", Sequence: 42}},
		{"EPR-202611-0005", Code{Prefix: "EPR", Year: 2026, Month: 11, Sequence: 5}},
		{"MOV-20260229-0001", Code{}},
		{"MOV-20240229-0001", Code{Prefix: "MOV", Year: 2024, Month: 2, Day: 29, Sequence: 1}},
		{"CAM-321-002", Code{Prefix: "CAM", Scope: "321", Sequence: 2}},
		{"BUS-000017", Code{Prefix: "BUS", Sequence: 17}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.want.Prefix == "" {
				assert.ErrorIs(t, err, ErrMalformedCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{
		"", "INC", "INC-2026", "INC-26-00001", "INC-2026-001", "INC-2026-0000A",
		"INC-2026-00000", "EPR-202613-0001", "PRV-12", "cam-321-002", "CAM-X1-002",
		"CAM-321-02", "CAM-1-2-003", "VAL-42", "-0001",
	} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrMalformedCode, in)
	}
}

func TestYearlyRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2026))
	for i := 0; i < 1000; i++ {
		seq := 1 + rng.Intn(250000)
		year := 2000 + rng.Intn(100)
		prefix := PrefixIncident
		if i%2 == 1 {
			prefix = PrefixWorkOrder
		}

		code, err := Yearly(prefix, seq, year)
		require.NoError(t, err)
		parsed, err := Parse(code)
		require.NoError(t, err, code)
		require.Equal(t, seq, parsed.Sequence, code)
		require.Equal(t, year, parsed.Year, code)
		require.Equal(t, prefix, parsed.Prefix)
	}
}

func TestOtherFormatsRoundTrip(t *testing.T) {
	day := time.Date(2027, time.December, 31, 0, 0, 0, 0, time.UTC)
	for _, seq := range []int{1, 9, 10, 999, 1000, 9999, 10000, 123456} {
		code, err := Preventive(seq)
		require.NoError(t, err)
		c, err := Parse(code)
		require.NoError(t, err)
		assert.Equal(t, seq, c.Sequence)

		code, err = PreventiveRun(seq, day)
		require.NoError(t, err)
		c, err = Parse(code)
		require.NoError(t, err)
		assert.Equal(t, Code{Prefix: PrefixPreventiveRun, Year: 2027, Month: 12, Sequence: seq}, c)

		code, err = Movement(seq, day)
		require.NoError(t, err)
		c, err = Parse(code)
		require.NoError(t, err)
		assert.Equal(t, Code{Prefix: PrefixMovement, Year: 2027, Month: 12, Day: 31, Sequence: seq}, c)

		code, err = Equipment("SIM", seq)
		require.NoError(t, err)
		c, err = Parse(code)
		require.NoError(t, err)
		assert.Equal(t, seq, c.Sequence)
	}
}

func TestNextIncident(t *testing.T) {
	tests := []struct {
		name string
		last string
		year int
		want string
	}{
		{"first ever", "", 2026, "INC-2026-00001"},
		{"same year", "INC-2026-00041", 2026, "INC-2026-00042"},
		{"new year resets", "INC-2025-00873", 2026, "INC-2026-00001"},
		{"garbage resets", "whatever", 2026, "INC-2026-00001"},
		{"other prefix resets", "OT-2026-00010", 2026, "INC-2026-00001"},
		{"overflow widens", "INC-2026-99999", 2026, "INC-2026-100000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextIncident(tt.last, tt.year)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := NextWorkOrder("OT-2026-00009", 2026)
	require.NoError(t, err)
	assert.Equal(t, "OT-2026-00010", got)
}

func TestNextIsMonotonic(t *testing.T) {
	code := ""
	prev := 0
	for i := 0; i < 200; i++ {
		next, err := NextIncident(code, 2026)
		require.NoError(t, err)
		c, err := Parse(next)
		require.NoError(t, err)
		require.Equal(t, prev+1, c.Sequence)
		prev, code = c.Sequence, next
	}
}

func TestKindOf(t *testing.T) {
	tests := map[string]Kind{
		"INC-2026-00001":    KindIncident,
		"OT-2026-00001":     KindWorkOrder,
		"PRV-0001":          KindPreventive,
		"EPR-202601-0001":   KindPreventive,
		"MOV-20260101-0001": KindMovement,
		"CAM-321-002":       KindEquipment,
		"EQP-000001":        KindEquipment,
		"BUS-000001":        KindAsset,
		"XYZ-1":             KindUnknown,
		"":                  KindUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, KindOf(in), in)
	}
	c, err := Parse("SWT-12-001")
	require.NoError(t, err)
	assert.Equal(t, KindEquipment, c.Kind())
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidIncident("INC-2026-00001"))
	assert.False(t, ValidIncident("INC-2026-1"))
	assert.True(t, ValidWorkOrder("OT-2026-00001"))
	assert.False(t, ValidWorkOrder("INC-2026-00001"))
	assert.True(t, ValidBusEquipment("CAM-321-002"))
	assert.False(t, ValidBusEquipment("CAM-321-0002"))
}

func TestEquipmentPrefix(t *testing.T) {
	assert.Equal(t, "CNT", EquipmentPrefix("contador_pasajeros"))
	assert.Equal(t, "WIF", EquipmentPrefix(" Modulo_WiFi "))
	assert.Equal(t, "EQP", EquipmentPrefix("tostadora"))
}

func TestCounterNames(t *testing.T) {
	assert.Equal(t, "incidencias_2026", IncidentCounter(2026))
	assert.Equal(t, "ordenes_trabajo_2026", WorkOrderCounter(2026))
	assert.Equal(t, "equipos_CAM", EquipmentCounter("CAM"))
}

package termstate

import (
	"testing"

	"mtclient/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// S3: g1 hash stability — description stripped, digits as bare integer,
// tickSize as an eight-decimal string.

func TestGetHashesG1Stability(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.OnSymbolSpecificationsUpdated("0", []*models.SymbolSpecification{{
		Symbol: "EURUSD", Digits: 5, TickSize: 0.00001, Description: "Euro vs US Dollar",
	}}, nil))

	first := m.GetHashes("cloud-g1", "0")
	second := m.GetHashes("cloud-g1", "0")

	assert.Equal(t, first.Specifications, second.Specifications, "invariant 4: getHashes must be deterministic")
	assert.NotEmpty(t, first.Specifications)

	canonical := encodeG1("", anySlice([]map[string]interface{}{specMap(m.Instance("0").SpecificationsBySymbol["EURUSD"], true)}))
	assert.Equal(t, `[{"digits":5,"executionMode":"","fillingModes":[],"symbol":"EURUSD","tickSize":"0.00001000"}]`, canonical)
}

// -----------------------------------------------------------------------------
// Invariant 4: deterministic repeated invocation.

func TestGetHashesDeterministic(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.OnPositionUpdated("0", &models.Position{ID: "1", Symbol: "EURUSD", Volume: 1}))
	require.NoError(t, m.OnPositionsSynchronized("0", "s"))

	a := m.GetHashes("cloud-g2", "0")
	b := m.GetHashes("cloud-g2", "0")
	assert.Equal(t, a.Positions, b.Positions)
}

// -----------------------------------------------------------------------------
// Invariant 5: getHashes is invariant under arrival-order permutation.

func TestGetHashesOrderIndependent(t *testing.T) {
	m1 := NewManager()
	require.NoError(t, m1.OnPositionUpdated("0", &models.Position{ID: "a", Symbol: "EURUSD", Volume: 1}))
	require.NoError(t, m1.OnPositionUpdated("0", &models.Position{ID: "b", Symbol: "GBPUSD", Volume: 2}))
	require.NoError(t, m1.OnPositionsSynchronized("0", "s"))

	m2 := NewManager()
	require.NoError(t, m2.OnPositionUpdated("0", &models.Position{ID: "b", Symbol: "GBPUSD", Volume: 2}))
	require.NoError(t, m2.OnPositionUpdated("0", &models.Position{ID: "a", Symbol: "EURUSD", Volume: 1}))
	require.NoError(t, m2.OnPositionsSynchronized("0", "s"))

	assert.Equal(t, m1.GetHashes("cloud-g2", "0").Positions, m2.GetHashes("cloud-g2", "0").Positions)
}

// -----------------------------------------------------------------------------
// Uninitialized collections hash to empty string ("null hash").

func TestGetHashesNullBeforeSync(t *testing.T) {
	m := NewManager()
	h := m.GetHashes("cloud-g2", "0")
	assert.Empty(t, h.Positions)
	assert.Empty(t, h.Orders)
	assert.Empty(t, h.Specifications)
}

package certificate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vaccination(dn, sd int, product string) Vaccination {
	return Vaccination{
		Target:      "840539006",
		Product:     product,
		DoseNumber:  dn,
		SeriesDoses: sd,
		Date:        NewDate(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		Country:     "DE",
		UVCI:        "01DE/84503/1/A#B",
	}
}

func TestVaccination_Is1of2(t *testing.T) {
	assert.True(t, vaccination(1, 2, "").Is1of2())
	assert.False(t, vaccination(2, 2, "").Is1of2())
	assert.False(t, vaccination(1, 1, "").Is1of2())
	assert.False(t, vaccination(2, 1, "").Is1of2())
}

func TestVaccination_IsBoosted(t *testing.T) {
	assert.True(t, vaccination(3, 2, "").IsBoosted())
	assert.True(t, vaccination(3, 3, "").IsBoosted())
	assert.True(t, vaccination(2, 2, ProductJohnsonAndJohnson).IsBoosted())
	assert.False(t, vaccination(2, 2, "EU/1/20/1528").IsBoosted())
	assert.False(t, vaccination(1, 1, ProductJohnsonAndJohnson).IsBoosted())
}

func TestSameHolder(t *testing.T) {
	dob := NewDate(time.Date(1964, 8, 12, 0, 0, 0, 0, time.UTC))
	base := DGC{
		Name:      Name{StandardizedGivenName: "ERIKA", StandardizedFamilyName: "SCHMITT<MUSTERMANN"},
		BirthDate: dob,
	}

	t.Run("hyphen and filler variants match", func(t *testing.T) {
		variant := base
		variant.Name.StandardizedFamilyName = "SCHMITT-MUSTERMANN"
		assert.True(t, base.SameHolder(variant))

		variant.Name.StandardizedFamilyName = " schmitt mustermann "
		assert.True(t, base.SameHolder(variant))
	})

	t.Run("different birth date does not match", func(t *testing.T) {
		variant := base
		variant.BirthDate = NewDate(time.Date(1964, 8, 13, 0, 0, 0, 0, time.UTC))
		assert.False(t, base.SameHolder(variant))
	})

	t.Run("different family name does not match", func(t *testing.T) {
		variant := base
		variant.Name.StandardizedFamilyName = "MUSTERMANN"
		assert.False(t, base.SameHolder(variant))
	})
}

func TestLatestVaccination_tieBreaksOnUVCI(t *testing.T) {
	date := NewDate(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	dgc := DGC{Vaccinations: []Vaccination{
		{Date: date, UVCI: "01DE/84503/1/A"},
		{Date: date, UVCI: "01DE/84503/1/C"},
		{Date: date, UVCI: "01DE/84503/1/B"},
	}}
	latest, ok := dgc.LatestVaccination()
	require.True(t, ok)
	assert.Equal(t, "01DE/84503/1/C", latest.UVCI)
}

func TestCountryCode_prefersFirstEntry(t *testing.T) {
	dgc := DGC{Tests: []TestEntry{{Country: "ABC"}}}
	assert.Equal(t, "ABC", dgc.CountryCode())

	dgc = DGC{Recoveries: []Recovery{{Country: "XYZ"}}}
	assert.Equal(t, "XYZ", dgc.CountryCode())

	assert.Empty(t, DGC{}.CountryCode())
}

func TestDate_UnmarshalJSON(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"1964-08-12"`)))
	assert.Equal(t, time.Date(1964, 8, 12, 0, 0, 0, 0, time.UTC), d.Time)

	require.NoError(t, d.UnmarshalJSON([]byte(`"2025-06-01T10:30:00Z"`)))
	assert.Equal(t, time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC), d.Time)

	require.NoError(t, d.UnmarshalJSON([]byte(`""`)))
	assert.True(t, d.IsZero())

	assert.Error(t, d.UnmarshalJSON([]byte(`"12.08.1964"`)))
}

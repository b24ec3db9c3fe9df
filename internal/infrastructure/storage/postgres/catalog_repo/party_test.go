package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salescycle/internal/domain/catalogs/party"
	"salescycle/internal/infrastructure/storage/postgres/legacy"
)

func TestPartyFromRow(t *testing.T) {
	row := legacy.Clients.Canonicalize(map[string]any{
		"id_cliente":   int64(12),
		"nit":          "900100",
		"razon_social": "Acme S.A.S.",
		"activo":       "N",
		"plazo":        int32(45),
	})

	p := partyFromRow(party.KindClient, row)

	assert.Equal(t, "12", p.ID)
	assert.Equal(t, "900100", p.Code)
	assert.Equal(t, "Acme S.A.S.", p.Name)
	assert.False(t, p.Active)
	require.NotNil(t, p.CreditTermDays)
	assert.Equal(t, 45, p.CreditTerm())
}

func TestPartyFromRow_VendorHasNoTerm(t *testing.T) {
	row := legacy.Vendors.Canonicalize(map[string]any{
		"id":     int64(3),
		"codigo": "V-01",
		"nombre": "Ana",
		"plazo":  int32(10),
	})

	p := partyFromRow(party.KindVendor, row)

	assert.Equal(t, party.KindVendor, p.Kind)
	assert.True(t, p.Active)
	assert.Nil(t, p.CreditTermDays)
	assert.Equal(t, party.DefaultCreditTermDays, p.CreditTerm())
}

func TestNewLegacyReader_TableOverride(t *testing.T) {
	r := newLegacyReader(nil, legacy.Sites, "bodegas_v2")
	assert.Equal(t, "bodegas_v2", r.table.Name)
	assert.Equal(t, "bodegas", legacy.Sites.Name)

	sql, _, err := r.Builder().Select("*").From(r.table.Name).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM bodegas_v2", sql)
}

package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormValidate(t *testing.T) {
	ok := Form{Name: "Ada", Email: "ada@example.com", Phone: "0803", Address: "12 Broad St"}

	assert.NoError(t, ok.Validate(ModeDelivery))
	assert.NoError(t, ok.Validate(ModeReservation))

	noAddr := ok
	noAddr.Address = ""
	assert.NoError(t, noAddr.Validate(ModeReservation))

	err := noAddr.Validate(ModeDelivery)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"address"}, ve.Fields)
	assert.Equal(t, "missing or invalid fields: address", ve.Error())

	badEmail := ok
	badEmail.Email = "ada"
	require.ErrorAs(t, badEmail.Validate(ModeReservation), &ve)
	assert.Equal(t, []string{"email"}, ve.Fields)
}

func TestFormTrimmed(t *testing.T) {
	f := Form{Name: "  Ada ", Email: " ada@example.com", Phone: "0803 ", Address: "\t", Notes: " "}.trimmed()
	assert.Equal(t, Form{Name: "Ada", Email: "ada@example.com", Phone: "0803"}, f)
}

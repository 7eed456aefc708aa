package api

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhall/ledger-engine/finance"
)

// =============================================================================
// DOMAIN ERROR -> HTTP MAPPING
// =============================================================================

func TestWriteDomainError_PartialFailureCarriesResult(t *testing.T) {
	// GIVEN: An operation whose primary write landed but whose secondary
	//        effect failed
	// WHEN: The gateway maps the error
	// THEN: 200 with the primary record in data plus the warning

	rec := httptest.NewRecorder()
	writeDomainError(rec, &finance.PartialFailureWarning{
		Result:  map[string]string{"id": "tx-1"},
		Warning: "receipt email could not be sent",
		Err:     errors.New("smtp: connection refused"),
	})

	assert.Equal(t, 200, rec.Code)

	var resp DataResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "receipt email could not be sent", resp.Warning)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "tx-1", resp.Data.(map[string]any)["id"])
}

func TestWriteDomainError_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", finance.NewValidationError("amount", "is required"), 400},
		{"not refundable", finance.ErrNotRefundable, 400},
		{"not found", &finance.NotFoundError{Kind: "salary", ID: "s-1"}, 404},
		{"already refunded", finance.ErrAlreadyRefunded, 409},
		{"duplicate number", finance.ErrDuplicateNumber, 409},
		{"persistence", &finance.PersistenceError{Op: "insert", Err: errors.New("disk full")}, 500},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tc.err)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

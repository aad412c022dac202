package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Amount decoding ---

func TestAmount_UnmarshalStringAndNumber(t *testing.T) {
	cases := []struct {
		body string
		want Amount
	}{
		{`{"amount":"12.50"}`, "12.50"},
		{`{"amount":12.50}`, "12.50"},
		{`{"amount":-30}`, "-30"},
		{`{"amount":0.000000000000000001}`, "0.000000000000000001"},
		{`{"amount":null}`, ""},
		{`{"amount":"  7 "}`, "  7 "},
		{`{"amount":123456789012345678.5}`, "123456789012345678.5"},
	}
	for _, tc := range cases {
		var req struct {
			Amount Amount `json:"amount"`
		}
		require.NoError(t, json.Unmarshal([]byte(tc.body), &req), tc.body)
		assert.Equal(t, tc.want, req.Amount, tc.body)
	}
}

func TestAmount_NonNumericTokensKeptRaw(t *testing.T) {
	var req struct {
		Amount Amount `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":true}`), &req))
	assert.Equal(t, Amount("true"), req.Amount)
}

// --- decimal_amount validator ---

func TestCreateTransactionRequest_Valid(t *testing.T) {
	req := CreateTransactionRequest{
		WalletID: "7f0c6f3e-3f5a-4f4e-9d55-0a9f1d1d2b11",
		TxID:     "tx-1",
		Amount:   "-30.25",
	}
	assert.NoError(t, binding.Validator.ValidateStruct(&req))
}

func TestCreateTransactionRequest_RejectsBadAmounts(t *testing.T) {
	for _, amount := range []Amount{"1e3", "abc", "true", "1.0000000000000000001", "1000000000000000000"} {
		req := CreateTransactionRequest{
			WalletID: "7f0c6f3e-3f5a-4f4e-9d55-0a9f1d1d2b11",
			TxID:     "tx-1",
			Amount:   amount,
		}
		err := binding.Validator.ValidateStruct(&req)
		require.Error(t, err, amount)

		appErr := BindError(err)
		assert.Equal(t, apperror.CodeInvalidAmount, appErr.Code, amount)
		assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	}
}

func TestCreateTransactionRequest_MissingFields(t *testing.T) {
	err := binding.Validator.ValidateStruct(&CreateTransactionRequest{Amount: "5"})
	require.Error(t, err)

	appErr := BindError(err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Message, "wallet_id is required")
	assert.Contains(t, appErr.Message, "txid is required")
}

func TestUpdateTransactionRequest_OptionalFields(t *testing.T) {
	assert.NoError(t, binding.Validator.ValidateStruct(&UpdateTransactionRequest{}))

	bad := Amount("1e2")
	err := binding.Validator.ValidateStruct(&UpdateTransactionRequest{Amount: &bad})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidAmount, BindError(err).Code)

	notUUID := "wallet-1"
	err = binding.Validator.ValidateStruct(&UpdateTransactionRequest{WalletID: &notUUID})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeValidation, BindError(err).Code)
}

func TestBindError_MalformedJSON(t *testing.T) {
	var req CreateWalletRequest
	err := json.Unmarshal([]byte(`{"label":`), &req)
	require.Error(t, err)

	appErr := BindError(err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, "malformed request body", appErr.Message)
}

// --- SanitizeStruct ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := CreateWalletRequest{Label: "  savings  "}
	SanitizeStruct(&req)
	assert.Equal(t, "savings", req.Label)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := RenameWalletRequest{Label: "rent <script>alert('x')</script>"}
	SanitizeStruct(&req)

	assert.Contains(t, req.Label, "&lt;script&gt;")
	assert.NotContains(t, req.Label, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	txid := "  tx-9  "
	req := UpdateTransactionRequest{TxID: &txid}
	SanitizeStruct(&req)

	assert.Equal(t, "tx-9", *req.TxID)
	assert.Nil(t, req.WalletID)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

package shipper_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/cttgateway/pkg/shipper"
)

func TestShipperError_Error(t *testing.T) {
	err := shipper.NewShipperError(shipper.KindCarrierRejected, "E101", "Invalid postal code")
	assert.Equal(t, "cttexpress error (E101): Invalid postal code", err.Error())
}

func TestShipperError_ErrorWithCause(t *testing.T) {
	cause := errors.New("network timeout")
	err := shipper.NewRemoteError("API_ERROR", "API call failed").WithCause(cause)
	assert.Contains(t, err.Error(), "API call failed")
	assert.Contains(t, err.Error(), "network timeout")
	assert.True(t, errors.Is(err, cause))
}

func TestShipperError_IsSameCode(t *testing.T) {
	err1 := shipper.NewShipperError(shipper.KindCarrierRejected, "E101", "Invalid postal code")
	err2 := shipper.NewShipperError(shipper.KindCarrierRejected, "E101", "Different message")
	err3 := shipper.NewShipperError(shipper.KindCarrierRejected, "E102", "Different error")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestShipperError_IsKindSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"authentication", shipper.NewAuthError("bad secret"), shipper.ErrAuthenticationFailed},
		{"carrier rejected", shipper.NewShipperError(shipper.KindCarrierRejected, "1", "x"), shipper.ErrCarrierRejected},
		{"remote", shipper.NewRemoteError("HTTP_503", "unavailable"), shipper.ErrRemoteFailure},
		{"unsupported", shipper.NewUnsupportedError(shipper.ProtocolSOAP, "bulk tracking"), shipper.ErrUnsupportedOperation},
		{"validation", shipper.NewValidationError("MISSING_FIELDS", "x"), shipper.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("creating shipment: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
			assert.False(t, errors.Is(wrapped, shipper.ErrAccountNotFound))
		})
	}
}

func TestShipperError_KindDoesNotCrossMatch(t *testing.T) {
	err := shipper.NewRemoteError("HTTP_500", "boom")
	assert.False(t, errors.Is(err, shipper.ErrCarrierRejected))
	assert.Equal(t, shipper.KindRemoteFailure, shipper.KindOf(err))
	assert.Equal(t, shipper.ErrorKind(""), shipper.KindOf(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, shipper.IsRetryable(shipper.NewRemoteError("HTTP_503", "unavailable")))
	assert.False(t, shipper.IsRetryable(shipper.NewShipperError(shipper.KindCarrierRejected, "1", "bad")))
	assert.True(t, shipper.IsRetryable(shipper.ErrRemoteFailure))
	assert.False(t, shipper.IsRetryable(errors.New("plain")))
}

func TestCheckCarrierMessages(t *testing.T) {
	t.Run("empty list is success", func(t *testing.T) {
		assert.NoError(t, shipper.CheckCarrierMessages(nil))
	})

	t.Run("entries without code are ignored", func(t *testing.T) {
		err := shipper.CheckCarrierMessages([]shipper.CarrierMessage{{Code: "", Message: "OK"}, {Code: " "}})
		assert.NoError(t, err)
	})

	t.Run("codes are concatenated", func(t *testing.T) {
		err := shipper.CheckCarrierMessages([]shipper.CarrierMessage{
			{Code: "E1", Message: "first"},
			{Code: "", Message: "ignored"},
			{Code: "E2", Message: "second"},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, shipper.ErrCarrierRejected))

		var shipperErr *shipper.ShipperError
		require.True(t, errors.As(err, &shipperErr))
		assert.Equal(t, "E1", shipperErr.Code)
		assert.Equal(t, "E1 - first\nE2 - second", shipperErr.Message)
	})
}

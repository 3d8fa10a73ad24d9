package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"identityguard/internal/domain"
)

func TestDeviceRecord_BeforeCreate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		record         *domain.DeviceRecord
		expectIDChange bool
	}{
		{
			name:           "generates ID when empty",
			record:         &domain.DeviceRecord{Fingerprint: "fp"},
			expectIDChange: true,
		},
		{
			name:           "preserves existing ID",
			record:         &domain.DeviceRecord{ID: uuid.Must(uuid.NewV7()), Fingerprint: "fp"},
			expectIDChange: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			original := tc.record.ID
			err := tc.record.BeforeCreate(nil)
			require.NoError(t, err)

			if tc.expectIDChange {
				require.NotEqual(t, uuid.Nil, tc.record.ID)
			} else {
				require.Equal(t, original, tc.record.ID)
			}
		})
	}
}

func TestDeviceRecord_TableName(t *testing.T) {
	t.Parallel()
	require.Equal(t, "user_device_fingerprint", domain.DeviceRecord{}.TableName())
}

func TestDeviceRecord_CurrentState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		record domain.DeviceRecord
		want   domain.State
	}{
		{"inactive wins", domain.DeviceRecord{Active: false, Trusted: true}, domain.StateInactive},
		{"active untrusted", domain.DeviceRecord{Active: true, Trusted: false}, domain.StateActiveUntrusted},
		{"active trusted", domain.DeviceRecord{Active: true, Trusted: true}, domain.StateActiveTrusted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, tc.record.CurrentState())
		})
	}
}

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestVerifySettings(t *testing.T) {
	for _, tc := range []struct {
		desc          string
		settings      Settings
		expectedError string
	}{
		{
			desc:          "no backoff",
			settings:      Settings{},
			expectedError: "initial backoff must be > 0, got 0s",
		},
		{
			desc:          "no multiplier",
			settings:      Settings{InitialBackoff: time.Second},
			expectedError: "multiplier must be >= 1, got 0",
		},
		{
			desc:          "max backoff below initial",
			settings:      Settings{InitialBackoff: time.Second, Multiplier: 5, MaxBackoff: time.Millisecond},
			expectedError: "initial backoff (1s) must be less than max backoff (1ms)",
		},
		{
			desc:          "negative attempts",
			settings:      Settings{InitialBackoff: time.Second, Multiplier: 2, MaxAttempts: -1},
			expectedError: "max attempts must be >= 0, got -1",
		},
		{
			desc:     "valid",
			settings: Settings{InitialBackoff: time.Second, Multiplier: 2, MaxBackoff: time.Hour, MaxAttempts: 3},
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			err := tc.settings.Verify()
			if tc.expectedError != "" {
				require.EqualError(t, err, tc.expectedError)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	for _, tc := range []struct {
		desc     string
		settings Settings
		expected []time.Duration
	}{
		{
			desc:     "uncapped",
			settings: Settings{InitialBackoff: time.Second, Multiplier: 2},
			expected: []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second},
		},
		{
			desc:     "capped",
			settings: Settings{InitialBackoff: time.Second, Multiplier: 2, MaxBackoff: 3 * time.Second},
			expected: []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second},
		},
		{
			desc:     "constant",
			settings: Settings{InitialBackoff: time.Second, Multiplier: 1},
			expected: []time.Duration{time.Second, time.Second, time.Second},
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			for i, expected := range tc.expected {
				require.Equal(t, expected, tc.settings.Backoff(i+1), "attempt %d", i+1)
			}
		})
	}
}

func TestDo(t *testing.T) {
	settings := Settings{
		InitialBackoff: time.Millisecond,
		Multiplier:     2,
		MaxBackoff:     5 * time.Millisecond,
		MaxAttempts:    3,
	}
	for _, tc := range []struct {
		desc          string
		failures      int
		expectedCalls int
		expectedError string
	}{
		{desc: "first attempt succeeds", failures: 0, expectedCalls: 1},
		{desc: "succeeds on last attempt", failures: 2, expectedCalls: 3},
		{desc: "gives up", failures: 10, expectedCalls: 3, expectedError: "giving up after 3 attempts: boom"},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			calls := 0
			err := settings.Do(context.Background(), func(ctx context.Context) error {
				calls++
				if calls <= tc.failures {
					return errors.New("boom")
				}
				return nil
			})
			require.Equal(t, tc.expectedCalls, calls)
			if tc.expectedError != "" {
				require.EqualError(t, err, tc.expectedError)
			} else {
				require.NoError(t, err)
			}
		})
	}

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := Settings{InitialBackoff: time.Hour, Multiplier: 1}.Do(ctx, func(ctx context.Context) error {
			calls++
			cancel()
			return errors.New("boom")
		})
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, calls)
	})

	t.Run("invalid settings", func(t *testing.T) {
		calls := 0
		err := Settings{}.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return nil
		})
		require.Error(t, err)
		require.Zero(t, calls)
	})
}

package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "basic error",
			err:      New(ErrCodeTableWrite, "Failed to write table"),
			expected: "[PDW3002] ERROR: Failed to write table",
		},
		{
			name: "error with suggestions",
			err: New(ErrCodeConfigInvalid, "Bad config").
				WithSuggestions("Check the file", "Run init"),
			expected: "[PDW2001] ERROR: Bad config\nSuggestions:\n  1. Check the file\n  2. Run init",
		},
		{
			name: "context is not rendered",
			err: New(ErrCodeJournal, "Journal broken").
				WithContext("path", "/tmp/j"),
			expected: "[PDW5003] ERROR: Journal broken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestWrapKeepsCauseAndContext(t *testing.T) {
	inner := New(ErrCodeTableRead, "inner").WithContext("table", "DimCliente")
	outer := Wrap(inner, ErrCodeInternal, "outer")

	require.NotNil(t, outer)
	assert.Equal(t, inner, outer.Cause)
	assert.Equal(t, "DimCliente", outer.Context["table"])
	assert.True(t, stderrors.Is(outer, &AppError{Code: ErrCodeTableRead}))
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
}

func TestCatalogMissError(t *testing.T) {
	err := CatalogMissError("SubdimPais", "pais", "Atlantis")

	assert.Equal(t, ErrCodeCatalogMiss, GetErrorCode(err))
	assert.Equal(t, "Atlantis", err.Context["label"])
	assert.Contains(t, err.Error(), "SubdimPais")
}

func TestSourceMissingError(t *testing.T) {
	err := SourceMissingError("csv/proyectos.csv", fmt.Errorf("no such file"))

	assert.Equal(t, ErrCodeSourceMissing, err.Code)
	assert.Equal(t, SeverityCritical, err.Severity)
	assert.Contains(t, err.Error(), "csv/proyectos.csv")
}

func TestGetErrorCodeForPlainError(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, GetErrorCode(fmt.Errorf("plain")))
	assert.False(t, IsRecoverable(fmt.Errorf("plain")))
}

func TestRetry(t *testing.T) {
	config := &RetryConfig{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		RetryableError: func(err error) bool {
			return IsRecoverable(err)
		},
	}

	t.Run("succeeds after retries", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), config, func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return New(ErrCodeConnectionFailed, "flaky").AsRecoverable()
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), config, func(ctx context.Context) error {
			attempts++
			return New(ErrCodeSQLExecution, "bad sql")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
		assert.Equal(t, ErrCodeSQLExecution, GetErrorCode(err))
	})

	t.Run("exhausts retries", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), config, func(ctx context.Context) error {
			attempts++
			return New(ErrCodeConnectionFailed, "down").AsRecoverable()
		})
		assert.Error(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, ErrCodeMaxRetriesExceeded, GetErrorCode(err))
	})
}

func TestCalculateDelayCapsAtMax(t *testing.T) {
	config := &RetryConfig{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     40 * time.Millisecond,
		Multiplier:   2.0,
	}

	assert.Equal(t, 10*time.Millisecond, calculateDelay(0, config))
	assert.Equal(t, 20*time.Millisecond, calculateDelay(1, config))
	assert.Equal(t, 40*time.Millisecond, calculateDelay(5, config))
}

package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"
)

func newTestExecutor(t *testing.T, ex *mockExchange) (*Executor, *mockLogger, *[]time.Duration) {
	t.Helper()
	logger := &mockLogger{}
	e, err := NewExecutor(Config{
		Exchange:   ex,
		Logger:     logger,
		QuoteAsset: "USDT",
		RetryDelay: time.Millisecond,
		NewClientOrderID: func() string {
			return "test-client-id"
		},
	})
	require.NoError(t, err)
	var slept []time.Duration
	e.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return e, logger, &slept
}

func insufficient() error {
	return fmt.Errorf("PlaceOCOOrder failed: %w: %w", ports.ErrInsufficientFunds, errors.New("<APIError> code=-2010, msg=Account has insufficient balance for requested action."))
}

func TestExecuteOCO_ClampsWithinTolerance(t *testing.T) {
	ex := newMockExchange()
	ex.balances = []float64{99.95}
	e, logger, _ := newTestExecutor(t, ex)

	res := e.ExecuteOCO(context.Background(), "XYZUSDT", 100, 0.9, 1.2)

	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "9001", res.OrderID)
	assert.Equal(t, 99.95, res.Quantity)
	require.Len(t, ex.ocoRequests, 1)
	req := ex.ocoRequests[0]
	assert.Equal(t, "99.95", req.Quantity)
	assert.Equal(t, "1.2", req.Price)
	assert.Equal(t, "0.9", req.StopPrice)
	assert.Equal(t, "0.8991", req.StopLimitPrice)
	assert.Equal(t, domain.Sell, req.Side)
	assert.Equal(t, "test-client-id", req.ListClientOrderID)
	assert.Contains(t, logger.infoMsgs, "ExecuteOCO: balance within tolerance, clamping quantity")
}

func TestExecuteOCO_ShortfallAbortsLocally(t *testing.T) {
	ex := newMockExchange()
	ex.balances = []float64{90}
	e, logger, _ := newTestExecutor(t, ex)

	res := e.ExecuteOCO(context.Background(), "XYZUSDT", 100, 0.9, 1.2)

	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorKindInsufficientBalance, res.ErrorKind)
	assert.Equal(t, 0, ex.calls["PlaceOCOOrder"], "must not reach the exchange")
	assert.Contains(t, logger.warnMsgs, "ExecuteOCO: insufficient balance, not submitting")
}

func TestExecuteOCO_FullBalancePasses(t *testing.T) {
	ex := newMockExchange()
	ex.balances = []float64{0.10002}
	e, _, _ := newTestExecutor(t, ex)

	res := e.ExecuteOCO(context.Background(), "BTCUSDT", 0.1, 48000, 52000)

	require.True(t, res.Success)
	require.Len(t, ex.ocoRequests, 1)
	assert.Equal(t, "0.1", ex.ocoRequests[0].Quantity)
	assert.Equal(t, "47952", ex.ocoRequests[0].StopLimitPrice)
}

func TestExecuteOCO_ToleranceIsConfigurable(t *testing.T) {
	ex := newMockExchange()
	ex.balances = []float64{99.5}
	e, err := NewExecutor(Config{
		Exchange:            ex,
		Logger:              &mockLogger{},
		BalanceToleranceAbs: 0.001,
		BalanceTolerancePct: 0.01,
	})
	require.NoError(t, err)

	res := e.ExecuteOCO(context.Background(), "XYZUSDT", 100, 0.9, 1.2)
	require.True(t, res.Success)
	assert.Equal(t, 99.5, res.Quantity)
}

func TestExecuteOCO_RetriesOnceOnInsufficientBalance(t *testing.T) {
	ex := newMockExchange()
	ex.balances = []float64{100, 99.5}
	ex.ocoErrs = []error{insufficient(), nil}
	e, logger, slept := newTestExecutor(t, ex)

	res := e.ExecuteOCO(context.Background(), "XYZUSDT", 100, 0.9, 1.2)

	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, 2, ex.calls["PlaceOCOOrder"])
	assert.Equal(t, 2, ex.calls["GetFreeBalance"])
	require.Len(t, ex.ocoRequests, 2)
	assert.Equal(t, "100", ex.ocoRequests[0].Quantity)
	assert.Equal(t, "99.4", ex.ocoRequests[1].Quantity, "re-queried balance with 0.1%% buffer, floored to step")
	assert.Equal(t, []time.Duration{time.Millisecond}, *slept)
	assert.Contains(t, logger.warnMsgs, "ExecuteOCO: exchange reported insufficient balance, will retry")
}

func TestExecuteOCO_RetryBudgetIsOne(t *testing.T) {
	ex := newMockExchange()
	ex.balances = []float64{100, 99.5}
	ex.ocoErrs = []error{insufficient(), insufficient(), nil}
	e, _, _ := newTestExecutor(t, ex)

	res := e.ExecuteOCO(context.Background(), "XYZUSDT", 100, 0.9, 1.2)

	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorKindInsufficientBalance, res.ErrorKind)
	assert.Equal(t, 2, ex.calls["PlaceOCOOrder"])
}

func TestExecuteOCO_NoRetryForOtherRejections(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		kind domain.ErrorKind
	}{
		{name: "filter failure", err: fmt.Errorf("PlaceOCOOrder failed: %w", ports.ErrFilterFailure), kind: domain.ErrorKindFilterFailure},
		{name: "bad parameters", err: fmt.Errorf("PlaceOCOOrder failed: %w", ports.ErrInvalidRequest), kind: domain.ErrorKindInvalidParameters},
		{name: "timeout", err: fmt.Errorf("PlaceOCOOrder failed: %w", ports.ErrTimeout), kind: domain.ErrorKindTransient},
		{name: "other", err: errors.New("boom"), kind: domain.ErrorKindRejected},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ex := newMockExchange()
			ex.balances = []float64{100}
			ex.ocoErrs = []error{tc.err, nil}
			e, _, slept := newTestExecutor(t, ex)

			res := e.ExecuteOCO(context.Background(), "XYZUSDT", 100, 0.9, 1.2)

			assert.False(t, res.Success)
			assert.Equal(t, tc.kind, res.ErrorKind)
			assert.Equal(t, 1, ex.calls["PlaceOCOOrder"])
			assert.Empty(t, *slept)
		})
	}
}

func TestExecuteOCO_RecoveredBalanceEmpty(t *testing.T) {
	ex := newMockExchange()
	ex.balances = []float64{100, 0}
	ex.ocoErrs = []error{insufficient()}
	e, _, _ := newTestExecutor(t, ex)

	res := e.ExecuteOCO(context.Background(), "XYZUSDT", 100, 0.9, 1.2)

	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorKindInsufficientBalance, res.ErrorKind)
	assert.Equal(t, 1, ex.calls["PlaceOCOOrder"])
}

func TestExecuteOCO_BalanceLookupFailure(t *testing.T) {
	ex := newMockExchange()
	ex.balanceErr = fmt.Errorf("GetFreeBalance failed: %w", ports.ErrConnectionFailed)
	e, _, _ := newTestExecutor(t, ex)

	res := e.ExecuteOCO(context.Background(), "XYZUSDT", 100, 0.9, 1.2)

	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorKindTransient, res.ErrorKind)
	assert.Equal(t, 0, ex.calls["PlaceOCOOrder"])
}

func TestExecuteOCO_InvalidPricesRejectedLocally(t *testing.T) {
	ex := newMockExchange()
	ex.balances = []float64{100}
	e, _, _ := newTestExecutor(t, ex)

	res := e.ExecuteOCO(context.Background(), "XYZUSDT", 100, 1.2, 0.9)

	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorKindLocalValidation, res.ErrorKind)
	assert.Equal(t, 0, ex.calls["PlaceOCOOrder"])
	assert.Equal(t, 0, ex.calls["GetFreeBalance"])
}

func TestExecuteOCO_DegradesWithoutFilters(t *testing.T) {
	ex := newMockExchange()
	ex.filtersErr = fmt.Errorf("GetSymbolFilters failed: %w", ports.ErrTimeout)
	ex.balances = []float64{2}
	e, logger, _ := newTestExecutor(t, ex)

	res := e.ExecuteOCO(context.Background(), "XYZUSDT", 1.23456789, 0.91234567, 1.2)

	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "1.234567", ex.ocoRequests[0].Quantity)
	assert.Equal(t, "0.912345", ex.ocoRequests[0].StopPrice)
	assert.Contains(t, logger.warnMsgs, "ExecuteOCO: symbol filters unavailable, using fixed precision")
}

func TestExecuteOCO_CanceledContextStopsRetry(t *testing.T) {
	ex := newMockExchange()
	ex.balances = []float64{100, 100}
	ex.ocoErrs = []error{insufficient(), nil}
	e, _, _ := newTestExecutor(t, ex)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := e.ExecuteOCO(ctx, "XYZUSDT", 100, 0.9, 1.2)

	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorKindTransient, res.ErrorKind)
	assert.Equal(t, 1, ex.calls["PlaceOCOOrder"])
}

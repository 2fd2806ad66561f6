package testing

import (
	"context"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockStrategy is a testify mock of domain.Strategy
type MockStrategy struct {
	mock.Mock
	Addr domain.Address
}

// NewMockStrategy creates a mock strategy deployed at addr
func NewMockStrategy(addr domain.Address) *MockStrategy {
	return &MockStrategy{Addr: addr}
}

func (m *MockStrategy) Address() domain.Address {
	return m.Addr
}

func (m *MockStrategy) Deposit(ctx context.Context, caller, asset domain.Address, amount sdkmath.Int, flag bool, aux []byte) error {
	args := m.Called(ctx, caller, asset, amount, flag, aux)
	return args.Error(0)
}

func (m *MockStrategy) Withdraw(ctx context.Context, caller, asset domain.Address, amount sdkmath.Int, flag bool, recipient domain.Address, aux []byte) (sdkmath.Int, error) {
	args := m.Called(ctx, caller, asset, amount, flag, recipient, aux)
	return args.Get(0).(sdkmath.Int), args.Error(1)
}

func (m *MockStrategy) InvestedBalance(ctx context.Context, asset domain.Address) (sdkmath.Int, error) {
	args := m.Called(ctx, asset)
	return args.Get(0).(sdkmath.Int), args.Error(1)
}

func (m *MockStrategy) ChangeAllowance(ctx context.Context, caller domain.Address, changes []domain.AllowanceChange) error {
	args := m.Called(ctx, caller, changes)
	return args.Error(0)
}

func (m *MockStrategy) OnRightGranted(ctx context.Context, caller, asset domain.Address) error {
	args := m.Called(ctx, caller, asset)
	return args.Error(0)
}

func (m *MockStrategy) OnRightRevoked(ctx context.Context, caller, asset domain.Address) error {
	args := m.Called(ctx, caller, asset)
	return args.Error(0)
}

// MockResolver resolves a fixed set of strategies
type MockResolver map[domain.Address]domain.Strategy

func (r MockResolver) Resolve(addr domain.Address) (domain.Strategy, bool) {
	s, ok := r[addr]
	return s, ok
}

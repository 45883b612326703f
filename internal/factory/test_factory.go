package factory

import (
	"time"

	"github.com/rfglabs/deathroll/internal/dependencies/mocks"
	"github.com/rfglabs/deathroll/internal/gateway"
	"github.com/rfglabs/deathroll/internal/services/identity"
	"github.com/rfglabs/deathroll/internal/storage/memory"
	"github.com/rfglabs/deathroll/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(
		store,
		mockClock,
		mockRandom,
		identity.DefaultConfig(),
		gateway.Config{},
		testutil.NopLogger(),
	)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

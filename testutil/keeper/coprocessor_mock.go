package keeper

import (
	"context"
	"sync"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofofpost/pop/x/postproof/types"
)

// MockCoprocessor records submitted jobs instead of running them.
type MockCoprocessor struct {
	mu   sync.Mutex
	Jobs []types.Job
	Fee  sdk.AccAddress
	// Err, when set, is returned by SubmitJob.
	Err error
}

func NewMockCoprocessor() *MockCoprocessor {
	return &MockCoprocessor{Fee: sdk.AccAddress([]byte("coprocessor_fee_addr"))}
}

func (m *MockCoprocessor) SubmitJob(_ context.Context, job types.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Jobs = append(m.Jobs, job)
	return nil
}

func (m *MockCoprocessor) FeeAddress() sdk.AccAddress {
	return m.Fee
}

// LastJob returns the most recent job, or false if none was submitted.
func (m *MockCoprocessor) LastJob() (types.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Jobs) == 0 {
		return types.Job{}, false
	}
	return m.Jobs[len(m.Jobs)-1], true
}

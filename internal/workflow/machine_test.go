package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearpath/claims/internal/models"
)

func strictEnv() Env {
	return Env{
		ApprovalMode:   models.ApprovalModeBoth,
		HasSupervisor1: true,
		HasSupervisor2: true,
	}
}

func TestSupervisorApprovalPromotion(t *testing.T) {
	tests := []struct {
		name    string
		initial models.Status
		trigger Trigger
		env     Env
		want    models.Status
	}{
		{
			name:    "strict mode level 1 approval waits for level 2",
			initial: models.StatusSubmitted,
			trigger: TriggerS1Approve,
			env:     strictEnv(),
			want:    models.StatusS1Approved,
		},
		{
			name:    "strict mode level 2 approval waits for level 1",
			initial: models.StatusSubmitted,
			trigger: TriggerS2Approve,
			env:     strictEnv(),
			want:    models.StatusS2Approved,
		},
		{
			name:    "lenient mode promotes on first approval",
			initial: models.StatusSubmitted,
			trigger: TriggerS1Approve,
			env: Env{
				ApprovalMode:   models.ApprovalModeAny,
				HasSupervisor1: true,
				HasSupervisor2: true,
			},
			want: models.StatusBothApproved,
		},
		{
			name:    "strict mode with no level 2 supervisor promotes lone approval",
			initial: models.StatusSubmitted,
			trigger: TriggerS1Approve,
			env: Env{
				ApprovalMode:   models.ApprovalModeBoth,
				HasSupervisor1: true,
				HasSupervisor2: false,
			},
			want: models.StatusBothApproved,
		},
		{
			name:    "strict mode with no level 1 supervisor promotes lone level 2 approval",
			initial: models.StatusSubmitted,
			trigger: TriggerS2Approve,
			env: Env{
				ApprovalMode:   models.ApprovalModeBoth,
				HasSupervisor1: false,
				HasSupervisor2: true,
			},
			want: models.StatusBothApproved,
		},
		{
			name:    "level 2 approval completes an existing level 1 approval",
			initial: models.StatusS1Approved,
			trigger: TriggerS2Approve,
			env:     strictEnv(),
			want:    models.StatusBothApproved,
		},
		{
			name:    "level 1 approval completes an existing level 2 approval",
			initial: models.StatusS2Approved,
			trigger: TriggerS1Approve,
			env:     strictEnv(),
			want:    models.StatusBothApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewClaimMachine(tt.initial)
			require.NoError(t, m.Fire(tt.trigger, tt.env))
			assert.Equal(t, tt.want, m.State())
		})
	}
}

func TestSupervisorReject(t *testing.T) {
	for _, initial := range []models.Status{
		models.StatusSubmitted,
		models.StatusS1Approved,
		models.StatusS2Approved,
	} {
		m := NewClaimMachine(initial)
		require.NoError(t, m.Fire(TriggerSupervisorReject, strictEnv()))
		assert.Equal(t, models.StatusRejected, m.State())
	}
}

func TestFinanceStageAndPayment(t *testing.T) {
	m := NewClaimMachine(models.StatusBothApproved)

	require.NoError(t, m.Fire(TriggerFinanceApprove, strictEnv()))
	assert.Equal(t, models.StatusFinanceApproved, m.State())

	require.NoError(t, m.Fire(TriggerMarkPaid, strictEnv()))
	assert.Equal(t, models.StatusPaid, m.State())

	// Paid is terminal: a second payment attempt must fail and leave the
	// status untouched.
	err := m.Fire(TriggerMarkPaid, strictEnv())
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.StatusPaid, m.State())
}

func TestLegacyApprovedStatusReachesFinance(t *testing.T) {
	m := NewClaimMachine(models.StatusLegacyApproved)
	require.NoError(t, m.Fire(TriggerFinanceApprove, strictEnv()))
	assert.Equal(t, models.StatusFinanceApproved, m.State())
}

func TestOutOfOrderTransitionsRejected(t *testing.T) {
	tests := []struct {
		name    string
		initial models.Status
		trigger Trigger
	}{
		{"finance approving a submitted claim", models.StatusSubmitted, TriggerFinanceApprove},
		{"paying a submitted claim", models.StatusSubmitted, TriggerMarkPaid},
		{"paying before finance approval", models.StatusBothApproved, TriggerMarkPaid},
		{"supervisor approving past supervisor stage", models.StatusBothApproved, TriggerS1Approve},
		{"supervisor rejecting a finance approved claim", models.StatusFinanceApproved, TriggerSupervisorReject},
		{"approving a rejected claim", models.StatusRejected, TriggerS1Approve},
		{"resubmitting a live claim", models.StatusSubmitted, TriggerResubmit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewClaimMachine(tt.initial)
			err := m.Fire(tt.trigger, strictEnv())
			require.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tt.initial, m.State(), "status must not change on a rejected edge")
		})
	}
}

func TestResubmitReturnsRejectedClaimToSubmitted(t *testing.T) {
	m := NewClaimMachine(models.StatusRejected)
	require.NoError(t, m.Fire(TriggerResubmit, strictEnv()))
	assert.Equal(t, models.StatusSubmitted, m.State())
}

func TestTriggerForSupervisorApproval(t *testing.T) {
	trig, ok := TriggerForSupervisorApproval(1)
	require.True(t, ok)
	assert.Equal(t, TriggerS1Approve, trig)

	trig, ok = TriggerForSupervisorApproval(2)
	require.True(t, ok)
	assert.Equal(t, TriggerS2Approve, trig)

	_, ok = TriggerForSupervisorApproval(0)
	assert.False(t, ok)
}

func TestCanFire(t *testing.T) {
	m := NewClaimMachine(models.StatusSubmitted)
	assert.True(t, m.CanFire(TriggerS1Approve))
	assert.True(t, m.CanFire(TriggerSupervisorReject))
	assert.False(t, m.CanFire(TriggerMarkPaid))
}

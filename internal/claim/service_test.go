package claim

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearpath/claims/internal/access"
	"github.com/clearpath/claims/internal/apperror"
	"github.com/clearpath/claims/internal/audit"
	"github.com/clearpath/claims/internal/models"
	"github.com/clearpath/claims/internal/notify"
	"github.com/clearpath/claims/internal/policy"
	"github.com/clearpath/claims/internal/repository"
	"github.com/clearpath/claims/internal/sequence"
	"github.com/clearpath/claims/internal/storage"
	"github.com/clearpath/claims/pkg/database"
	"github.com/clearpath/claims/pkg/utils"
)

type testEnv struct {
	service  *Service
	policies *policy.Store
	users    *repository.UserRepository
	claims   *repository.ClaimRepository

	// newService rebuilds the service around a substitute user directory,
	// sharing every other collaborator with env.service.
	newService func(directory access.UserDirectory) *Service

	employee       *models.User // supervised by sup1 and sup2
	loneReport     *models.User // supervised by sup1 only
	supervisor1    *models.User
	supervisor2    *models.User
	financeManager *models.User
	admin          *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := utils.NewTestLogger()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, logger)
	require.NoError(t, migrator.RunMigrations("../../migrations"))

	claimRepo := repository.NewClaimRepository(db.DB, logger)
	policyRepo := repository.NewPolicyRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	auditRepo := repository.NewAuditRepository(db.DB, logger)

	policyStore := policy.NewStore(policyRepo, logger)
	require.NoError(t, policyStore.Bootstrap(ctx))

	seq := sequence.NewGenerator(db, logger)

	blobs, err := storage.NewLocalStore(t.TempDir(), logger)
	require.NoError(t, err)

	env := &testEnv{
		policies: policyStore,
		users:    userRepo,
		employee: &models.User{
			ID: "emp_1", Name: "Asha", Email: "asha@example.com",
			Role: models.RoleEmployee, AssignedSupervisor1: "sup_1", AssignedSupervisor2: "sup_2", IsActive: true,
		},
		loneReport: &models.User{
			ID: "emp_2", Name: "Ravi", Email: "ravi@example.com",
			Role: models.RoleEmployee, AssignedSupervisor1: "sup_1", IsActive: true,
		},
		supervisor1: &models.User{
			ID: "sup_1", Name: "Meera", Email: "meera@example.com",
			Role: models.RoleSupervisor, SupervisorLevel: 1, IsActive: true,
		},
		supervisor2: &models.User{
			ID: "sup_2", Name: "Dev", Email: "dev@example.com",
			Role: models.RoleSupervisor, SupervisorLevel: 2, IsActive: true,
		},
		financeManager: &models.User{
			ID: "fin_1", Name: "Priya", Email: "priya@example.com",
			Role: models.RoleFinanceManager, IsActive: true,
		},
		admin: &models.User{
			ID: "adm_1", Name: "Root", Email: "root@example.com",
			Role: models.RoleAdmin, IsActive: true,
		},
	}

	for _, user := range []*models.User{
		env.employee, env.loneReport, env.supervisor1, env.supervisor2, env.financeManager, env.admin,
	} {
		require.NoError(t, userRepo.Upsert(ctx, user))
	}

	env.claims = claimRepo
	env.newService = func(directory access.UserDirectory) *Service {
		return NewService(
			claimRepo,
			policyStore,
			directory,
			access.NewProjector(userRepo, logger),
			seq,
			blobs,
			audit.NewDBSink(auditRepo, logger),
			notify.NewLogNotifier(logger),
			logger,
		)
	}
	env.service = env.newService(userRepo)

	return env
}

func validDraft() Draft {
	return Draft{
		BusinessUnit: "Alliance",
		Category:     "Travel",
		LineItems: []models.LineItem{{
			SubCategory: "Taxi",
			Description: "Airport transfer for the client visit",
			Currency:    "INR",
			Amount:      decimal.NewFromInt(900),
			AmountInINR: decimal.NewFromInt(900),
		}},
	}
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	year := time.Now().UTC().Year()

	first, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("claim_%d_00001", year), first.ClaimID)
	assert.Equal(t, models.StatusSubmitted, first.Status)
	assert.NotEmpty(t, first.PolicyVersion)
	assert.Len(t, first.Timeline, 1)
	assert.True(t, first.GrandTotal.Equal(decimal.NewFromInt(900)))

	second, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("claim_%d_00002", year), second.ClaimID)
}

func TestCreateRejectsBlockingViolations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// A domestic flight without GST is the canonical blocking violation.
	draft := validDraft()
	draft.LineItems[0] = models.LineItem{
		SubCategory: "Airfare - Domestic",
		Description: "Flight to the regional office for onboarding",
		Amount:      decimal.NewFromInt(11000),
		AmountInINR: decimal.NewFromInt(11000),
		GSTTotal:    decimal.Zero,
		Attachments: []models.Attachment{{Label: "invoice"}, {Label: "boarding_pass"}},
	}

	_, err := env.service.Create(ctx, env.employee, draft)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	appErr, ok := apperror.AsError(err)
	require.True(t, ok)
	require.NotEmpty(t, appErr.Violations)
	assert.Equal(t, policy.CodeGSTRequired, appErr.Violations[0].Code)

	// A rejected submission consumes no claim ID.
	created, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("claim_%d_00001", time.Now().UTC().Year()), created.ClaimID)
}

func TestFullLifecycleToPaid(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)

	afterS1, err := env.service.SupervisorDecision(ctx, env.supervisor1, created.ClaimID, true, "", "within budget")
	require.NoError(t, err)
	assert.Equal(t, models.StatusS1Approved, afterS1.Status)
	require.NotNil(t, afterS1.SupervisorApproval)
	assert.Equal(t, 1, afterS1.SupervisorApproval.Level)

	afterS2, err := env.service.SupervisorDecision(ctx, env.supervisor2, created.ClaimID, true, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBothApproved, afterS2.Status)

	afterFinance, err := env.service.FinanceDecision(ctx, env.financeManager, created.ClaimID, true, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinanceApproved, afterFinance.Status)
	require.NotNil(t, afterFinance.FinanceApproval)

	paid, err := env.service.MarkPaid(ctx, env.financeManager, created.ClaimID, "Bank Transfer", "TXN-001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, paid.Status)
	require.NotNil(t, paid.Payment)
	assert.Equal(t, "Bank Transfer", paid.Payment.Channel)

	// Paying again must fail and leave the record untouched.
	_, err = env.service.MarkPaid(ctx, env.financeManager, created.ClaimID, "Bank Transfer", "TXN-002")
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindState))

	unchanged, err := env.service.Get(ctx, env.financeManager, created.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, unchanged.Status)
	assert.Equal(t, "TXN-001", unchanged.Payment.Reference)
}

func TestSingleApprovalCompletesInAnyMode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	lenient := models.DefaultPolicy()
	lenient.ApprovalMode = models.ApprovalModeAny
	_, err := env.policies.Publish(ctx, lenient)
	require.NoError(t, err)

	created, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)

	updated, err := env.service.SupervisorDecision(ctx, env.supervisor1, created.ClaimID, true, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBothApproved, updated.Status)
}

func TestLoneSupervisorApprovalCompletesStage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// emp_2 has no second supervisor, so one signature is all there can be.
	created, err := env.service.Create(ctx, env.loneReport, validDraft())
	require.NoError(t, err)

	updated, err := env.service.SupervisorDecision(ctx, env.supervisor1, created.ClaimID, true, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBothApproved, updated.Status)
}

func TestRejectionRequiresReason(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)

	_, err = env.service.SupervisorDecision(ctx, env.supervisor1, created.ClaimID, false, "  ", "")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = env.service.SupervisorDecision(ctx, env.supervisor1, created.ClaimID, true, "", "")
	require.NoError(t, err)
	_, err = env.service.SupervisorDecision(ctx, env.supervisor2, created.ClaimID, true, "", "")
	require.NoError(t, err)

	_, err = env.service.FinanceDecision(ctx, env.financeManager, created.ClaimID, false, "", "")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestRejectedClaimCanBeEditedAndResubmitted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)

	rejected, err := env.service.SupervisorDecision(ctx, env.supervisor1, created.ClaimID, false, "missing context", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)

	draft := validDraft()
	draft.LineItems[0].Description = "Airport transfer, client visit agenda attached"

	resubmitted, err := env.service.Update(ctx, env.employee, created.ClaimID, draft)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, resubmitted.Status)
	assert.Nil(t, resubmitted.SupervisorApproval, "prior decision is cleared on resubmit")
	assert.Equal(t, created.PolicyVersion, resubmitted.PolicyVersion, "edits keep the captured policy version")
}

func TestUpdateRejectedAfterApprovalStarts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)

	_, err = env.service.SupervisorDecision(ctx, env.supervisor1, created.ClaimID, true, "", "")
	require.NoError(t, err)

	_, err = env.service.Update(ctx, env.employee, created.ClaimID, validDraft())
	assert.True(t, apperror.IsKind(err, apperror.KindState))
}

func TestDecisionAuthorization(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)

	t.Run("employee cannot approve", func(t *testing.T) {
		_, err := env.service.SupervisorDecision(ctx, env.employee, created.ClaimID, true, "", "")
		assert.True(t, apperror.IsKind(err, apperror.KindAuthorization))
	})

	t.Run("unassigned supervisor cannot decide", func(t *testing.T) {
		outsider := &models.User{ID: "sup_9", Role: models.RoleSupervisor, SupervisorLevel: 1, IsActive: true}
		require.NoError(t, env.users.Upsert(ctx, outsider))

		_, err := env.service.SupervisorDecision(ctx, outsider, created.ClaimID, true, "", "")
		assert.True(t, apperror.IsKind(err, apperror.KindAuthorization))
	})

	t.Run("supervisor cannot act for finance", func(t *testing.T) {
		_, err := env.service.FinanceDecision(ctx, env.supervisor1, created.ClaimID, true, "", "")
		assert.True(t, apperror.IsKind(err, apperror.KindAuthorization))
	})

	t.Run("employee cannot mark paid", func(t *testing.T) {
		_, err := env.service.MarkPaid(ctx, env.employee, created.ClaimID, "Bank Transfer", "")
		assert.True(t, apperror.IsKind(err, apperror.KindAuthorization))
	})
}

func TestFinanceCannotSkipSupervisorStage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)

	_, err = env.service.FinanceDecision(ctx, env.financeManager, created.ClaimID, true, "", "")
	assert.True(t, apperror.IsKind(err, apperror.KindState))

	_, err = env.service.MarkPaid(ctx, env.financeManager, created.ClaimID, "Bank Transfer", "")
	assert.True(t, apperror.IsKind(err, apperror.KindState))
}

func TestMarkPaidValidatesChannel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)
	_, err = env.service.SupervisorDecision(ctx, env.supervisor1, created.ClaimID, true, "", "")
	require.NoError(t, err)
	_, err = env.service.SupervisorDecision(ctx, env.supervisor2, created.ClaimID, true, "", "")
	require.NoError(t, err)
	_, err = env.service.FinanceDecision(ctx, env.financeManager, created.ClaimID, true, "", "")
	require.NoError(t, err)

	_, err = env.service.MarkPaid(ctx, env.financeManager, created.ClaimID, "Cash", "")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestSupervisorFilesOnBehalfOfReport(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	draft := validDraft()
	draft.EmployeeID = "emp_1"

	created, err := env.service.Create(ctx, env.supervisor1, draft)
	require.NoError(t, err)
	assert.Equal(t, "emp_1", created.EmployeeID)
	assert.Equal(t, "sup_1", created.CreatedBy)

	t.Run("not for someone else's report", func(t *testing.T) {
		stranger := validDraft()
		stranger.EmployeeID = "fin_1"
		_, err := env.service.Create(ctx, env.supervisor1, stranger)
		assert.True(t, apperror.IsKind(err, apperror.KindAuthorization))
	})

	t.Run("employees file only for themselves", func(t *testing.T) {
		other := validDraft()
		other.EmployeeID = "emp_2"
		_, err := env.service.Create(ctx, env.employee, other)
		assert.True(t, apperror.IsKind(err, apperror.KindAuthorization))
	})
}

func TestListProjectsPerRole(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	mine, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)
	_, err = env.service.Create(ctx, env.loneReport, validDraft())
	require.NoError(t, err)

	t.Run("employee sees own claims only", func(t *testing.T) {
		claims, err := env.service.List(ctx, env.employee)
		require.NoError(t, err)
		require.Len(t, claims, 1)
		assert.Equal(t, mine.ClaimID, claims[0].ClaimID)
	})

	t.Run("finance sees nothing before the supervisor stage completes", func(t *testing.T) {
		claims, err := env.service.List(ctx, env.financeManager)
		require.NoError(t, err)
		assert.Empty(t, claims)
	})

	t.Run("admin sees everything", func(t *testing.T) {
		claims, err := env.service.List(ctx, env.admin)
		require.NoError(t, err)
		assert.Len(t, claims, 2)
	})

	t.Run("non-owner cannot fetch a single claim", func(t *testing.T) {
		_, err := env.service.Get(ctx, env.loneReport, mine.ClaimID)
		assert.True(t, apperror.IsKind(err, apperror.KindAuthorization))
	})
}

func TestDeleteRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)

	t.Run("only the owner or admin may delete", func(t *testing.T) {
		err := env.service.Delete(ctx, env.loneReport, created.ClaimID)
		assert.True(t, apperror.IsKind(err, apperror.KindAuthorization))
	})

	t.Run("deletable before finance approval", func(t *testing.T) {
		require.NoError(t, env.service.Delete(ctx, env.employee, created.ClaimID))

		_, err := env.service.Get(ctx, env.employee, created.ClaimID)
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})

	t.Run("not deletable once finance approved", func(t *testing.T) {
		claim, err := env.service.Create(ctx, env.employee, validDraft())
		require.NoError(t, err)
		_, err = env.service.SupervisorDecision(ctx, env.supervisor1, claim.ClaimID, true, "", "")
		require.NoError(t, err)
		_, err = env.service.SupervisorDecision(ctx, env.supervisor2, claim.ClaimID, true, "", "")
		require.NoError(t, err)
		_, err = env.service.FinanceDecision(ctx, env.financeManager, claim.ClaimID, true, "", "")
		require.NoError(t, err)

		err = env.service.Delete(ctx, env.employee, claim.ClaimID)
		assert.True(t, apperror.IsKind(err, apperror.KindState))
	})
}

func TestUploadAttachmentEnforcesPolicy(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	t.Run("disallowed extension", func(t *testing.T) {
		_, err := env.service.UploadAttachment(ctx, env.employee, []byte("x"), storage.FileMeta{Name: "notes.exe"})
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})

	t.Run("accepted file", func(t *testing.T) {
		stored, err := env.service.UploadAttachment(ctx, env.employee, []byte("%PDF-1.4"), storage.FileMeta{
			Name: "invoice.pdf", Mime: "application/pdf", Label: "invoice",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, stored.FileID)
		assert.NotEmpty(t, stored.StorageKey)
		assert.Equal(t, "invoice", stored.Label)
	})
}

func TestTimelineGrowsWithEveryTransition(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)
	require.Len(t, created.Timeline, 1)

	after, err := env.service.SupervisorDecision(ctx, env.supervisor1, created.ClaimID, true, "", "")
	require.NoError(t, err)
	assert.Len(t, after.Timeline, 2)

	after, err = env.service.SupervisorDecision(ctx, env.supervisor2, created.ClaimID, true, "", "")
	require.NoError(t, err)
	assert.Len(t, after.Timeline, 3)
	assert.Equal(t, created.Timeline[0], after.Timeline[0], "earlier entries are immutable")
}

func TestSupervisorCannotDecideOwnClaim(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.service.Create(ctx, env.supervisor1, validDraft())
	require.NoError(t, err)
	assert.Equal(t, "sup_1", created.EmployeeID)

	_, err = env.service.SupervisorDecision(ctx, env.supervisor1, created.ClaimID, true, "", "")
	assert.True(t, apperror.IsKind(err, apperror.KindAuthorization))

	// Ownership still grants read access.
	got, err := env.service.Get(ctx, env.supervisor1, created.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, got.Status)
}

// racingDirectory runs a competing claim write the first limit times the
// decision path looks up the claim's employee, landing it between the
// decision's read and its conditional update.
type racingDirectory struct {
	access.UserDirectory
	race  func()
	limit int
	fired int
}

func (d *racingDirectory) GetByID(ctx context.Context, id string) (*models.User, error) {
	if d.fired < d.limit {
		d.fired++
		d.race()
	}
	return d.UserDirectory.GetByID(ctx, id)
}

func TestDecisionRetriesLostRaceOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)

	dir := &racingDirectory{
		UserDirectory: env.users,
		limit:         1,
		race: func() {
			stale, err := env.claims.GetByClaimID(ctx, created.ClaimID)
			require.NoError(t, err)
			stale.AppendTimeline(env.employee.ID, "updated", "")
			require.NoError(t, env.claims.Update(ctx, stale))
		},
	}
	service := env.newService(dir)

	updated, err := service.SupervisorDecision(ctx, env.supervisor1, created.ClaimID, true, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusS1Approved, updated.Status)
	assert.Equal(t, 1, dir.fired, "the lost cycle is rerun exactly once")
}

func TestDecisionSurfacesRepeatedLostRaces(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.service.Create(ctx, env.employee, validDraft())
	require.NoError(t, err)

	dir := &racingDirectory{
		UserDirectory: env.users,
		limit:         2,
		race: func() {
			stale, err := env.claims.GetByClaimID(ctx, created.ClaimID)
			require.NoError(t, err)
			stale.AppendTimeline(env.employee.ID, "updated", "")
			require.NoError(t, env.claims.Update(ctx, stale))
		},
	}
	service := env.newService(dir)

	_, err = service.SupervisorDecision(ctx, env.supervisor1, created.ClaimID, true, "", "")
	assert.True(t, apperror.IsKind(err, apperror.KindConcurrency))
	assert.Equal(t, 2, dir.fired, "one retry, then the conflict surfaces")

	// Both cycles lost, so the decision never landed.
	current, err := env.service.Get(ctx, env.admin, created.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, current.Status)
	assert.Nil(t, current.SupervisorApproval)
}

package workflow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

var (
	testNow    = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	student    = models.Actor{UserID: "stu-1", Role: models.RoleStudent, SchoolID: "school-1", TeamID: "team-1"}
	officer    = models.Actor{UserID: "off-1", Role: models.RoleOffice, OfficeID: "office-1"}
	headmaster = models.Actor{UserID: "hm-1", Role: models.RoleHeadmaster, SchoolID: "school-1"}
	responder  = models.Actor{UserID: "resp-1", Role: models.RoleResponder}
	admin      = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
)

func assignedInspection() *models.Inspection {
	return &models.Inspection{
		ID:       "insp-1",
		TaskName: "Ration office audit",
		OfficeID: "office-1",
		SchoolID: "school-1",
		TeamID:   "team-1",
		Priority: models.PriorityMedium,
		Status:   models.InspectionStatusAssigned,
		Version:  1,
	}
}

func validReport() ReportInput {
	return ReportInput{CleanlinessRating: 4, StaffBehaviorRating: 3, ServiceQualityRating: 5, Issues: "long queue"}
}

func validResponse() ResponseInput {
	return ResponseInput{
		ResponseText: strings.Repeat("We reorganised the counters and added staff. ", 2),
		ActionTaken:  "Added two counters",
	}
}

func validReview(status models.ReviewStatus) ReviewInput {
	return ReviewInput{ReviewStatus: status, ReviewComments: "Reviewed the response and site photos carefully."}
}

func submitted(t *testing.T) *models.Inspection {
	t.Helper()
	tr, err := SubmitReport(assignedInspection(), student, validReport(), testNow)
	require.NoError(t, err)
	return tr.Inspection
}

func responded(t *testing.T) *models.Inspection {
	t.Helper()
	tr, err := RespondAsOffice(submitted(t), officer, validResponse(), testNow.Add(48*time.Hour))
	require.NoError(t, err)
	return tr.Inspection
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, code), "expected %s, got %v", code, err)
}

func TestAssignEmitsNewAssignment(t *testing.T) {
	insp := assignedInspection()
	insp.Status = ""

	tr, err := Assign(insp, admin, testNow)
	require.NoError(t, err)
	assert.Equal(t, models.InspectionStatusAssigned, tr.To)
	assert.Equal(t, models.NotificationNewAssignment, tr.Intent.Type)
	assert.Equal(t, models.Recipient{Kind: models.RecipientTeam, ID: "team-1"}, tr.Intent.Recipient)
	assert.Equal(t, "admin-1", tr.Inspection.CreatedBy)
}

func TestSubmitReport(t *testing.T) {
	current := assignedInspection()
	tr, err := SubmitReport(current, student, validReport(), testNow)
	require.NoError(t, err)

	assert.Equal(t, models.InspectionStatusAssigned, tr.From)
	assert.Equal(t, models.InspectionStatusSubmitted, tr.To)
	require.NotNil(t, tr.Inspection.Report)
	assert.Equal(t, "stu-1", tr.Inspection.Report.SubmittedBy)
	assert.Equal(t, models.RecipientOffice, tr.Intent.Recipient.Kind)
	assert.Nil(t, current.Report, "input must not be mutated")
	assert.Equal(t, models.InspectionStatusAssigned, current.Status)
}

func TestSubmitReportRejectsNonAssignedStatus(t *testing.T) {
	for _, status := range []models.InspectionStatus{
		models.InspectionStatusSubmitted,
		models.InspectionStatusResponded,
		models.InspectionStatusClosed,
		models.InspectionStatusEscalated,
	} {
		t.Run(string(status), func(t *testing.T) {
			insp := assignedInspection()
			insp.Status = status
			_, err := SubmitReport(insp, student, validReport(), testNow)
			requireCode(t, err, appErrors.ErrInvalidState.Code)
		})
	}
}

func TestSubmitReportValidation(t *testing.T) {
	_, err := SubmitReport(assignedInspection(), models.Actor{UserID: "x", TeamID: "team-2"}, validReport(), testNow)
	requireCode(t, err, appErrors.ErrForbidden.Code)

	bad := validReport()
	bad.StaffBehaviorRating = 6
	_, err = SubmitReport(assignedInspection(), student, bad, testNow)
	requireCode(t, err, appErrors.ErrValidation.Code)
	assert.Contains(t, err.Error(), "staff_behavior_rating")
}

func TestRespondAsOffice(t *testing.T) {
	t.Run("without report", func(t *testing.T) {
		insp := assignedInspection()
		insp.Status = models.InspectionStatusSubmitted
		_, err := RespondAsOffice(insp, officer, validResponse(), testNow)
		requireCode(t, err, appErrors.ErrInvalidState.Code)
	})
	t.Run("short text", func(t *testing.T) {
		in := validResponse()
		in.ResponseText = "too short"
		_, err := RespondAsOffice(submitted(t), officer, in, testNow)
		requireCode(t, err, appErrors.ErrValidation.Code)
	})
	t.Run("missing action", func(t *testing.T) {
		in := validResponse()
		in.ActionTaken = "  "
		_, err := RespondAsOffice(submitted(t), officer, in, testNow)
		requireCode(t, err, appErrors.ErrValidation.Code)
	})
	t.Run("other office", func(t *testing.T) {
		_, err := RespondAsOffice(submitted(t), models.Actor{UserID: "o2", Role: models.RoleOffice, OfficeID: "office-2"}, validResponse(), testNow)
		requireCode(t, err, appErrors.ErrForbidden.Code)
	})
	t.Run("twice", func(t *testing.T) {
		_, err := RespondAsOffice(responded(t), officer, validResponse(), testNow)
		requireCode(t, err, appErrors.ErrInvalidState.Code)
	})
	t.Run("success", func(t *testing.T) {
		tr, err := RespondAsOffice(submitted(t), officer, validResponse(), testNow)
		require.NoError(t, err)
		assert.Equal(t, models.InspectionStatusResponded, tr.To)
		assert.Equal(t, "off-1", tr.Inspection.OfficeResponse.RespondedBy)
		assert.Equal(t, models.RecipientResponders, tr.Intent.Recipient.Kind)
	})
	t.Run("after headmaster approval", func(t *testing.T) {
		approved, err := ApproveAsHeadmaster(submitted(t), headmaster, "", testNow)
		require.NoError(t, err)
		tr, err := RespondAsOffice(approved.Inspection, officer, validResponse(), testNow)
		require.NoError(t, err)
		assert.Equal(t, models.InspectionStatusResponded, tr.To)
	})
}

func TestEditOfficeResponsePreservesOriginalAuthor(t *testing.T) {
	insp := responded(t)
	originalAt := insp.OfficeResponse.RespondedAt

	in := validResponse()
	in.ActionTaken = "Hired a new clerk"
	tr, err := EditOfficeResponse(insp, admin, in, testNow.Add(72*time.Hour))
	require.NoError(t, err)

	resp := tr.Inspection.OfficeResponse
	assert.Equal(t, "off-1", resp.RespondedBy)
	assert.Equal(t, originalAt, resp.RespondedAt)
	assert.Equal(t, "Hired a new clerk", resp.ActionTaken)
	require.NotNil(t, resp.EditedBy)
	assert.Equal(t, "admin-1", *resp.EditedBy)
	assert.Equal(t, tr.From, tr.To)
}

func TestEditOfficeResponseBlockedAfterReview(t *testing.T) {
	reviewed, err := ReviewAsGovernment(responded(t), responder, validReview(models.ReviewStatusMoreInfo), testNow)
	require.NoError(t, err)

	_, err = EditOfficeResponse(reviewed.Inspection, officer, validResponse(), testNow)
	requireCode(t, err, appErrors.ErrInvalidState.Code)

	_, err = EditOfficeResponse(submitted(t), officer, validResponse(), testNow)
	requireCode(t, err, appErrors.ErrInvalidState.Code)
}

func TestHeadmasterDecisions(t *testing.T) {
	approved, err := ApproveAsHeadmaster(submitted(t), headmaster, "good work", testNow)
	require.NoError(t, err)
	assert.Equal(t, models.InspectionStatusResponded, approved.To)
	assert.True(t, approved.Inspection.HeadmasterApproval.Approved)
	assert.Equal(t, models.NotificationHeadmasterApproved, approved.Intent.Type)

	rejected, err := RejectAsHeadmaster(submitted(t), headmaster, "photos missing", testNow)
	require.NoError(t, err)
	assert.Equal(t, models.InspectionStatusSubmitted, rejected.To)
	assert.False(t, rejected.Inspection.HeadmasterApproval.Approved)
	assert.Equal(t, models.RecipientTeam, rejected.Intent.Recipient.Kind)

	_, err = ApproveAsHeadmaster(assignedInspection(), headmaster, "", testNow)
	requireCode(t, err, appErrors.ErrInvalidState.Code)

	other := models.Actor{UserID: "hm-2", Role: models.RoleHeadmaster, SchoolID: "school-2"}
	_, err = ApproveAsHeadmaster(submitted(t), other, "", testNow)
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestReviewAsGovernmentRouting(t *testing.T) {
	cases := []struct {
		status models.ReviewStatus
		reason string
		want   models.InspectionStatus
	}{
		{models.ReviewStatusApproved, "", models.InspectionStatusClosed},
		{models.ReviewStatusEscalated, "Repeated complaints about bribes", models.InspectionStatusEscalated},
		{models.ReviewStatusMoreInfo, "", models.InspectionStatusResponded},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			in := validReview(tc.status)
			in.EscalationReason = tc.reason
			in.ActionItems = []string{"visit again", " "}
			tr, err := ReviewAsGovernment(responded(t), responder, in, testNow)
			require.NoError(t, err)
			assert.Equal(t, tc.want, tr.To)
			assert.Equal(t, []string{"visit again"}, tr.Inspection.GovtReview.ActionItems)
			assert.Equal(t, models.NotificationReviewCompleted, tr.Intent.Type)
		})
	}
}

func TestReviewAsGovernmentValidation(t *testing.T) {
	_, err := ReviewAsGovernment(responded(t), responder, validReview(models.ReviewStatusEscalated), testNow)
	requireCode(t, err, appErrors.ErrValidation.Code)

	short := validReview(models.ReviewStatusApproved)
	short.ReviewComments = "ok"
	_, err = ReviewAsGovernment(responded(t), responder, short, testNow)
	requireCode(t, err, appErrors.ErrValidation.Code)

	_, err = ReviewAsGovernment(responded(t), responder, validReview("maybe"), testNow)
	requireCode(t, err, appErrors.ErrValidation.Code)

	_, err = ReviewAsGovernment(submitted(t), responder, validReview(models.ReviewStatusApproved), testNow)
	requireCode(t, err, appErrors.ErrInvalidState.Code)

	_, err = ReviewAsGovernment(responded(t), officer, validReview(models.ReviewStatusApproved), testNow)
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestReviewAsGovernmentOnlyOnce(t *testing.T) {
	tr, err := ReviewAsGovernment(responded(t), responder, validReview(models.ReviewStatusApproved), testNow)
	require.NoError(t, err)
	require.Equal(t, models.InspectionStatusClosed, tr.To)
	require.NotNil(t, tr.Inspection.OfficeResponse)

	_, err = ReviewAsGovernment(tr.Inspection, responder, validReview(models.ReviewStatusMoreInfo), testNow)
	requireCode(t, err, appErrors.ErrInvalidState.Code)
}

func TestOverrideStatus(t *testing.T) {
	tr, err := OverrideStatus(responded(t), admin, OverrideInput{Target: models.InspectionStatusClosed, Reason: "duplicate"}, testNow)
	require.NoError(t, err)
	assert.Equal(t, models.InspectionStatusClosed, tr.To)
	require.NotNil(t, tr.Inspection.AdminOverride)
	assert.Equal(t, models.InspectionStatusResponded, tr.Inspection.AdminOverride.PreviousStatus)
	assert.Nil(t, tr.Inspection.ResponderOverride)

	tr, err = OverrideStatus(assignedInspection(), responder, OverrideInput{Target: models.InspectionStatusEscalated}, testNow)
	require.NoError(t, err)
	require.NotNil(t, tr.Inspection.ResponderOverride)
	assert.Equal(t, "resp-1", tr.Inspection.ResponderOverride.OverriddenBy)

	_, err = OverrideStatus(assignedInspection(), admin, OverrideInput{Target: "archived"}, testNow)
	requireCode(t, err, appErrors.ErrValidation.Code)

	_, err = OverrideStatus(assignedInspection(), student, OverrideInput{Target: models.InspectionStatusClosed}, testNow)
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestReassignClearsDownstreamRecords(t *testing.T) {
	team := &models.Team{ID: "team-2", SchoolID: "school-1", Active: true}
	tr, err := Reassign(responded(t), admin, team, testNow)
	require.NoError(t, err)

	assert.Equal(t, models.InspectionStatusAssigned, tr.To)
	assert.Equal(t, "team-2", tr.Inspection.TeamID)
	assert.Nil(t, tr.Inspection.Report)
	assert.Nil(t, tr.Inspection.OfficeResponse)
	assert.Nil(t, tr.Inspection.GovtReview)
	assert.Nil(t, tr.Inspection.HeadmasterApproval)
	assert.Equal(t, "team-2", tr.Intent.Recipient.ID)
}

func TestReassignGuards(t *testing.T) {
	closed := assignedInspection()
	closed.Status = models.InspectionStatusClosed
	_, err := Reassign(closed, admin, &models.Team{ID: "team-2", SchoolID: "school-1", Active: true}, testNow)
	requireCode(t, err, appErrors.ErrInvalidState.Code)

	_, err = Reassign(assignedInspection(), admin, &models.Team{ID: "team-2", SchoolID: "school-9", Active: true}, testNow)
	requireCode(t, err, appErrors.ErrValidation.Code)

	_, err = Reassign(assignedInspection(), admin, &models.Team{ID: "team-2", SchoolID: "school-1"}, testNow)
	requireCode(t, err, appErrors.ErrValidation.Code)
}

func TestReassignActors(t *testing.T) {
	team := &models.Team{ID: "team-2", SchoolID: "school-1", Active: true}

	tr, err := Reassign(assignedInspection(), responder, team, testNow)
	require.NoError(t, err)
	assert.Equal(t, "team-2", tr.Inspection.TeamID)

	for _, actor := range []models.Actor{headmaster, student, officer} {
		_, err = Reassign(assignedInspection(), actor, team, testNow)
		requireCode(t, err, appErrors.ErrForbidden.Code)
	}
}

func TestStateProgressionIsMonotonic(t *testing.T) {
	order := map[models.InspectionStatus]int{
		models.InspectionStatusAssigned:  0,
		models.InspectionStatusSubmitted: 1,
		models.InspectionStatusResponded: 2,
		models.InspectionStatusClosed:    3,
		models.InspectionStatusEscalated: 3,
	}
	steps := []func(*models.Inspection) (*Transition, error){
		func(i *models.Inspection) (*Transition, error) { return SubmitReport(i, student, validReport(), testNow) },
		func(i *models.Inspection) (*Transition, error) { return RespondAsOffice(i, officer, validResponse(), testNow) },
		func(i *models.Inspection) (*Transition, error) {
			return ReviewAsGovernment(i, responder, validReview(models.ReviewStatusMoreInfo), testNow)
		},
		func(i *models.Inspection) (*Transition, error) {
			in := validReview(models.ReviewStatusEscalated)
			in.EscalationReason = "office ignored the findings"
			return ReviewAsGovernment(i, responder, in, testNow)
		},
	}
	current := assignedInspection()
	for _, step := range steps {
		tr, err := step(current)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, order[tr.To], order[tr.From])
		current = tr.Inspection
	}
	assert.Equal(t, models.InspectionStatusEscalated, current.Status)
}

func TestCloseForResolution(t *testing.T) {
	for _, status := range models.InspectionStatuses {
		insp := assignedInspection()
		insp.Status = status
		tr := CloseForResolution(insp, testNow)
		assert.Equal(t, models.InspectionStatusClosed, tr.Inspection.Status)
		assert.Equal(t, status, tr.From)
	}
}

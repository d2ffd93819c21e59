package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolmesh/escalation/completion"
	"github.com/schoolmesh/escalation/core"
	"github.com/schoolmesh/escalation/identity"
	"github.com/schoolmesh/escalation/internal/testutil"
)

func studentRoster() *identity.Resolver {
	roster := identity.NewStaticRoster()
	roster.Add("school-a", RosterScopeStudents,
		identity.Entry{ID: "s1", Name: "Adeboye Johnson", Role: "student"},
		identity.Entry{ID: "s2", Name: "Adebayo Johnson", Role: "student"},
		identity.Entry{ID: "s3", Name: "Chidi Okafor", Role: "student"},
	)
	return identity.NewResolver(roster)
}

func teacherTurn(body string, recent ...core.Turn) *core.TurnContext {
	msg := testutil.Inbound("school-a", "+234teacher", body)
	return core.NewTurnContext(context.Background(), msg, recent, nil)
}

func TestParseAmendment(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		student string
		subject string
		score   string
	}{
		{"plain", "change Chidi Okafor's math score to 78", "Chidi Okafor", "math", "78"},
		{"polite", "please change adeboye johson's math score to 78", "adeboye johson", "math", "78"},
		{"amend", "amend Chidi Okafor's english mark to 65", "Chidi Okafor", "english", "65"},
		{"from-to", "correct Chidi Okafor's math score from 68 to 78", "Chidi Okafor", "math", "78"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := parseAmendment(tt.text)
			require.NotNil(t, req)
			assert.Equal(t, tt.student, req.student)
			assert.Equal(t, tt.subject, req.subject)
			assert.Equal(t, tt.score, req.newScore)
		})
	}

	assert.Nil(t, parseAmendment("what time is assembly tomorrow?"))
	assert.Nil(t, parseAmendment("the marks are all entered"))
}

func TestAmendmentEscalates(t *testing.T) {
	a := NewTeacherAgent("teacher", studentRoster())

	result, err := a.HandleTurn(teacherTurn("please change Chidi Okafor's math score to 78"))
	require.NoError(t, err)

	require.NotNil(t, result.Intent)
	assert.Equal(t, EscalationTypeMarkAmendment, result.Intent.Type)
	assert.Equal(t, core.KindTeacher, result.Intent.OriginKind)
	assert.Equal(t, "s3", result.Intent.Payload["student_id"])
	assert.Equal(t, "78", result.Intent.Payload["new_score"])
	assert.Contains(t, result.Intent.NeededDescription, "Chidi Okafor")
	assert.ElementsMatch(t, []string{"approve", "deny"}, result.Intent.AllowedActions)

	assert.Contains(t, result.ReplyText, "approval")
	assert.NotContains(t, result.ReplyText, "done")
}

func TestAmbiguousStudentAsksFirst(t *testing.T) {
	a := NewTeacherAgent("teacher", studentRoster())

	result, err := a.HandleTurn(teacherTurn("please change adeboye johson's math score to 78"))
	require.NoError(t, err)

	assert.Nil(t, result.Intent, "no escalation while the student is ambiguous")
	assert.Contains(t, result.ReplyText, "Did you mean")
	assert.Contains(t, result.ReplyText, "Adeboye Johnson")
	assert.Contains(t, result.ReplyText, "Adebayo Johnson")
}

func TestClarifiedNameContinuesAmendment(t *testing.T) {
	a := NewTeacherAgent("teacher", studentRoster())

	recent := []core.Turn{
		testutil.Turn("school-a", "+234teacher", "user", "please change adeboye johson's math score to 78"),
		testutil.Turn("school-a", "+234teacher", "assistant",
			`I found more than one possible match for "adeboye johson". Did you mean Adeboye Johnson or Adebayo Johnson?`),
	}

	result, err := a.HandleTurn(teacherTurn("Adeboye Johnson", recent...))
	require.NoError(t, err)

	require.NotNil(t, result.Intent)
	assert.Equal(t, "s1", result.Intent.Payload["student_id"])
	assert.Equal(t, "math", result.Intent.Payload["subject"])
	assert.Equal(t, "78", result.Intent.Payload["new_score"])
}

func TestUnknownStudent(t *testing.T) {
	a := NewTeacherAgent("teacher", studentRoster())

	result, err := a.HandleTurn(teacherTurn("change Zainab Musa's math score to 70"))
	require.NoError(t, err)

	assert.Nil(t, result.Intent)
	assert.Contains(t, result.ReplyText, "couldn't find")
}

func TestResumptionApproval(t *testing.T) {
	a := NewTeacherAgent("teacher", studentRoster())

	e := testutil.Escalation("school-a", core.StateResolved)
	tc := core.NewResumptionContext(context.Background(), e, "administrator approved", nil)

	result, err := a.HandleTurn(tc)
	require.NoError(t, err)
	assert.Nil(t, result.Intent)
	assert.Contains(t, result.ReplyText, "approved")
	assert.Contains(t, result.ReplyText, e.NeededDescription)
}

func TestResumptionDenialCarriesInstruction(t *testing.T) {
	a := NewTeacherAgent("teacher", studentRoster())

	e := testutil.Escalation("school-a", core.StateResolved, func(e *core.Escalation) {
		e.Decision.Action = "deny"
		e.Decision.Instruction = "Please come and see me first."
	})
	tc := core.NewResumptionContext(context.Background(), e, "administrator denied", nil)

	result, err := a.HandleTurn(tc)
	require.NoError(t, err)
	assert.Contains(t, result.ReplyText, "could not be approved")
	assert.Contains(t, result.ReplyText, "come and see me first")
}

func TestCompleterFailureFallsBackToTemplate(t *testing.T) {
	mock := completion.NewMockCompleter("test")
	mock.FailWith(errors.New("provider down"))

	a := NewTeacherAgent("teacher", studentRoster(), func(o *TeacherOptions) {
		o.Completer = mock
	})

	result, err := a.HandleTurn(teacherTurn("change Chidi Okafor's math score to 78"))
	require.NoError(t, err, "a dead completer never fails the turn")
	require.NotNil(t, result.Intent)
	assert.Contains(t, result.ReplyText, "approval")
}

func TestReporterFromDirectory(t *testing.T) {
	a := NewTeacherAgent("teacher", studentRoster(), func(o *TeacherOptions) {
		o.Directory = func(tenantID, address string) (string, string, bool) {
			if address == "+234teacher" {
				return "Mrs. Bello", "teacher", true
			}
			return "", "", false
		}
	})

	result, err := a.HandleTurn(teacherTurn("change Chidi Okafor's math score to 78"))
	require.NoError(t, err)
	require.NotNil(t, result.Intent)
	assert.Equal(t, "Mrs. Bello", result.Intent.ReporterName)
	assert.Equal(t, "teacher", result.Intent.ReporterRole)
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/models"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func newTestRepo(t *testing.T) (*PlanRepository, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewPlanRepository(db, logger.NewTestLogger(t))
	repo.newID = func() string { return "11111111-2222-3333-4444-555555555555" }
	repo.now = func() time.Time { return fixedNow }
	return repo, mock, db
}

func TestCreate(t *testing.T) {
	repo, mock, _ := newTestRepo(t)

	answers := []models.QuestionAnswerTurn{{Question: "Who?", Answer: "Home baristas"}}
	answersJSON, _ := json.Marshal(answers)

	mock.ExpectExec(`INSERT INTO business_plans`).
		WithArgs("11111111-2222-3333-4444-555555555555", "proj-1", "generating", "coffee subscription box", answersJSON, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := repo.Create(context.Background(), models.PlanSeed{
		ProjectID:    "proj-1",
		BusinessIdea: "coffee subscription box",
		Request:      models.GenerationRequest{Answers: answers},
	})

	require.NoError(t, err)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DatabaseError(t *testing.T) {
	repo, mock, _ := newTestRepo(t)

	mock.ExpectExec(`INSERT INTO business_plans`).WillReturnError(fmt.Errorf("connection reset"))

	_, err := repo.Create(context.Background(), models.PlanSeed{ProjectID: "proj-1"})
	assert.True(t, errors.Is(err, errors.ErrDatabaseQuery))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdates(t *testing.T) {
	sections := models.SectionSet{models.SectionExecutiveSummary: "<p>x</p>"}
	sectionsJSON, _ := json.Marshal(sections)

	tests := []struct {
		name  string
		query string
		value interface{}
		call  func(r *PlanRepository) error
	}{
		{
			"set status",
			`UPDATE business_plans SET status = \$2, updated_at = \$3 WHERE id = \$1`,
			"title_generated",
			func(r *PlanRepository) error {
				return r.SetStatus(context.Background(), "plan-1", models.PlanStatusTitleGenerated)
			},
		},
		{
			"set title",
			`UPDATE business_plans SET title = \$2`,
			"Bean Box",
			func(r *PlanRepository) error { return r.SetTitle(context.Background(), "plan-1", "Bean Box") },
		},
		{
			"set sections",
			`UPDATE business_plans SET sections = \$2`,
			sectionsJSON,
			func(r *PlanRepository) error { return r.SetSections(context.Background(), "plan-1", sections) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, _ := newTestRepo(t)
			mock.ExpectExec(tt.query).
				WithArgs("plan-1", tt.value, fixedNow).
				WillReturnResult(sqlmock.NewResult(0, 1))

			require.NoError(t, tt.call(repo))
			assert.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run(tt.name+" unknown plan", func(t *testing.T) {
			repo, mock, _ := newTestRepo(t)
			mock.ExpectExec(tt.query).WillReturnResult(sqlmock.NewResult(0, 0))

			err := tt.call(repo)
			assert.True(t, errors.Is(err, errors.ErrPlanNotFound))
		})
	}
}

func TestSetFailed(t *testing.T) {
	repo, mock, _ := newTestRepo(t)

	payload, _ := json.Marshal(errors.GenericFailurePayload())
	mock.ExpectExec(`UPDATE business_plans\s+SET status = \$2, generation_error = \$3`).
		WithArgs("plan-1", "failed", payload, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetFailed(context.Background(), "plan-1", errors.GenericFailurePayload()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSuggestion_DefaultsPriority(t *testing.T) {
	repo, mock, _ := newTestRepo(t)

	mock.ExpectExec(`INSERT INTO plan_suggestions`).
		WithArgs(sqlmock.AnyArg(), "plan-1", "marketing", "Partner with cafes", "medium", fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.AddSuggestion(context.Background(), "plan-1", models.SuggestionItem{Type: "marketing", Content: "Partner with cafes"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	repo, mock, _ := newTestRepo(t)

	rows := sqlmock.NewRows([]string{
		"id", "project_id", "title", "status", "business_idea", "sections", "generation_error", "created_at", "updated_at",
	}).AddRow(
		"plan-1", "proj-1", "Bean Box", "completed", "coffee subscription box",
		[]byte(`{"executive_summary":"<p>x</p>"}`), nil, fixedNow, fixedNow,
	)
	mock.ExpectQuery(`SELECT id, project_id, title, status, business_idea, sections, generation_error, created_at, updated_at\s+FROM business_plans`).
		WithArgs("plan-1").
		WillReturnRows(rows)

	plan, err := repo.Get(context.Background(), "plan-1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusCompleted, plan.Status)
	assert.Equal(t, "Bean Box", plan.Title)
	assert.Equal(t, "<p>x</p>", plan.Sections[models.SectionExecutiveSummary])
	assert.Nil(t, plan.GenerationError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, _ := newTestRepo(t)

	mock.ExpectQuery(`SELECT id, project_id`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, errors.ErrPlanNotFound))
}

func TestSuggestions(t *testing.T) {
	repo, mock, _ := newTestRepo(t)

	mock.ExpectQuery(`SELECT type, content, priority\s+FROM plan_suggestions`).
		WithArgs("plan-1").
		WillReturnRows(sqlmock.NewRows([]string{"type", "content", "priority"}).
			AddRow("marketing", "Partner with cafes", "high").
			AddRow("finance", "Track churn", "medium"))

	items, err := repo.Suggestions(context.Background(), "plan-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "high", items[0].Priority)
	assert.NoError(t, mock.ExpectationsWereMet())
}

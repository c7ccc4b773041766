// Package repository stores business plans in PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/models"
)

type PlanRepository struct {
	db     *sql.DB
	logger logger.Logger
	newID  func() string
	now    func() time.Time
}

var _ models.PlanRepository = (*PlanRepository)(nil)

func NewPlanRepository(db *sql.DB, log logger.Logger) *PlanRepository {
	return &PlanRepository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "plan-repository"}),
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Create inserts a plan in status generating together with the answers it
// is generated from.
func (r *PlanRepository) Create(ctx context.Context, seed models.PlanSeed) (string, error) {
	answers, err := json.Marshal(seed.Request.Answers)
	if err != nil {
		return "", errors.NewDatabaseQueryError("create plan", fmt.Errorf("marshal answers: %w", err))
	}

	id := r.newID()
	createdAt := r.now().UTC()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO business_plans (
			id, project_id, status, business_idea, answers, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		id,
		seed.ProjectID,
		string(models.PlanStatusGenerating),
		seed.BusinessIdea,
		answers,
		createdAt,
	)
	if err != nil {
		return "", errors.NewDatabaseQueryError("create plan", err)
	}

	r.logger.Info("plan record created", map[string]interface{}{
		"planId":    id,
		"projectId": seed.ProjectID,
	})
	return id, nil
}

func (r *PlanRepository) SetStatus(ctx context.Context, planID string, status models.PlanStatus) error {
	return r.update(ctx, "set status", planID,
		`UPDATE business_plans SET status = $2, updated_at = $3 WHERE id = $1`,
		string(status))
}

func (r *PlanRepository) SetTitle(ctx context.Context, planID, title string) error {
	return r.update(ctx, "set title", planID,
		`UPDATE business_plans SET title = $2, updated_at = $3 WHERE id = $1`,
		title)
}

// SetSections writes the whole section set in one statement.
func (r *PlanRepository) SetSections(ctx context.Context, planID string, sections models.SectionSet) error {
	raw, err := json.Marshal(sections)
	if err != nil {
		return errors.NewDatabaseQueryError("set sections", err)
	}
	return r.update(ctx, "set sections", planID,
		`UPDATE business_plans SET sections = $2, updated_at = $3 WHERE id = $1`,
		raw)
}

// SetFailed sets status failed and the error payload in one statement.
func (r *PlanRepository) SetFailed(ctx context.Context, planID string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.NewDatabaseQueryError("set failed", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE business_plans
		SET status = $2, generation_error = $3, updated_at = $4
		WHERE id = $1`,
		planID, string(models.PlanStatusFailed), raw, r.now().UTC())
	if err != nil {
		return errors.NewDatabaseQueryError("set failed", err)
	}
	return checkAffected(res, planID)
}

func (r *PlanRepository) AddSuggestion(ctx context.Context, planID string, item models.SuggestionItem) error {
	item = item.Normalized()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO plan_suggestions (id, plan_id, type, content, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.newID(), planID, item.Type, item.Content, item.Priority, r.now().UTC())
	if err != nil {
		return errors.NewDatabaseQueryError("add suggestion", err)
	}
	return nil
}

func (r *PlanRepository) Get(ctx context.Context, planID string) (*models.Plan, error) {
	var (
		plan            models.Plan
		status          string
		sections        []byte
		generationError []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, status, business_idea, sections, generation_error, created_at, updated_at
		FROM business_plans
		WHERE id = $1`, planID).Scan(
		&plan.ID,
		&plan.ProjectID,
		&plan.Title,
		&status,
		&plan.BusinessIdea,
		&sections,
		&generationError,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewPlanNotFoundError(planID)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryError("get plan", err)
	}

	plan.Status = models.PlanStatus(status)
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &plan.Sections); err != nil {
			r.logger.Warn("stored sections are not valid JSON", map[string]interface{}{
				"planId": planID,
				"error":  err,
			})
		}
	}
	if len(generationError) > 0 {
		plan.GenerationError = json.RawMessage(generationError)
	}
	return &plan, nil
}

// Suggestions lists the suggestions stored for a plan, oldest first.
func (r *PlanRepository) Suggestions(ctx context.Context, planID string) ([]models.SuggestionItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT type, content, priority
		FROM plan_suggestions
		WHERE plan_id = $1
		ORDER BY created_at`, planID)
	if err != nil {
		return nil, errors.NewDatabaseQueryError("list suggestions", err)
	}
	defer rows.Close()

	var out []models.SuggestionItem
	for rows.Next() {
		var item models.SuggestionItem
		if err := rows.Scan(&item.Type, &item.Content, &item.Priority); err != nil {
			return nil, errors.NewDatabaseQueryError("list suggestions", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryError("list suggestions", err)
	}
	return out, nil
}

func (r *PlanRepository) update(ctx context.Context, op, planID, query string, value interface{}) error {
	res, err := r.db.ExecContext(ctx, query, planID, value, r.now().UTC())
	if err != nil {
		return errors.NewDatabaseQueryError(op, err)
	}
	return checkAffected(res, planID)
}

func checkAffected(res sql.Result, planID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewDatabaseQueryError("rows affected", err)
	}
	if n == 0 {
		return errors.NewPlanNotFoundError(planID)
	}
	return nil
}

// Package search indexes finished business plans in Elasticsearch.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/models"
)

const DefaultIndex = "business-plans"

// Document is the indexed form of a plan.
type Document struct {
	PlanID       string            `json:"planId"`
	ProjectID    string            `json:"projectId"`
	Status       string            `json:"status"`
	Title        string            `json:"title"`
	BusinessIdea string            `json:"businessIdea"`
	Sections     models.SectionSet `json:"sections,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// PlanIndexer writes one document per plan, keyed by plan id, whenever a
// generation run finishes.
type PlanIndexer struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewPlanIndexer(es *elasticsearch.Client, index string, log logger.Logger) *PlanIndexer {
	if index == "" {
		index = DefaultIndex
	}
	return &PlanIndexer{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "plan-indexer", "index": index}),
	}
}

func (i *PlanIndexer) Name() string { return "elasticsearch" }

func (i *PlanIndexer) OnPlanFinished(ctx context.Context, plan *models.Plan, _ models.GenerationRequest) error {
	doc := Document{
		PlanID:       plan.ID,
		ProjectID:    plan.ProjectID,
		Status:       string(plan.Status),
		Title:        plan.Title,
		BusinessIdea: plan.BusinessIdea,
		Sections:     plan.Sections,
		UpdatedAt:    plan.UpdatedAt,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.NewIndexingFailedError(plan.ID, err)
	}

	res, err := i.es.Index(i.index, bytes.NewReader(body),
		i.es.Index.WithContext(ctx),
		i.es.Index.WithDocumentID(plan.ID),
	)
	if err != nil {
		return errors.NewIndexingFailedError(plan.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return errors.NewIndexingFailedError(plan.ID, fmt.Errorf("%s: %s", res.Status(), msg))
	}

	i.logger.Debug("plan indexed", map[string]interface{}{"planId": plan.ID, "status": plan.Status})
	return nil
}

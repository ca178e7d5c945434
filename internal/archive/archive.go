// Package archive keeps a full-text index of finished runs so past answers
// can be found by question, answer or explored file.
package archive

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/rferag/internal/runstore"
)

// Hit is one search result.
type Hit struct {
	RunID    string
	Score    float64
	Question string
	Status   string
	Started  time.Time
}

// Index is a bleve index of runs.
type Index struct {
	index  bleve.Index
	path   string
	logger *zap.Logger
}

// Open opens the index at path, creating it if needed. A corrupted index is
// deleted and recreated; the run history stays in the run store.
func Open(path string, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create archive index: %w", err)
		}
		logger.Debug("archive index created", zap.String("path", path))
	} else if err != nil {
		logger.Warn("archive index unreadable, recreating", zap.String("path", path), zap.Error(err))
		if idx != nil {
			idx.Close()
		}
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("failed to remove corrupted archive index: %w", err)
		}
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to recreate archive index: %w", err)
		}
	}
	return &Index{index: idx, path: path, logger: logger}, nil
}

// NewMemory creates an in-memory index.
func NewMemory() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create archive index: %w", err)
	}
	return &Index{index: idx, logger: zap.NewNop()}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	runMapping := bleve.NewDocumentMapping()

	keywordField := func(store bool) *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = store
		f.Index = true
		return f
	}
	textField := func(store bool) *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = standard.Name
		f.Store = store
		f.Index = true
		return f
	}

	runMapping.AddFieldMappingsAt("status", keywordField(true))
	runMapping.AddFieldMappingsAt("route", keywordField(false))
	runMapping.AddFieldMappingsAt("question", textField(true))
	runMapping.AddFieldMappingsAt("answer", textField(false))
	runMapping.AddFieldMappingsAt("context", textField(false))

	started := bleve.NewDateTimeFieldMapping()
	started.Store = true
	runMapping.AddFieldMappingsAt("started_at", started)

	indexMapping.DefaultMapping = runMapping
	return indexMapping
}

// Add indexes (or re-indexes) a run.
func (x *Index) Add(r *runstore.Run) error {
	doc := map[string]interface{}{
		"status":     string(r.Status),
		"route":      string(r.Route),
		"question":   r.Question,
		"answer":     r.Answer,
		"context":    r.Context,
		"started_at": r.StartedAt,
	}
	if err := x.index.Index(r.ID, doc); err != nil {
		return fmt.Errorf("failed to index run %s: %w", r.ID, err)
	}
	return nil
}

// Record is a runstore.Recorder OnFinished callback. Failures are logged.
func (x *Index) Record(r *runstore.Run) {
	if err := x.Add(r); err != nil {
		x.logger.Warn("run not archived", zap.String("run_id", r.ID), zap.Error(err))
	}
}

// Delete removes a run from the index.
func (x *Index) Delete(runID string) error {
	return x.index.Delete(runID)
}

// Search returns the k best runs matching text. A non-empty status keeps only
// runs with that status.
func (x *Index) Search(text string, status runstore.Status, k int) ([]Hit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty search query")
	}
	if k <= 0 {
		k = 10
	}

	var q query.Query = bleve.NewMatchQuery(text)
	if status != "" {
		statusQuery := bleve.NewTermQuery(string(status))
		statusQuery.SetField("status")
		q = bleve.NewConjunctionQuery(q, statusQuery)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = k
	req.Fields = []string{"question", "status", "started_at"}

	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("archive search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{RunID: h.ID, Score: h.Score}
		if v, ok := h.Fields["question"].(string); ok {
			hit.Question = v
		}
		if v, ok := h.Fields["status"].(string); ok {
			hit.Status = v
		}
		if v, ok := h.Fields["started_at"].(string); ok {
			hit.Started, _ = time.Parse(time.RFC3339, v)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the number of archived runs.
func (x *Index) Count() (uint64, error) {
	return x.index.DocCount()
}

// Close closes the index.
func (x *Index) Close() error {
	return x.index.Close()
}

// Path returns the on-disk location; empty for memory indexes.
func (x *Index) Path() string {
	return x.path
}

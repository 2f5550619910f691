// Package es indexes published leaf indicators in Elasticsearch and searches them.
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"blgu-assess-go/internal/config"
	"blgu-assess-go/internal/model"
	"blgu-assess-go/pkg/log"
)

var ESClient *elasticsearch.Client

const indexMapping = `{
	"mappings": {
		"properties": {
			"doc_id": { "type": "keyword" },
			"draft_id": { "type": "long" },
			"draft_version": { "type": "long" },
			"governance_area_id": { "type": "integer" },
			"indicator_id": { "type": "keyword" },
			"code": { "type": "keyword" },
			"name": { "type": "text" },
			"description": { "type": "text" },
			"checklist_text": { "type": "text" },
			"validation_rule": { "type": "keyword" }
		}
	}
}`

// InitES connects the shared client and creates the indicator index if needed.
func InitES(esCfg config.ElasticsearchConfig) error {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(client, esCfg.IndexName)
}

func createIndexIfNotExists(client *elasticsearch.Client, indexName string) error {
	res, err := client.Indices.Exists([]string{indexName})
	if err != nil {
		return fmt.Errorf("check index %s: %w", indexName, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("index '%s' already exists", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status %d checking index %s", res.StatusCode, indexName)
	}

	res, err = client.Indices.Create(indexName, client.Indices.Create.WithBody(strings.NewReader(indexMapping)))
	if err != nil {
		return fmt.Errorf("create index %s: %w", indexName, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("creating index '%s' failed: %s", indexName, res.String())
		return errors.New("elasticsearch rejected index creation")
	}
	log.Infof("index '%s' created", indexName)
	return nil
}

// IndicatorIndex reads and writes indicator documents in one index.
type IndicatorIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewIndicatorIndex(client *elasticsearch.Client, index string) *IndicatorIndex {
	return &IndicatorIndex{client: client, index: index}
}

// ReplaceDraft removes every document of draftID and indexes docs in one
// bulk request, so a republished draft never leaves stale indicators behind.
func (x *IndicatorIndex) ReplaceDraft(ctx context.Context, draftID uint, docs []model.IndicatorDocument) error {
	del := map[string]any{"query": map[string]any{"term": map[string]any{"draft_id": draftID}}}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(del); err != nil {
		return err
	}
	res, err := x.client.DeleteByQuery([]string{x.index}, &buf,
		x.client.DeleteByQuery.WithContext(ctx),
		x.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("delete draft %d documents: %w", draftID, err)
	}
	res.Body.Close()

	if len(docs) == 0 {
		return nil
	}
	body, err := bulkBody(docs)
	if err != nil {
		return err
	}
	req := esapi.BulkRequest{
		Index:   x.index,
		Body:    bytes.NewReader(body),
		Refresh: "true",
	}
	res, err = req.Do(ctx, x.client)
	if err != nil {
		return fmt.Errorf("bulk index draft %d: %w", draftID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("bulk indexing draft %d failed: %s", draftID, res.String())
		return errors.New("failed to index indicators")
	}

	var out struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err == nil && out.Errors {
		return errors.New("some indicators were not indexed")
	}
	return nil
}

// bulkBody renders docs as the NDJSON body of a bulk index request.
func bulkBody(docs []model.IndicatorDocument) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range docs {
		meta := map[string]any{"index": map[string]any{"_id": d.DocID}}
		if err := enc.Encode(meta); err != nil {
			return nil, err
		}
		if err := enc.Encode(d); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Search runs a full-text query over indicator names, descriptions and
// checklist labels. Codes match exactly and rank first. A positive
// governanceAreaID restricts the search to that area.
func (x *IndicatorIndex) Search(ctx context.Context, query string, governanceAreaID, size int) ([]model.IndicatorSearchHit, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(BuildSearchQuery(query, governanceAreaID, size)); err != nil {
		return nil, fmt.Errorf("encode es query: %w", err)
	}
	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.index),
		x.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Errorf("elasticsearch search error, status: %s, body: %s", res.Status(), string(body))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}
	return decodeHits(res.Body)
}

func decodeHits(r io.Reader) ([]model.IndicatorSearchHit, error) {
	var resp struct {
		Hits struct {
			Hits []struct {
				Source model.IndicatorDocument `json:"_source"`
				Score  float64                 `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode es response: %w", err)
	}
	hits := make([]model.IndicatorSearchHit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		hits = append(hits, model.IndicatorSearchHit{
			DraftID:          h.Source.DraftID,
			GovernanceAreaID: h.Source.GovernanceAreaID,
			IndicatorID:      h.Source.IndicatorID,
			Code:             h.Source.Code,
			Name:             h.Source.Name,
			Description:      h.Source.Description,
			Score:            h.Score,
		})
	}
	return hits, nil
}

var (
	reNoise = regexp.MustCompile(`[^\p{L}\p{N}.\s]+`)
	reSpace = regexp.MustCompile(`\s+`)
	reCode  = regexp.MustCompile(`^\d+(\.\d+)*$`)
)

// NormalizeQuery lower-cases q, drops punctuation other than the dots of
// indicator codes and collapses whitespace.
func NormalizeQuery(q string) string {
	s := reNoise.ReplaceAllString(strings.ToLower(q), " ")
	return strings.TrimSpace(reSpace.ReplaceAllString(s, " "))
}

// BuildSearchQuery renders the search body for query.
func BuildSearchQuery(query string, governanceAreaID, size int) map[string]any {
	normalized := NormalizeQuery(query)
	should := []map[string]any{
		{"multi_match": map[string]any{
			"query":  normalized,
			"fields": []string{"name^3", "description", "checklist_text"},
		}},
		{"match_phrase": map[string]any{
			"name": map[string]any{"query": normalized, "boost": 2.0},
		}},
	}
	if reCode.MatchString(normalized) {
		should = append(should,
			map[string]any{"term": map[string]any{"code": map[string]any{"value": normalized, "boost": 10.0}}},
			map[string]any{"prefix": map[string]any{"code": map[string]any{"value": normalized + ".", "boost": 5.0}}},
		)
	}
	boolQuery := map[string]any{
		"should":               should,
		"minimum_should_match": 1,
	}
	if governanceAreaID > 0 {
		boolQuery["filter"] = []map[string]any{
			{"term": map[string]any{"governance_area_id": governanceAreaID}},
		}
	}
	return map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"size":  size,
	}
}

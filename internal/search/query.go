package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Sort orders.
const (
	SortRelevance = "relevance"
	SortTitle     = "title"
	SortRating    = "rating"
	SortRecent    = "recent"
)

// Params configures a search.
type Params struct {
	Query string
	Types []DocType // empty means all

	Language  string  // exact ISO 639-1 code
	Shelf     string  // exact shelf name
	MinRating float64 // publications only

	Limit  int
	Offset int
	Sort   string

	Facets    bool
	Highlight bool
}

// Result is one page of hits.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
	Facets Facets `json:"facets,omitzero"`
}

// Hit is a matched document.
type Hit struct {
	Type       DocType           `json:"type"`
	ID         int64             `json:"id"`
	Score      float64           `json:"score"`
	Title      string            `json:"title"`
	Writers    []string          `json:"writers,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Facets are value counts over the matching documents.
type Facets struct {
	Types     []FacetCount `json:"types,omitempty"`
	Languages []FacetCount `json:"languages,omitempty"`
	Shelves   []FacetCount `json:"shelves,omitempty"`
}

// FacetCount is one facet value.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search runs params against the index.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, params.Offset, false)
	req.Fields = []string{"type", "title", "writers"}
	applySort(req, params.Sort)

	if params.Facets {
		req.AddFacet("type", bleve.NewFacetRequest("type", 10))
		req.AddFacet("language", bleve.NewFacetRequest("language", 20))
		req.AddFacet("shelves", bleve.NewFacetRequest("shelves", 20))
	}
	if params.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("title")
		req.Highlight.AddField("writers")
	}

	s.mu.RLock()
	res, err := s.index.SearchInContext(ctx, req)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		t, id, err := ParseDocID(h.ID)
		if err != nil {
			s.logger.Warn("skipping malformed search hit", "doc_id", h.ID)
			continue
		}
		hit := Hit{Type: t, ID: id, Score: h.Score}
		if title, ok := h.Fields["title"].(string); ok {
			hit.Title = title
		}
		hit.Writers = stringsField(h.Fields["writers"])
		if len(h.Fragments) > 0 {
			hit.Highlights = make(map[string]string, len(h.Fragments))
			for field, fragments := range h.Fragments {
				if len(fragments) > 0 {
					hit.Highlights[field] = fragments[0]
				}
			}
		}
		out.Hits = append(out.Hits, hit)
	}

	if params.Facets {
		out.Facets = Facets{
			Types:     facetCounts(res, "type"),
			Languages: facetCounts(res, "language"),
			Shelves:   facetCounts(res, "shelves"),
		}
	}
	return out, nil
}

// stringsField normalizes a stored field that Bleve returns as a string for
// one value and []any for several.
func stringsField(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// buildQuery matches titles with the highest boost, writer names next, then
// publisher and description. Typos within one edit still match titles.
func buildQuery(p Params) query.Query {
	var must []query.Query

	if q := strings.TrimSpace(p.Query); q != "" {
		title := bleve.NewMatchQuery(q)
		title.SetField("title")
		title.SetBoost(3)

		writers := bleve.NewMatchQuery(q)
		writers.SetField("writers")
		writers.SetBoost(2)

		publisher := bleve.NewMatchQuery(q)
		publisher.SetField("publisher")
		publisher.SetBoost(0.5)

		description := bleve.NewMatchQuery(q)
		description.SetField("description")
		description.SetBoost(0.3)

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetField("title")
		fuzzy.SetFuzziness(1)
		fuzzy.SetBoost(0.8)

		anyOf := []query.Query{title, writers, publisher, description, fuzzy}
		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("title")
			prefix.SetBoost(0.5)
			anyOf = append(anyOf, prefix)
		}
		must = append(must, bleve.NewDisjunctionQuery(anyOf...))
	}

	if len(p.Types) > 0 {
		types := make([]query.Query, len(p.Types))
		for i, t := range p.Types {
			tq := bleve.NewTermQuery(string(t))
			tq.SetField("type")
			types[i] = tq
		}
		must = append(must, bleve.NewDisjunctionQuery(types...))
	}

	if p.Language != "" {
		lq := bleve.NewTermQuery(p.Language)
		lq.SetField("language")
		must = append(must, lq)
	}

	if p.Shelf != "" {
		sq := bleve.NewTermQuery(p.Shelf)
		sq.SetField("shelves")
		must = append(must, sq)
	}

	if p.MinRating > 0 {
		minRating := p.MinRating
		inclusive := true
		rq := bleve.NewNumericRangeInclusiveQuery(&minRating, nil, &inclusive, nil)
		rq.SetField("average_rating")
		must = append(must, rq)
	}

	switch len(must) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return must[0]
	default:
		return bleve.NewConjunctionQuery(must...)
	}
}

func applySort(req *bleve.SearchRequest, sort string) {
	switch sort {
	case SortTitle:
		req.SortBy([]string{"title", "_id"})
	case SortRating:
		req.SortBy([]string{"-average_rating", "-_score"})
	case SortRecent:
		req.SortBy([]string{"-updated_at"})
	default:
		req.SortBy([]string{"-_score", "_id"})
	}
}

func facetCounts(res *bleve.SearchResult, name string) []FacetCount {
	f, ok := res.Facets[name]
	if !ok || f.Terms == nil {
		return nil
	}
	var out []FacetCount
	for _, term := range f.Terms.Terms() {
		out = append(out, FacetCount{Value: term.Term, Count: term.Count})
	}
	return out
}

package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping returns the catalog mapping. Titles and writer names are
// stored with term vectors for highlighting; shelves, language, ISBN and type
// are keywords for exact filtering and facets.
func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = en.AnalyzerName

	doc := bleve.NewDocumentMapping()

	text := func(analyzer string, store, vectors bool) *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = analyzer
		f.Store = store
		f.IncludeTermVectors = vectors
		return f
	}
	number := func() *mapping.FieldMapping {
		f := bleve.NewNumericFieldMapping()
		f.Store = true
		return f
	}

	doc.AddFieldMappingsAt("title", text(en.AnalyzerName, true, true))
	doc.AddFieldMappingsAt("writers", text(simple.Name, true, true))
	doc.AddFieldMappingsAt("publisher", text(simple.Name, true, false))
	doc.AddFieldMappingsAt("description", text(en.AnalyzerName, false, false))

	doc.AddFieldMappingsAt("type", text(keyword.Name, true, false))
	doc.AddFieldMappingsAt("isbn", text(keyword.Name, true, false))
	doc.AddFieldMappingsAt("language", text(keyword.Name, true, false))
	doc.AddFieldMappingsAt("shelves", text(keyword.Name, true, false))

	doc.AddFieldMappingsAt("average_rating", number())
	doc.AddFieldMappingsAt("page_count", number())
	doc.AddFieldMappingsAt("updated_at", number())

	im.DefaultMapping = doc
	return im
}

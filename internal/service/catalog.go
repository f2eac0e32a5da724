package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/librisapp/libris-server/internal/domain"
	domainerrors "github.com/librisapp/libris-server/internal/errors"
	"github.com/librisapp/libris-server/internal/normalize"
	"github.com/librisapp/libris-server/internal/search"
	"github.com/librisapp/libris-server/internal/store"
	"github.com/librisapp/libris-server/internal/validation"
)

// User-facing catalog validation messages.
const (
	msgTitleAndISBN  = "Both title and ISBN are required."
	msgDuplicateISBN = "A publication with this ISBN already exists."
	msgWriterNames   = "Writer's first and last name are required."
)

// CatalogService manages publications, writers and shelves and keeps the
// search index in step with them.
type CatalogService struct {
	store     store.CatalogStore
	index     *search.Index // nil disables indexing
	validator *validation.Validator
	logger    *slog.Logger
}

// NewCatalogService creates a catalog service. index may be nil.
func NewCatalogService(store store.CatalogStore, index *search.Index, validator *validation.Validator, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:     store,
		index:     index,
		validator: validator,
		logger:    logger,
	}
}

// WriterInput names a writer on a publication or in a writer request.
type WriterInput struct {
	GivenName string `json:"given_name,omitempty" validate:"max=100"`
	Surname   string `json:"surname,omitempty" validate:"max=100"`
	BirthDate string `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// PublicationRequest is the writable shape of a publication.
type PublicationRequest struct {
	Title           string               `json:"title,omitempty" validate:"max=500"`
	ISBN            string               `json:"isbn,omitempty" validate:"omitempty,isbn"`
	ISBN13          string               `json:"isbn13,omitempty" validate:"omitempty,isbn"`
	Language        string               `json:"language,omitempty" validate:"max=50"`
	AverageRating   float64              `json:"average_rating,omitempty" validate:"gte=0,lte=5"`
	Format          string               `json:"format,omitempty" validate:"max=100"`
	PageCount       int                  `json:"page_count,omitempty" validate:"gte=0"`
	Publisher       string               `json:"publisher,omitempty" validate:"max=255"`
	PublicationDate string               `json:"publication_date,omitempty" validate:"max=100"`
	Description     string               `json:"description,omitempty"`
	CoverURL        string               `json:"cover_url,omitempty" validate:"omitempty,url"`
	Features        domain.FeatureVector `json:"features,omitempty"`
	Writers         []WriterInput        `json:"writers,omitempty" validate:"dive"`
	Shelves         []string             `json:"shelves,omitempty" validate:"dive,notblank,max=100"`
}

func (s *CatalogService) checkPublication(ctx context.Context, req *PublicationRequest, excludeID int64) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.ISBN = normalize.ISBN(req.ISBN)
	if req.Title == "" || req.ISBN == "" {
		return domainerrors.Validation(msgTitleAndISBN)
	}
	for _, w := range req.Writers {
		if strings.TrimSpace(w.GivenName) == "" || strings.TrimSpace(w.Surname) == "" {
			return domainerrors.Validation(msgWriterNames)
		}
	}

	taken, err := s.store.ISBNTaken(ctx, req.ISBN, excludeID)
	if err != nil {
		return fmt.Errorf("check isbn: %w", err)
	}
	if taken {
		return domainerrors.ValidationWithDetails(msgDuplicateISBN, map[string]string{"isbn": msgDuplicateISBN})
	}
	return nil
}

// apply copies the request onto p, normalizing free-form fields.
func (req *PublicationRequest) apply(p *domain.Publication) {
	p.Title = req.Title
	p.ISBN = req.ISBN
	p.ISBN13 = normalize.ISBN(req.ISBN13)
	p.Language = normalize.LanguageCode(req.Language)
	p.AverageRating = req.AverageRating
	p.Format = strings.TrimSpace(req.Format)
	p.PageCount = req.PageCount
	p.Publisher = strings.TrimSpace(req.Publisher)
	p.PublicationDate = strings.TrimSpace(req.PublicationDate)
	p.Description = normalize.Description(req.Description)
	p.CoverURL = strings.TrimSpace(req.CoverURL)
	p.Features = req.Features

	p.Writers = make([]domain.Writer, 0, len(req.Writers))
	for _, w := range req.Writers {
		p.Writers = append(p.Writers, domain.Writer{
			GivenName: strings.TrimSpace(w.GivenName),
			Surname:   strings.TrimSpace(w.Surname),
			BirthDate: w.BirthDate,
		})
	}
	p.Shelves = make([]domain.LibraryShelf, 0, len(req.Shelves))
	for _, name := range req.Shelves {
		p.Shelves = append(p.Shelves, domain.LibraryShelf{Name: strings.TrimSpace(name)})
	}
}

// CreatePublication adds a publication. Writers and shelves are matched by
// name and created when missing.
func (s *CatalogService) CreatePublication(ctx context.Context, req PublicationRequest) (*domain.Publication, error) {
	if err := s.checkPublication(ctx, &req, 0); err != nil {
		return nil, err
	}

	p := &domain.Publication{}
	req.apply(p)
	p.InitTimestamps()

	if err := s.store.CreatePublication(ctx, p); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.Validation(msgDuplicateISBN)
		}
		return nil, fmt.Errorf("create publication: %w", err)
	}

	s.indexPublication(p)
	s.logger.Info("publication created", "publication_id", p.ID, "title", p.Title)
	return p, nil
}

// UpdatePublication replaces a publication's fields and its writer and
// shelf associations.
func (s *CatalogService) UpdatePublication(ctx context.Context, id int64, req PublicationRequest) (*domain.Publication, error) {
	p, err := s.GetPublication(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkPublication(ctx, &req, id); err != nil {
		return nil, err
	}

	req.apply(p)
	p.Touch()
	if err := s.store.UpdatePublication(ctx, p); err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			return nil, domainerrors.Validation(msgDuplicateISBN)
		case store.IsNotFound(err):
			return nil, domainerrors.NotFound("Publication not found.")
		}
		return nil, fmt.Errorf("update publication: %w", err)
	}

	s.indexPublication(p)
	s.logger.Info("publication updated", "publication_id", p.ID)
	return p, nil
}

// DeletePublication removes a publication. Favorites and similarity edges
// pointing at it go with it.
func (s *CatalogService) DeletePublication(ctx context.Context, id int64) error {
	if err := s.store.DeletePublication(ctx, id); err != nil {
		if store.IsNotFound(err) {
			return domainerrors.NotFound("Publication not found.")
		}
		return fmt.Errorf("delete publication: %w", err)
	}
	s.unindex(search.DocID(search.DocTypePublication, id))
	s.logger.Info("publication deleted", "publication_id", id)
	return nil
}

// GetPublication returns one publication with writers and shelves.
func (s *CatalogService) GetPublication(ctx context.Context, id int64) (*domain.Publication, error) {
	p, err := s.store.GetPublication(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, domainerrors.NotFound("Publication not found.")
		}
		return nil, fmt.Errorf("get publication: %w", err)
	}
	return p, nil
}

// ListPublications pages through the catalog, optionally filtered by a
// substring of the title or a writer's name.
func (s *CatalogService) ListPublications(ctx context.Context, query string, params store.PaginationParams) (*store.PaginatedResult[*domain.Publication], error) {
	page, err := s.store.ListPublications(ctx, store.PublicationFilter{Search: strings.TrimSpace(query)}, params)
	if err != nil {
		return nil, wrapListError("list publications", err)
	}
	return page, nil
}

// WriterRequest is the writable shape of a writer.
type WriterRequest = WriterInput

func (s *CatalogService) checkWriter(req WriterRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if strings.TrimSpace(req.GivenName) == "" || strings.TrimSpace(req.Surname) == "" {
		return domainerrors.Validation(msgWriterNames)
	}
	return nil
}

// CreateWriter adds a writer. A writer with the same names already in the
// catalog is a conflict.
func (s *CatalogService) CreateWriter(ctx context.Context, req WriterRequest) (*domain.Writer, error) {
	if err := s.checkWriter(req); err != nil {
		return nil, err
	}

	w := &domain.Writer{
		GivenName: strings.TrimSpace(req.GivenName),
		Surname:   strings.TrimSpace(req.Surname),
		BirthDate: req.BirthDate,
	}
	if err := s.store.CreateWriter(ctx, w); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("A writer with this name already exists.")
		}
		return nil, fmt.Errorf("create writer: %w", err)
	}

	s.put(search.WriterDocument(w))
	s.logger.Info("writer created", "writer_id", w.ID, "name", w.FullName())
	return w, nil
}

// UpdateWriter renames a writer or changes the birth date.
func (s *CatalogService) UpdateWriter(ctx context.Context, id int64, req WriterRequest) (*domain.Writer, error) {
	if err := s.checkWriter(req); err != nil {
		return nil, err
	}

	w := &domain.Writer{
		ID:        id,
		GivenName: strings.TrimSpace(req.GivenName),
		Surname:   strings.TrimSpace(req.Surname),
		BirthDate: req.BirthDate,
	}
	if err := s.store.UpdateWriter(ctx, w); err != nil {
		switch {
		case store.IsNotFound(err):
			return nil, domainerrors.NotFound("Writer not found.")
		case errors.Is(err, store.ErrAlreadyExists):
			return nil, domainerrors.AlreadyExists("A writer with this name already exists.")
		}
		return nil, fmt.Errorf("update writer: %w", err)
	}

	// Publication documents carry writer names; they catch up on the next
	// Reindex.
	s.put(search.WriterDocument(w))
	s.logger.Info("writer updated", "writer_id", w.ID)
	return w, nil
}

// DeleteWriter removes a writer and unlinks it from its publications.
func (s *CatalogService) DeleteWriter(ctx context.Context, id int64) error {
	if err := s.store.DeleteWriter(ctx, id); err != nil {
		if store.IsNotFound(err) {
			return domainerrors.NotFound("Writer not found.")
		}
		return fmt.Errorf("delete writer: %w", err)
	}
	s.unindex(search.DocID(search.DocTypeWriter, id))
	s.logger.Info("writer deleted", "writer_id", id)
	return nil
}

// GetWriter returns one writer.
func (s *CatalogService) GetWriter(ctx context.Context, id int64) (*domain.Writer, error) {
	w, err := s.store.GetWriter(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, domainerrors.NotFound("Writer not found.")
		}
		return nil, fmt.Errorf("get writer: %w", err)
	}
	return w, nil
}

// ListWriters pages through writers by ID.
func (s *CatalogService) ListWriters(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[*domain.Writer], error) {
	page, err := s.store.ListWriters(ctx, params)
	if err != nil {
		return nil, wrapListError("list writers", err)
	}
	return page, nil
}

// CreateShelf returns the shelf called name, creating it when needed.
func (s *CatalogService) CreateShelf(ctx context.Context, name string) (*domain.LibraryShelf, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainerrors.ValidationWithDetails("shelf_name is required", map[string]string{
			"shelf_name": "This field is required.",
		})
	}
	if len(name) > 100 {
		return nil, domainerrors.ValidationWithDetails("shelf_name is too long", map[string]string{
			"shelf_name": "Ensure this field has no more than 100 characters.",
		})
	}

	shelf, err := s.store.GetOrCreateShelf(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create shelf: %w", err)
	}
	return shelf, nil
}

// ListShelves returns every shelf by name.
func (s *CatalogService) ListShelves(ctx context.Context) ([]*domain.LibraryShelf, error) {
	shelves, err := s.store.ListShelves(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shelves: %w", err)
	}
	return shelves, nil
}

// Search queries the full-text index.
func (s *CatalogService) Search(ctx context.Context, params search.Params) (*search.Result, error) {
	if s.index == nil {
		return nil, domainerrors.Internal("search is not available")
	}
	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return res, nil
}

// Reindex rebuilds the search index from the store and returns the number
// of documents written.
func (s *CatalogService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}

	var docs []*search.Document
	params := store.PaginationParams{Limit: store.MaxPageSize}
	for {
		page, err := s.store.ListPublications(ctx, store.PublicationFilter{}, params)
		if err != nil {
			return 0, fmt.Errorf("list publications: %w", err)
		}
		for _, p := range page.Items {
			docs = append(docs, search.PublicationDocument(p))
		}
		if !page.HasMore {
			break
		}
		params.Cursor = page.NextCursor
	}

	params = store.PaginationParams{Limit: store.MaxPageSize}
	for {
		page, err := s.store.ListWriters(ctx, params)
		if err != nil {
			return 0, fmt.Errorf("list writers: %w", err)
		}
		for _, w := range page.Items {
			docs = append(docs, search.WriterDocument(w))
		}
		if !page.HasMore {
			break
		}
		params.Cursor = page.NextCursor
	}

	if err := s.index.Rebuild(docs); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}
	s.logger.Info("search index rebuilt", "documents", len(docs))
	return len(docs), nil
}

// IndexCount returns the number of indexed documents.
func (s *CatalogService) IndexCount() (uint64, error) {
	if s.index == nil {
		return 0, errors.New("search index not configured")
	}
	return s.index.Count()
}

// indexPublication writes the publication and its writers. Index failures
// are logged; the store stays authoritative.
func (s *CatalogService) indexPublication(p *domain.Publication) {
	if s.index == nil {
		return
	}
	docs := []*search.Document{search.PublicationDocument(p)}
	for i := range p.Writers {
		docs = append(docs, search.WriterDocument(&p.Writers[i]))
	}
	if err := s.index.PutAll(docs); err != nil {
		s.logger.Warn("failed to index publication", "publication_id", p.ID, "error", err)
	}
}

func (s *CatalogService) put(doc *search.Document) {
	if s.index == nil {
		return
	}
	if err := s.index.Put(doc); err != nil {
		s.logger.Warn("failed to index document", "doc_id", doc.ID, "error", err)
	}
}

func (s *CatalogService) unindex(docID string) {
	if s.index == nil {
		return
	}
	if err := s.index.Delete(docID); err != nil {
		s.logger.Warn("failed to remove document from index", "doc_id", docID, "error", err)
	}
}

// wrapListError surfaces bad cursors as validation errors.
func wrapListError(op string, err error) error {
	if errors.Is(err, store.ErrInvalidInput) {
		return domainerrors.Validation("invalid cursor")
	}
	return fmt.Errorf("%s: %w", op, err)
}

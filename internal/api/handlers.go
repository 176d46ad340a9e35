package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bibliotech/internal/models"
	"bibliotech/internal/service"
)

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready.PingContext(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("Readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Reservations

type reservationRequest struct {
	BookID int64 `json:"livro_id"`
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request, p *service.Principal) {
	var req reservationRequest
	if err := readJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.Reservations.Create(r.Context(), p.UserID, req.BookID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *HTTPServer) handleCancelReservation(w http.ResponseWriter, r *http.Request, p *service.Principal) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	change, err := s.svc.Reservations.Cancel(r.Context(), id, p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

func (s *HTTPServer) handleMyReservations(w http.ResponseWriter, r *http.Request, p *service.Principal) {
	groups, err := s.svc.Reservations.ListForUser(r.Context(), p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *HTTPServer) handleCompleteReservation(w http.ResponseWriter, r *http.Request, p *service.Principal) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, loan, err := s.svc.Reservations.Complete(r.Context(), id, p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reserva": res, "emprestimo": loan})
}

func (s *HTTPServer) handleSweep(w http.ResponseWriter, r *http.Request, _ *service.Principal) {
	result, err := s.svc.Reservations.Sweep(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handlePromoteNext(w http.ResponseWriter, r *http.Request, p *service.Principal) {
	bookID, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.Reservations.PromoteNext(r.Context(), bookID, p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Catalog

func parseBookFilter(r *http.Request) (models.BookFilter, error) {
	q := r.URL.Query()
	f := models.BookFilter{
		Query: strings.TrimSpace(q.Get("q")),
		Sort:  q.Get("ordem"),
	}

	ints := []struct {
		name string
		dst  *int64
	}{
		{"categoria_id", &f.CategoryID},
		{"autor_id", &f.AuthorID},
	}
	for _, p := range ints {
		if raw := q.Get(p.name); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return f, fmt.Errorf("invalid %s: %w", p.name, service.ErrValidation)
			}
			*p.dst = v
		}
	}
	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("invalid page: %w", service.ErrValidation)
		}
		f.Page = v
	}
	if raw := q.Get("page_size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("invalid page_size: %w", service.ErrValidation)
		}
		f.PageSize = v
	}
	if raw := q.Get("disponivel"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("invalid disponivel: %w", service.ErrValidation)
		}
		f.AvailableOnly = v
	}
	return f, nil
}

func (s *HTTPServer) handleListBooks(w http.ResponseWriter, r *http.Request) {
	f, err := parseBookFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, err := s.svc.Catalog.ListBooks(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *HTTPServer) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	book, err := s.svc.Catalog.GetBook(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

type bookRequest struct {
	Title       string  `json:"titulo"`
	ISBN        *string `json:"isbn"`
	AuthorID    *int64  `json:"autor_id"`
	CategoryID  *int64  `json:"categoria_id"`
	Year        *int    `json:"ano_publicacao"`
	PriceCents  int64   `json:"preco"`
	TotalCopies int64   `json:"total_exemplares"`
	Description string  `json:"descricao"`
}

func (b bookRequest) book() *models.Book {
	return &models.Book{
		Title:       b.Title,
		ISBN:        b.ISBN,
		AuthorID:    b.AuthorID,
		CategoryID:  b.CategoryID,
		Year:        b.Year,
		PriceCents:  b.PriceCents,
		TotalCopies: b.TotalCopies,
		Description: b.Description,
	}
}

func (s *HTTPServer) handleCreateBook(w http.ResponseWriter, r *http.Request, _ *service.Principal) {
	var req bookRequest
	if err := readJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	book := req.book()
	if err := s.svc.Catalog.CreateBook(r.Context(), book); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *HTTPServer) handleUpdateBook(w http.ResponseWriter, r *http.Request, _ *service.Principal) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req bookRequest
	if err := readJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	book := req.book()
	book.ID = id
	updated, err := s.svc.Catalog.UpdateBook(r.Context(), book)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type stockRequest struct {
	TotalCopies *int64 `json:"total_exemplares"`
}

func (s *HTTPServer) handleSetStock(w http.ResponseWriter, r *http.Request, _ *service.Principal) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req stockRequest
	if err := readJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.TotalCopies == nil {
		writeError(w, http.StatusBadRequest, "total_exemplares is required")
		return
	}
	book, err := s.svc.Catalog.SetStock(r.Context(), id, *req.TotalCopies)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *HTTPServer) handleListAuthors(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Catalog.ListAuthors(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"autores": list})
}

func (s *HTTPServer) handleListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Catalog.ListCategories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categorias": list})
}

func (s *HTTPServer) handleCreateAuthor(w http.ResponseWriter, r *http.Request, _ *service.Principal) {
	var author models.Author
	if err := readJSON(r, &author); err != nil {
		s.fail(w, r, err)
		return
	}
	author.ID = 0
	if err := s.svc.Catalog.CreateAuthor(r.Context(), &author); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, author)
}

func (s *HTTPServer) handleCreateCategory(w http.ResponseWriter, r *http.Request, _ *service.Principal) {
	var category models.Category
	if err := readJSON(r, &category); err != nil {
		s.fail(w, r, err)
		return
	}
	category.ID = 0
	if err := s.svc.Catalog.CreateCategory(r.Context(), &category); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

// Reviews

type reviewRequest struct {
	Score   int    `json:"nota"`
	Comment string `json:"comentario"`
}

func (s *HTTPServer) handleListReviews(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.svc.Reviews.List(r.Context(), bookID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleCreateReview(w http.ResponseWriter, r *http.Request, p *service.Principal) {
	bookID, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req reviewRequest
	if err := readJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	review, err := s.svc.Reviews.Create(r.Context(), p.UserID, bookID, req.Score, req.Comment)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *HTTPServer) handleDeleteReview(w http.ResponseWriter, r *http.Request, p *service.Principal) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Reviews.Delete(r.Context(), id, p.UserID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Loans

type loanRequest struct {
	UserID int64 `json:"usuario_id"`
	BookID int64 `json:"livro_id"`
}

func (s *HTTPServer) handleMyLoans(w http.ResponseWriter, r *http.Request, p *service.Principal) {
	list, err := s.svc.Loans.ListForUser(r.Context(), p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"emprestimos": list})
}

func (s *HTTPServer) handleCreateLoan(w http.ResponseWriter, r *http.Request, _ *service.Principal) {
	var req loanRequest
	if err := readJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	loan, err := s.svc.Loans.Create(r.Context(), req.UserID, req.BookID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *HTTPServer) handleReturnLoan(w http.ResponseWriter, r *http.Request, p *service.Principal) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	loan, promoted, err := s.svc.Loans.Return(r.Context(), id, p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"emprestimo": loan, "reserva_promovida": promoted})
}

func (s *HTTPServer) handleOverdueLoans(w http.ResponseWriter, r *http.Request, _ *service.Principal) {
	list, err := s.svc.Loans.ListOverdue(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"emprestimos": list})
}

// Admin reports

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request, _ *service.Principal) {
	stats, err := s.svc.Reports.Dashboard(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleReservationsReport(w http.ResponseWriter, r *http.Request, _ *service.Principal) {
	q := r.URL.Query()
	from, to, err := service.ParseDateRange(q.Get("de"), q.Get("ate"), time.Now())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.svc.Reports.WriteReservationsXLSX(r.Context(), &buf, from, to); err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, service.ReservationsReportName(from, to)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

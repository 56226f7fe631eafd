package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"roombooking/internal/domain"
	"roombooking/internal/models"
)

type bookingRequest struct {
	RoomID         int64  `json:"room_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	AttendeesCount *int   `json:"attendees_count"`
}

type ruleRequest struct {
	RoomID         int64  `json:"room_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Frequency      string `json:"frequency"`
	Weekdays       []int  `json:"weekdays"`
	AttendeesCount *int   `json:"attendees_count"`
}

type decisionRequest struct {
	Approve *bool `json:"approve"`
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", domain.ErrValidation)
	}
	return nil
}

func (s *HTTPServer) actorID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(s.actorHeader))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s header is required", domain.ErrValidation, s.actorHeader)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s header", domain.ErrValidation, s.actorHeader)
	}
	return id, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", domain.ErrValidation, r.PathValue("id"))
	}
	return id, nil
}

func parseDate(field, raw string) (time.Time, error) {
	d, err := models.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s; expected YYYY-MM-DD", domain.ErrValidation, field)
	}
	return d, nil
}

func parseClock(field, raw string) (models.Clock, error) {
	c, err := models.ParseClock(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s; expected HH:MM", domain.ErrValidation, field)
	}
	return c, nil
}

func optionalInt64(q string) (int64, error) {
	if q == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(q, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", domain.ErrValidation, q)
	}
	return n, nil
}

// dateRange reads the required from/to query parameters.
func dateRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseDate("from", r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate("to", r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func bookingFilter(r *http.Request) (models.BookingFilter, error) {
	q := r.URL.Query()
	var f models.BookingFilter
	var err error
	if f.RoomID, err = optionalInt64(q.Get("room_id")); err != nil {
		return f, err
	}
	if f.UserID, err = optionalInt64(q.Get("user_id")); err != nil {
		return f, err
	}
	if st := strings.ToUpper(strings.TrimSpace(q.Get("status"))); st != "" {
		f.Status = models.BookingStatus(st)
		if !f.Status.Valid() {
			return f, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, st)
		}
	}
	return f, nil
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actorID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	var body bookingRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	b := &models.Booking{
		RoomID:         body.RoomID,
		UserID:         actor,
		Title:          body.Title,
		Description:    body.Description,
		AttendeesCount: body.AttendeesCount,
	}
	if b.Date, err = parseDate("date", body.Date); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if b.StartTime, err = parseClock("start_time", body.StartTime); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if b.EndTime, err = parseClock("end_time", body.EndTime); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	created, err := s.svc.Bookings.CreateBooking(r.Context(), b)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleListBookings picks the query by parameters: a from/to range (with
// optional filters), a status, a user, or everything.
func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := bookingFilter(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	var list []*models.Booking
	switch {
	case q.Get("from") != "" || q.Get("to") != "":
		from, to, err := dateRange(r)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		list, err = s.svc.Bookings.BookingsInRange(r.Context(), from, to, filter)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	case filter.Status != "":
		list, err = s.svc.Bookings.BookingsByStatus(r.Context(), filter.Status)
	case filter.UserID != 0:
		list, err = s.svc.Bookings.BookingsByUser(r.Context(), filter.UserID)
	default:
		list, err = s.svc.Bookings.AllBookings(r.Context())
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": list})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	b, err := s.svc.Bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleDecide(w http.ResponseWriter, r *http.Request) {
	var body decisionRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if body.Approve == nil {
		s.writeDomainError(w, r, fmt.Errorf("%w: approve is required", domain.ErrValidation))
		return
	}
	s.transition(w, r, func(id, actor int64) (*models.Booking, error) {
		return s.svc.Bookings.Decide(r.Context(), id, actor, *body.Approve)
	})
}

func (s *HTTPServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(id, actor int64) (*models.Booking, error) {
		return s.svc.Bookings.ApproveBooking(r.Context(), id, actor)
	})
}

func (s *HTTPServer) handleReject(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(id, actor int64) (*models.Booking, error) {
		return s.svc.Bookings.RejectBooking(r.Context(), id, actor)
	})
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(id, actor int64) (*models.Booking, error) {
		return s.svc.Bookings.CancelBooking(r.Context(), id, actor)
	})
}

func (s *HTTPServer) transition(w http.ResponseWriter, r *http.Request, apply func(id, actor int64) (*models.Booking, error)) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	actor, err := s.actorID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	b, err := apply(id, actor)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleUserBookings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	list, err := s.svc.Bookings.BookingsByUser(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": list})
}

func (s *HTTPServer) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actorID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	var body ruleRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	rule := &models.RecurringRule{
		RoomID:         body.RoomID,
		OwnerID:        actor,
		Title:          body.Title,
		Description:    body.Description,
		Frequency:      models.Frequency(strings.ToUpper(strings.TrimSpace(body.Frequency))),
		Weekdays:       body.Weekdays,
		AttendeesCount: body.AttendeesCount,
	}
	if rule.StartDate, err = parseDate("start_date", body.StartDate); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if rule.EndDate, err = parseDate("end_date", body.EndDate); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if rule.StartTime, err = parseClock("start_time", body.StartTime); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if rule.EndTime, err = parseClock("end_time", body.EndTime); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	sum, err := s.svc.Rules.CreateRule(r.Context(), rule)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}

func (s *HTTPServer) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	sum, err := s.svc.Rules.GetRule(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *HTTPServer) handleDeactivateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	actor, err := s.actorID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.svc.Rules.DeactivateRule(r.Context(), id, actor); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleUserRules(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	rules, err := s.svc.Rules.RulesByOwner(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (s *HTTPServer) handleRunRecurring(w http.ResponseWriter, r *http.Request) {
	stats := s.svc.Recurring.RunWithStats(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":       stats.RunID,
		"from":         stats.From.Format(models.DateLayout),
		"to":           stats.To.Format(models.DateLayout),
		"rules":        stats.Rules,
		"created":      stats.Created,
		"skipped":      stats.Skipped,
		"conflicts":    stats.Conflicts,
		"failed_rules": stats.FailedRules,
		"locked":       stats.Locked,
	})
}

func (s *HTTPServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	sum, err := s.svc.Reports.Summary(r.Context(), from, to)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	filter, err := bookingFilter(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	path, err := s.svc.Reports.ExportXLSX(r.Context(), from, to, filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *HTTPServer) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		entries []*models.AuditEntry
		err     error
	)
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			s.writeDomainError(w, r, fmt.Errorf("%w: invalid limit", domain.ErrValidation))
			return
		}
	}
	entityType := strings.ToUpper(strings.TrimSpace(q.Get("entity_type")))

	switch {
	case q.Get("from") != "" || q.Get("to") != "":
		var from, to time.Time
		if from, to, err = dateRange(r); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		// to is an inclusive calendar date
		entries, err = s.svc.Audit.InRange(r.Context(), from, to.AddDate(0, 0, 1))
	case entityType != "" && q.Get("entity_id") != "":
		var entityID int64
		if entityID, err = optionalInt64(q.Get("entity_id")); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		entries, err = s.svc.Audit.ForEntity(r.Context(), entityType, entityID)
	case entityType != "":
		entries, err = s.svc.Audit.ByEntityType(r.Context(), entityType, limit)
	default:
		entries, err = s.svc.Audit.Recent(r.Context(), limit)
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*models.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

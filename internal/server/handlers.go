package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/annotext/internal/annotation"
	"github.com/raaihank/annotext/internal/deidentify"
	"github.com/raaihank/annotext/internal/overlap"
	"github.com/raaihank/annotext/internal/tagging"
	"github.com/raaihank/annotext/internal/version"
	"github.com/raaihank/annotext/internal/websocket"
	"github.com/raaihank/annotext/internal/workset"
)

const serviceVersion = "0.1.0"

// documentRequest is the common body of the stateless document endpoints
type documentRequest struct {
	DocumentID  string                  `json:"documentId"`
	Text        string                  `json:"text"`
	Annotations []annotation.Annotation `json:"annotations"`
}

func (req documentRequest) document() *annotation.Document {
	return annotation.NewDocument(req.DocumentID, req.Text)
}

type segmentsResponse struct {
	Segments []overlap.Segment       `json:"segments"`
	Dropped  []annotation.Annotation `json:"dropped,omitempty"`
}

type nextTagRequest struct {
	ClassID     string                  `json:"classId"`
	Annotations []annotation.Annotation `json:"annotations"`
}

type nextTagResponse struct {
	Tag            string `json:"tag"`
	SequenceNumber int    `json:"sequenceNumber"`
}

type lookupTagRequest struct {
	Text        string                  `json:"text"`
	Annotations []annotation.Annotation `json:"annotations"`
}

type lookupTagResponse struct {
	Found bool           `json:"found"`
	Match *tagging.Match `json:"match,omitempty"`
}

type annotateRequest struct {
	documentRequest
	Selection workset.Selection `json:"selection"`
	ClassID   string            `json:"classId"`
	// Decision is empty on the first call; the caller repeats the request
	// with a decision when one is required
	Decision string `json:"decision,omitempty"`
}

type annotateResponse struct {
	Status      string                  `json:"status"` // committed, cancelled or decision_required
	Plan        *tagging.Plan           `json:"plan,omitempty"`
	Annotation  *annotation.Annotation  `json:"annotation,omitempty"`
	Annotations []annotation.Annotation `json:"annotations"`
}

type appendVersionRequest struct {
	Text           *string                 `json:"text,omitempty"`
	DocumentLength int                     `json:"documentLength"`
	Source         version.Source          `json:"source"`
	Author         string                  `json:"author"`
	Annotations    []annotation.Annotation `json:"annotations"`
}

type listVersionsResponse struct {
	DocumentID string            `json:"documentId"`
	Versions   []version.Summary `json:"versions"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	policy := s.Policy()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":                 "annotext",
		"version":              serviceVersion,
		"storage":              s.config.Storage.Driver,
		"link_duplicates":      policy.LinkDuplicates,
		"min_selection_length": policy.MinSelectionLength,
		"privacy_enabled":      s.config.Privacy.Enabled,
		"detectors":            s.suggester.EnabledRules(),
		"websocket_clients":    s.wsHub.ClientCount(),
	})
}

func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"classes": s.catalog.List()})
}

// handleSegments renders the inline highlighting of a document
func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	doc := req.document()
	kept, dropped := overlap.Partition(doc, req.Annotations)
	writeJSON(w, http.StatusOK, segmentsResponse{
		Segments: overlap.Resolve(doc, kept),
		Dropped:  dropped,
	})
}

// handleDeidentify replaces every annotated span with its tag
func (s *Server) handleDeidentify(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := deidentify.Transform(req.document(), req.Annotations)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(result.Skipped) > 0 {
		s.requestLogger(r).Info("Overlapping annotations skipped",
			zap.String("document_id", req.DocumentID),
			zap.Int("skipped", len(result.Skipped)))
	}
	writeJSON(w, http.StatusOK, result)
}

// handleNextTag previews the fresh tag a class would receive
func (s *Server) handleNextTag(w http.ResponseWriter, r *http.Request) {
	var req nextTagRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	class, err := s.catalog.Assignable(req.ClassID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n := tagging.NextSequenceNumber(req.Annotations, class.ID)
	writeJSON(w, http.StatusOK, nextTagResponse{Tag: tagging.FormatTag(class.Name, n), SequenceNumber: n})
}

// handleLookupTag finds an annotation already tagging the given text
func (s *Server) handleLookupTag(w http.ResponseWriter, r *http.Request) {
	var req lookupTagRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	match, ok := tagging.FindExistingTagForText(req.Annotations, req.Text)
	resp := lookupTagResponse{Found: ok}
	if ok {
		resp.Match = &match
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAnnotate adds one selection to the posted working set. Without a
// decision, a selection that duplicates tagged text is answered with the
// plan and nothing is committed.
func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	var req annotateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := workset.New(req.document(), s.catalog, s.Policy(), s.requestLogger(r).Logger, req.Annotations)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	proposal, err := session.Propose(req.Selection, req.ClassID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	decision := tagging.DecisionNewTag
	if req.Decision != "" {
		if decision, err = tagging.ParseDecision(req.Decision); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else if proposal.NeedsDecision() {
		writeJSON(w, http.StatusOK, annotateResponse{
			Status:      "decision_required",
			Plan:        &proposal.Plan,
			Annotations: session.Annotations(),
		})
		return
	}

	ann, err := session.Commit(proposal, decision)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := annotateResponse{Status: "committed", Annotation: ann, Annotations: session.Annotations()}
	if ann == nil {
		resp.Status = "cancelled"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSuggest proposes spans for review
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.suggester.Suggest(req.document(), req.Annotations))
}

// handleAppendVersion freezes a working set into the next version
func (s *Server) handleAppendVersion(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentID"]

	var req appendVersionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	draft := version.Draft{
		DocumentID:     documentID,
		DocumentLength: req.DocumentLength,
		Source:         req.Source,
		Author:         req.Author,
		Annotations:    req.Annotations,
	}
	if req.Text != nil {
		doc := annotation.NewDocument(documentID, *req.Text)
		for _, ann := range req.Annotations {
			if err := doc.ValidateSpan(ann.StartOffset, ann.EndOffset); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		draft.DocumentLength = doc.Len()
		draft.Annotations = overlap.SortForList(req.Annotations)
	}

	v, err := s.store.Append(r.Context(), draft)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.requestLogger(r).Info("Version saved",
		zap.String("document_id", v.DocumentID),
		zap.String("version_id", v.ID),
		zap.Int("version_number", v.Number),
		zap.String("source", string(v.Source)),
		zap.Int("annotations", len(v.Annotations)))

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:       websocket.EventTypeVersionSaved,
		DocumentID: v.DocumentID,
		RequestID:  getRequestID(r.Context()),
		Data: websocket.VersionSavedEvent{
			VersionID:       v.ID,
			DocumentID:      v.DocumentID,
			Number:          v.Number,
			Source:          v.Source,
			Author:          v.Author,
			AnnotationCount: len(v.Annotations),
		},
	})

	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentID"]

	summaries, err := s.history.List(r.Context(), documentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listVersionsResponse{DocumentID: documentID, Versions: summaries})
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.Get(r.Context(), mux.Vars(r)["versionID"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleDiffPrevious compares a version with the one before it
func (s *Server) handleDiffPrevious(w http.ResponseWriter, r *http.Request) {
	cmp, err := s.history.CompareWithPrevious(r.Context(), mux.Vars(r)["versionID"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishDiff(r, cmp)
	writeJSON(w, http.StatusOK, cmp)
}

// handleDiff compares two arbitrary versions of the same document
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	beforeID := r.URL.Query().Get("before")
	afterID := r.URL.Query().Get("after")
	if beforeID == "" || afterID == "" {
		s.writeError(w, r, &annotation.ValidationError{Field: "query", Message: "before and after version ids are required"})
		return
	}

	cmp, err := s.history.Compare(r.Context(), beforeID, afterID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishDiff(r, cmp)
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) publishDiff(r *http.Request, cmp *version.Comparison) {
	s.wsHub.BroadcastEvent(websocket.Event{
		Type:       websocket.EventTypeDiffComputed,
		DocumentID: cmp.After.DocumentID,
		RequestID:  getRequestID(r.Context()),
		Data: websocket.DiffComputedEvent{
			DocumentID: cmp.After.DocumentID,
			BeforeID:   cmp.Before.ID,
			AfterID:    cmp.After.ID,
			Summary:    cmp.Diff.Summary,
		},
	})
}

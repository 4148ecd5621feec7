package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/conduit-lang/metabridge/internal/cohort"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":                 "ok",
		"metadataCollectionId":   s.collection.CollectionID(),
		"metadataCollectionName": s.collection.MetadataCollectionName(),
	})
}

// typeDefJSON encodes type definitions with their category envelope so clients can
// tell entity, relationship and classification definitions apart
func typeDefJSON(def cohort.TypeDef) (json.RawMessage, error) {
	return cohort.MarshalTypeDef(def)
}

type galleryBody struct {
	TypeDefs          []json.RawMessage `json:"typeDefs"`
	AttributeTypeDefs []json.RawMessage `json:"attributeTypeDefs"`
}

func (s *Server) loadTypes(w http.ResponseWriter, r *http.Request) {
	gallery, err := s.collection.LoadAll(r.Context(), Caller(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body := galleryBody{
		TypeDefs:          make([]json.RawMessage, 0, len(gallery.TypeDefs)),
		AttributeTypeDefs: make([]json.RawMessage, 0, len(gallery.AttributeTypeDefs)),
	}
	for _, def := range gallery.TypeDefs {
		raw, err := typeDefJSON(def)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		body.TypeDefs = append(body.TypeDefs, raw)
	}
	for _, def := range gallery.AttributeTypeDefs {
		raw, err := cohort.MarshalAttributeTypeDef(def)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		body.AttributeTypeDefs = append(body.AttributeTypeDefs, raw)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) getTypeByName(w http.ResponseWriter, r *http.Request) {
	def, err := s.collection.GetTypeDefByName(r.Context(), Caller(r.Context()), chi.URLParam(r, "name"))
	s.writeTypeDef(w, r, def, err)
}

func (s *Server) getTypeByGUID(w http.ResponseWriter, r *http.Request) {
	def, err := s.collection.GetTypeDefByGUID(r.Context(), Caller(r.Context()), chi.URLParam(r, "guid"))
	s.writeTypeDef(w, r, def, err)
}

func (s *Server) writeTypeDef(w http.ResponseWriter, r *http.Request, def cohort.TypeDef, err error) {
	if err == nil {
		var raw json.RawMessage
		if raw, err = typeDefJSON(def); err == nil {
			writeJSON(w, http.StatusOK, raw)
			return
		}
	}
	s.writeError(w, r, err)
}

func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) {
	entity, err := s.collection.GetEntityDetail(r.Context(), Caller(r.Context()), chi.URLParam(r, "guid"))
	s.respond(w, r, http.StatusOK, entity, err)
}

func (s *Server) getEntitySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.collection.GetEntitySummary(r.Context(), Caller(r.Context()), chi.URLParam(r, "guid"))
	s.respond(w, r, http.StatusOK, summary, err)
}

func (s *Server) getRelationship(w http.ResponseWriter, r *http.Request) {
	rel, err := s.collection.GetRelationship(r.Context(), Caller(r.Context()), chi.URLParam(r, "guid"))
	s.respond(w, r, http.StatusOK, rel, err)
}

func (s *Server) deleteEntity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entity, err := s.collection.DeleteEntity(r.Context(), Caller(r.Context()),
		q.Get("typeGuid"), q.Get("typeName"), chi.URLParam(r, "guid"))
	s.respond(w, r, http.StatusOK, entity, err)
}

func (s *Server) purgeEntity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	err := s.collection.PurgeEntity(r.Context(), Caller(r.Context()),
		q.Get("typeGuid"), q.Get("typeName"), chi.URLParam(r, "guid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type refreshRequest struct {
	TypeGUID string `json:"typeGuid"`
	TypeName string `json:"typeName"`
	HomeID   string `json:"homeMetadataCollectionId"`
}

func (s *Server) refreshEntity(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	err := s.collection.RefreshEntityReferenceCopy(r.Context(), Caller(r.Context()),
		chi.URLParam(r, "guid"), req.TypeGUID, req.TypeName, req.HomeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) relationshipsForEntity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := optionsFromQuery(q.Get("fromOffset"), q.Get("pageSize"), q["status"], q.Get("sequencingOrder"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rels, err := s.collection.GetRelationshipsForEntity(r.Context(), Caller(r.Context()),
		chi.URLParam(r, "guid"), q.Get("typeGuid"), opts)
	s.respond(w, r, http.StatusOK, nonNil(rels), err)
}

// searchRequest selects the find operation by what it carries: search text runs a
// property value search, a classification runs a classification search, anything
// else a property search
type searchRequest struct {
	TypeGUID             string                     `json:"typeGuid"`
	Text                 string                     `json:"searchText"`
	Classification       string                     `json:"classification"`
	Properties           *cohort.InstanceProperties `json:"properties"`
	MatchCriteria        string                     `json:"matchCriteria"`
	FromOffset           int                        `json:"fromOffset"`
	PageSize             int                        `json:"pageSize"`
	LimitStatuses        []string                   `json:"limitResultsByStatus"`
	LimitClassifications []string                   `json:"limitResultsByClassification"`
	AsOfTime             *time.Time                 `json:"asOfTime"`
	SequencingProperty   string                     `json:"sequencingProperty"`
	SequencingOrder      string                     `json:"sequencingOrder"`
}

func (s *Server) searchEntities(w http.ResponseWriter, r *http.Request) {
	const op = "api.searchEntities"
	var req searchRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	criteria, err := parseMatchCriteria(op, req.MatchCriteria)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	statuses, err := parseStatuses(op, req.LimitStatuses)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	order, err := parseSequencingOrder(op, req.SequencingOrder)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts := cohort.SearchOptions{
		FromOffset:           req.FromOffset,
		PageSize:             req.PageSize,
		LimitStatuses:        statuses,
		LimitClassifications: req.LimitClassifications,
		AsOfTime:             req.AsOfTime,
		SequencingProperty:   req.SequencingProperty,
		SequencingOrder:      order,
	}

	ctx, user := r.Context(), Caller(r.Context())
	var found []*cohort.EntityDetail
	switch {
	case req.Text != "":
		found, err = s.collection.FindEntitiesByPropertyValue(ctx, user, req.TypeGUID, req.Text, opts)
	case req.Classification != "":
		found, err = s.collection.FindEntitiesByClassification(ctx, user, req.TypeGUID, req.Classification,
			req.Properties, criteria, opts)
	default:
		found, err = s.collection.FindEntitiesByProperty(ctx, user, req.TypeGUID, req.Properties, criteria, opts)
	}
	s.respond(w, r, http.StatusOK, nonNil(found), err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, body interface{}, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, body)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func decode(r *http.Request, into interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return cohort.WrapKind(cohort.ErrInvalidParameter, "api.decode", "", err)
	}
	return nil
}

func parseMatchCriteria(op, s string) (cohort.MatchCriteria, error) {
	for _, m := range []cohort.MatchCriteria{cohort.MatchAll, cohort.MatchAny, cohort.MatchNone} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	if s == "" {
		return cohort.MatchAll, nil
	}
	return cohort.MatchAll, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "unknown match criteria %q", s)
}

func parseSequencingOrder(op, s string) (cohort.SequencingOrder, error) {
	if s == "" {
		return cohort.SequenceAny, nil
	}
	for o := cohort.SequenceAny; o <= cohort.SequencePropertyDescending; o++ {
		if strings.EqualFold(s, o.String()) {
			return o, nil
		}
	}
	return cohort.SequenceAny, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "unknown sequencing order %q", s)
}

func parseStatuses(op string, names []string) ([]cohort.InstanceStatus, error) {
	var out []cohort.InstanceStatus
	for _, name := range names {
		st, err := cohort.ParseInstanceStatus(strings.ToUpper(name))
		if err != nil {
			return nil, cohort.WrapKind(cohort.ErrInvalidParameter, op, name, err)
		}
		out = append(out, st)
	}
	return out, nil
}

func optionsFromQuery(from, size string, statuses []string, order string) (cohort.SearchOptions, error) {
	const op = "api.options"
	var opts cohort.SearchOptions
	var err error
	if from != "" {
		if opts.FromOffset, err = strconv.Atoi(from); err != nil {
			return opts, cohort.WrapKind(cohort.ErrPaging, op, from, err)
		}
	}
	if size != "" {
		if opts.PageSize, err = strconv.Atoi(size); err != nil {
			return opts, cohort.WrapKind(cohort.ErrPaging, op, size, err)
		}
	}
	if opts.LimitStatuses, err = parseStatuses(op, statuses); err != nil {
		return opts, err
	}
	opts.SequencingOrder, err = parseSequencingOrder(op, order)
	return opts, err
}

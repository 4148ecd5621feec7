package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/instances"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/collection"
	"github.com/conduit-lang/metabridge/internal/events"
	"github.com/conduit-lang/metabridge/internal/native/memstore"
	"github.com/conduit-lang/metabridge/internal/ratelimit"
	"github.com/conduit-lang/metabridge/internal/registry"
)

const secret = "test-secret"

type fixture struct {
	srv      *httptest.Server
	coll     *collection.MetadataCollection
	recorder *events.Recorder
	widget   *cohort.EntityDetail
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()
	rec := events.NewRecorder()
	var publisher events.Publisher = rec
	if opts.Hub != nil {
		publisher = events.Multi{rec, opts.Hub}
	}
	coll := collection.New(memstore.New(), registry.NewMemory(), publisher, collection.Config{
		CollectionID: "home", CollectionName: "home repo", DeleteMode: instances.SoftDelete,
	}, zap.NewNop())

	_, err := coll.AddTypeDef(ctx, "seed", &cohort.EntityDef{TypeDefBase: cohort.TypeDefBase{
		GUID: "widget-guid", Name: "Widget",
		Properties: []cohort.TypeDefAttribute{{
			Name: "name", Type: cohort.NewPrimitiveDef(cohort.PrimitiveString), Cardinality: cohort.AtMostOne, Unique: true,
		}},
	}})
	require.NoError(t, err)
	widget, err := coll.AddEntity(ctx, "seed", "widget-guid",
		cohort.NewInstanceProperties().Set("name", cohort.String("sprocket")), nil, cohort.StatusActive)
	require.NoError(t, err)

	srv := httptest.NewServer(New(coll, opts, zap.NewNop()))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, coll: coll, recorder: rec, widget: widget}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set(UserHeader, "dave")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind error
		want int
	}{
		{cohort.ErrInvalidParameter, http.StatusBadRequest},
		{cohort.ErrPaging, http.StatusBadRequest},
		{cohort.ErrProperty, http.StatusBadRequest},
		{cohort.ErrTypeNotKnown, http.StatusNotFound},
		{cohort.ErrInstanceNotKnown, http.StatusNotFound},
		{cohort.ErrTypeConflict, http.StatusConflict},
		{cohort.ErrTypeInUse, http.StatusConflict},
		{cohort.ErrClassification, http.StatusConflict},
		{cohort.ErrInstanceNotDeleted, http.StatusConflict},
		{cohort.ErrNotImplemented, http.StatusNotImplemented},
		{cohort.ErrNotSupported, http.StatusMethodNotAllowed},
		{cohort.ErrTypeNotSupported, http.StatusUnprocessableEntity},
		{cohort.ErrRepository, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(cohort.Errorf(tt.kind, "op", "id", "failed")))
		})
	}
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("plain")))
	assert.Equal(t, http.StatusConflict, StatusFor(
		cohort.WrapKind(cohort.ErrClassification, "op", "x", cohort.Errorf(cohort.ErrTypeNotKnown, "inner", "x", "missing"))),
		"the outermost kind wins")
}

func TestIdentifier_Header(t *testing.T) {
	f := newFixture(t, Options{})

	resp, err := http.Get(f.srv.URL + "/types/Widget")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/types/Widget", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	health, err := http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode, "health needs no identity")
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestIdentifier_Token(t *testing.T) {
	id := NewIdentifier(secret, nil)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"sub claim", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "erin", "exp": exp}), "erin", nil},
		{"user_id claim", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"user_id": "frank", "exp": exp}), "frank", nil},
		{"wrong secret", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "erin"}), "", ErrBadToken},
		{"wrong algorithm", "Bearer " + sign(t, jwt.SigningMethodHS512, []byte(secret), jwt.MapClaims{"sub": "erin"}), "", ErrBadToken},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "erin", "exp": time.Now().Add(-time.Hour).Unix()}), "", ErrBadToken},
		{"no identity claim", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"exp": exp}), "", ErrBadToken},
		{"malformed", "Token abc", "", ErrBadToken},
		{"missing", "", "", ErrNoCaller},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			req.Header.Set(UserHeader, "ignored-when-secret-set")
			got, err := id.Identify(req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentifier_Basic(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	id := NewIdentifier("", map[string]string{"grace": hash})

	tests := []struct {
		name     string
		user     string
		password string
		want     string
		wantErr  error
	}{
		{"valid", "grace", "s3cret", "grace", nil},
		{"wrong password", "grace", "nope", "", ErrBadCredentials},
		{"unknown user", "heidi", "s3cret", "", ErrBadCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.SetBasicAuth(tt.user, tt.password)
			got, err := id.Identify(req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeader, "grace")
	_, err = id.Identify(req)
	assert.ErrorIs(t, err, ErrNoCaller, "header identity is off once users are configured")

	_, err = HashPassword(strings.Repeat("x", 73))
	assert.Error(t, err)
}

func TestTypes(t *testing.T) {
	f := newFixture(t, Options{})

	resp := f.do(t, http.MethodGet, "/types/Widget", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var raw json.RawMessage
	decodeBody(t, resp, &raw)
	def, err := cohort.UnmarshalTypeDef(raw)
	require.NoError(t, err)
	assert.Equal(t, "Widget", def.Base().Name)

	resp = f.do(t, http.MethodGet, "/types/guid/"+def.Base().GUID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/types/Gizmo", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body errorBody
	decodeBody(t, resp, &body)
	assert.Equal(t, cohort.ErrTypeNotKnown.Error(), body.Error)

	resp = f.do(t, http.MethodGet, "/types", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var gallery galleryBody
	decodeBody(t, resp, &gallery)
	assert.Len(t, gallery.TypeDefs, 1)
}

func TestEntities(t *testing.T) {
	f := newFixture(t, Options{})
	guid := f.widget.GUID

	resp := f.do(t, http.MethodGet, "/entities/"+guid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entity cohort.EntityDetail
	decodeBody(t, resp, &entity)
	assert.Equal(t, guid, entity.GUID)
	name, _ := entity.Properties.Get("name")
	assert.Equal(t, cohort.String("sprocket"), name)

	resp = f.do(t, http.MethodGet, "/entities/"+guid+"/summary", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/entities/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/entities/"+guid+"/relationships?pageSize=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rels []*cohort.Relationship
	decodeBody(t, resp, &rels)
	assert.Empty(t, rels)

	resp = f.do(t, http.MethodGet, "/entities/"+guid+"/relationships?pageSize=lots", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/entities/"+guid+"/purge?typeName=Widget", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "soft mode purges only deleted entities")

	resp = f.do(t, http.MethodDelete, "/entities/"+guid+"?typeName=Widget", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &entity)
	assert.Equal(t, cohort.StatusDeleted, entity.Status)

	resp = f.do(t, http.MethodPost, "/entities/"+guid+"/purge?typeName=Widget", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/entities/"+guid, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchEntities(t *testing.T) {
	f := newFixture(t, Options{})

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
		count  int
	}{
		{"text", map[string]interface{}{"typeGuid": "widget-guid", "searchText": "rock"}, http.StatusOK, 1},
		{"text miss", map[string]interface{}{"searchText": "gear"}, http.StatusOK, 0},
		{"property", map[string]interface{}{
			"typeGuid":   "widget-guid",
			"properties": cohort.NewInstanceProperties().Set("name", cohort.String("spro")),
		}, http.StatusOK, 1},
		{"page beyond end", map[string]interface{}{"searchText": "sprocket", "fromOffset": 5}, http.StatusOK, 0},
		{"match none", map[string]interface{}{"matchCriteria": "NONE"}, http.StatusNotImplemented, 0},
		{"bad criteria", map[string]interface{}{"matchCriteria": "SOME"}, http.StatusBadRequest, 0},
		{"bad status", map[string]interface{}{"limitResultsByStatus": []string{"ASLEEP"}}, http.StatusBadRequest, 0},
		{"negative page", map[string]interface{}{"searchText": "x", "pageSize": -1}, http.StatusBadRequest, 0},
		{"property sequencing", map[string]interface{}{"searchText": "x", "sequencingOrder": "PROPERTY_ASCENDING"}, http.StatusNotImplemented, 0},
		{"unknown field", map[string]interface{}{"colour": "red"}, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/entities/search", tt.body)
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				return
			}
			var found []*cohort.EntityDetail
			decodeBody(t, resp, &found)
			assert.Len(t, found, tt.count)
		})
	}
}

func TestRefreshEntity(t *testing.T) {
	f := newFixture(t, Options{})
	path := "/entities/" + f.widget.GUID + "/refresh"

	resp := f.do(t, http.MethodPost, path, refreshRequest{TypeName: "Widget", HomeID: "elsewhere"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Empty(t, f.recorder.Events())

	resp = f.do(t, http.MethodPost, path, refreshRequest{TypeName: "Widget", HomeID: "home"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, f.recorder.Events(), 1)

	resp = f.do(t, http.MethodPost, path, refreshRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type failingLimiter struct{}

func (failingLimiter) Allow(ctx context.Context, key string) (*ratelimit.Decision, error) {
	return nil, errors.New("redis down")
}

func TestRateLimit(t *testing.T) {
	limiter, err := ratelimit.NewMemory(2, time.Minute)
	require.NoError(t, err)
	f := newFixture(t, Options{Limiter: limiter})

	resp := f.do(t, http.MethodGet, "/health", nil)
	assert.Empty(t, resp.Header.Get("X-RateLimit-Limit"), "health is not limited")

	for _, remaining := range []string{"1", "0"} {
		resp = f.do(t, http.MethodGet, "/types/Widget", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, remaining, resp.Header.Get("X-RateLimit-Remaining"))
	}

	resp = f.do(t, http.MethodGet, "/types/Widget", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	var body errorBody
	decodeBody(t, resp, &body)
	assert.Equal(t, "rate limited", body.Error)

	open := newFixture(t, Options{Limiter: failingLimiter{}})
	resp = open.do(t, http.MethodGet, "/types/Widget", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "limiter failures let requests through")
}

func TestEvents(t *testing.T) {
	hub := events.NewHub(context.Background(), zap.NewNop())
	hub.Start()
	t.Cleanup(hub.Shutdown)
	f := newFixture(t, Options{JWTSecret: secret, Hub: hub})

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "gina"})
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": []string{"Bearer " + token}})
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.coll.RefreshEntityReferenceCopy(context.Background(), "gina", f.widget.GUID, "", "", "home"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var event events.Event
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, events.EntityRefreshed, event.Kind)
	assert.Equal(t, f.widget.GUID, event.InstanceGUID())
}

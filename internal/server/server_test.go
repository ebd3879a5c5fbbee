package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formdesk/internal/metrics"
	"github.com/goliatone/go-formdesk/pkg/client"
	"github.com/goliatone/go-formdesk/pkg/definition"
	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/options"
	"github.com/goliatone/go-formdesk/pkg/orchestrator"
	"github.com/goliatone/go-formdesk/pkg/table"
)

type stubRequester struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]client.Envelope
}

func (s *stubRequester) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *stubRequester) Get(_ context.Context, path string, query url.Values) (client.Envelope, error) {
	call := "GET " + path
	if encoded := query.Encode(); encoded != "" {
		call += "?" + encoded
	}
	s.record(call)
	envelope, ok := s.responses["GET "+path]
	if !ok {
		return client.Envelope{}, errors.New("unexpected request")
	}
	return envelope, nil
}

func (s *stubRequester) Post(_ context.Context, path string, _ any) (client.Envelope, error) {
	s.record("POST " + path)
	envelope, ok := s.responses["POST "+path]
	if !ok {
		return client.Envelope{}, errors.New("unexpected request")
	}
	return envelope, nil
}

func testStore(t *testing.T) *definition.Store {
	t.Helper()
	forms := []definition.Form{{
		ID:     "exercise",
		Title:  "Exercise",
		Header: orchestrator.Config{Path: "/exercise/edit"},
		Fields: []model.Field{
			{Name: "name", Label: "Name", Type: model.FieldTypeInput, Required: true},
			{Name: "active", Label: "Active", Type: model.FieldTypeSwitch},
			{Name: "warmups", Label: "Warmups", Type: model.FieldTypeStructureList},
			{Name: "coverImgUrl", Label: "Cover", Type: model.FieldTypeUpload},
		},
	}}
	tables := []definition.Table{{Config: table.Config{
		ID:       "exercises",
		Title:    "Exercises",
		Endpoint: "/exercise/page",
		Columns: []table.Column{
			{Title: "ID", DataIndex: "id", Mandatory: true},
			{Title: "Name", DataIndex: "name"},
			{Title: "Actions", Key: "actions", ActionButtons: []string{"edit"}},
		},
		Filters: []table.FilterSection{{Key: "status", Mode: model.ModeMultiple}},
	}}}
	store, err := definition.NewStore(forms, tables)
	require.NoError(t, err)
	return store
}

func newRequester() *stubRequester {
	return &stubRequester{responses: map[string]client.Envelope{
		"GET /exercise/detail/7": {Success: true, Data: []byte(`{"id":7,"name":"Squat","active":1}`)},
		"POST /exercise/save":    {Success: true},
		"GET /exercise/page":     {Success: true, Data: []byte(`{"list":[{"id":1,"name":"Squat"},{"id":2,"name":"Lunge"}],"total":2}`)},
	}}
}

func newTestServer(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	dict := options.New(map[string][]model.Option{
		"Gender": {{Label: "Male", Value: "M"}, {Label: "Female", Value: "F"}},
	})
	srv, err := New(testStore(t), dict, opts...)
	require.NoError(t, err)
	return srv.Router()
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string, accept string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const jsonType = "application/json"

func TestHealthAssetsAndOptions(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/healthz", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/assets/formdesk.css", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/options/Gender?q=fem", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var opts struct {
		Data []model.Option `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opts))
	require.Len(t, opts.Data, 1)
	require.Equal(t, "Female", opts.Data[0].Label)

	rec = do(t, h, http.MethodGet, "/api/options/Missing", "", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDefinitions(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/forms", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"forms":["exercise"],"tables":["exercises"]}`, rec.Body.String())
}

func TestShowForm(t *testing.T) {
	requester := newRequester()
	h := newTestServer(t, WithRequester(requester))

	rec := do(t, h, http.MethodGet, "/forms/exercise/7", "", "", jsonType)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		ID     string         `json:"id"`
		Record string         `json:"record"`
		Values map[string]any `json:"values"`
		Dirty  bool           `json:"dirty"`
		View   struct {
			Nodes []struct {
				Component string `json:"component"`
			} `json:"nodes"`
		} `json:"view"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "exercise", resp.ID)
	require.Equal(t, "7", resp.Record)
	require.Equal(t, "Squat", resp.Values["name"])
	require.False(t, resp.Dirty)
	require.Len(t, resp.View.Nodes, 4)
	require.Equal(t, []string{"GET /exercise/detail/7"}, requester.calls)

	rec = do(t, h, http.MethodGet, "/forms/exercise", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), `<form class="formdesk" id="exercise"`)

	rec = do(t, h, http.MethodGet, "/forms/workout", "", "", jsonType)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/forms/exercise/99", "", "", jsonType)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSubmitForm_JSON(t *testing.T) {
	requester := newRequester()
	h := newTestServer(t, WithRequester(requester))

	rec := do(t, h, http.MethodPost, "/forms/exercise/7", jsonType, `{"values":{"name":"Front Squat"}}`, jsonType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Endpoint string         `json:"endpoint"`
		Data     map[string]any `json:"data"`
		Notice   string         `json:"notice"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "/exercise/save", resp.Endpoint)
	require.Equal(t, "Front Squat", resp.Data["name"])
	require.Equal(t, "Saved successfully", resp.Notice)
	require.Equal(t, []string{"GET /exercise/detail/7", "POST /exercise/save"}, requester.calls)
}

func TestSubmitForm_Invalid(t *testing.T) {
	m := metrics.New()
	requester := newRequester()
	h := newTestServer(t, WithRequester(requester), WithMetrics(m))

	rec := do(t, h, http.MethodPost, "/forms/exercise", jsonType, `{"values":{"name":""}}`, jsonType)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp struct {
		Errors map[string][]string `json:"errors"`
		Notice string              `json:"notice"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Errors["name"])
	require.Equal(t, resp.Errors["name"][0], resp.Notice)
	require.Empty(t, requester.calls)

	rec = do(t, h, http.MethodPost, "/forms/exercise", "application/x-www-form-urlencoded", "name=&action=save", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec = do(t, h, http.MethodGet, "/metrics", "", "", "")
	require.Contains(t, rec.Body.String(), `formdesk_saves_total{form="exercise",outcome="invalid"} 2`)
}

func TestSubmitForm_AddItem(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/forms/exercise", "application/x-www-form-urlencoded", "name=Plank&action=add%3Awarmups", jsonType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Values map[string]any `json:"values"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Plank", resp.Values["name"])
	require.Len(t, resp.Values["warmups"], 1)

	rec = do(t, h, http.MethodPost, "/forms/exercise", "application/x-www-form-urlencoded", "action=add%3Amissing", jsonType)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitForm_ListActions(t *testing.T) {
	h := newTestServer(t, WithRequester(newRequester()))
	state := url.QueryEscape(`[{"id":"w1","title":"Jog"},{"id":"w2","title":"Row"}]`)

	post := func(action string) *httptest.ResponseRecorder {
		body := "name=Plank&warmups=" + state + "&action=" + url.QueryEscape(action)
		return do(t, h, http.MethodPost, "/forms/exercise", "application/x-www-form-urlencoded", body, jsonType)
	}
	ids := func(rec *httptest.ResponseRecorder) []string {
		t.Helper()
		var resp struct {
			Values struct {
				Warmups []struct {
					ID string `json:"id"`
				} `json:"warmups"`
			} `json:"values"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		out := make([]string, 0, len(resp.Values.Warmups))
		for _, item := range resp.Values.Warmups {
			out = append(out, item.ID)
		}
		return out
	}

	rec := post("move:warmups:w1:down")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, []string{"w2", "w1"}, ids(rec))

	rec = post("remove:warmups:w1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, []string{"w2"}, ids(rec))

	rec = post("duplicate:warmups:w1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := ids(rec)
	require.Len(t, got, 3)
	require.Equal(t, "w1", got[0])
	require.NotContains(t, []string{"w1", "w2", ""}, got[1])
	require.Equal(t, "w2", got[2])

	rec = post("add:warmups")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ids(rec), 3)

	for _, action := range []string{"move:warmups:w1:up", "remove:warmups:missing", "move:warmups:w1:sideways", "remove:warmups"} {
		rec = post(action)
		require.Equal(t, http.StatusBadRequest, rec.Code, action)
	}

	rec = post("save")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	require.Equal(t, []any{"w1", "w2"}, saved.Data["warmups"])
}

func TestSubmitForm_Upload(t *testing.T) {
	var uploaded client.File
	var content string
	uploader := client.UploaderFunc(func(_ context.Context, file client.File) (string, error) {
		uploaded = file
		body, err := io.ReadAll(file.Body)
		if err != nil {
			return "", err
		}
		content = string(body)
		return "https://cdn.test/" + file.Name, nil
	})
	h := newTestServer(t, WithRequester(newRequester()), WithUploader(uploader))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("name", "Squat"))
	require.NoError(t, writer.WriteField("action", "save"))
	part, err := writer.CreateFormFile("coverImgUrl", "squat.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := do(t, h, http.MethodPost, "/forms/exercise", writer.FormDataContentType(), body.String(), jsonType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "https://cdn.test/squat.png", resp.Data["coverImgUrl"])
	require.Equal(t, "Squat", resp.Data["name"])
	require.Equal(t, "squat.png", uploaded.Name)
	require.Equal(t, "png-bytes", content)

	failing := newTestServer(t, WithRequester(newRequester()))
	rec = do(t, failing, http.MethodPost, "/forms/exercise", writer.FormDataContentType(), body.String(), jsonType)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestTable_LoadAndClick(t *testing.T) {
	m := metrics.New()
	requester := newRequester()
	h := newTestServer(t, WithRequester(requester), WithMetrics(m))

	rec := do(t, h, http.MethodGet, "/tables/exercises?page=2&keyword=sq&status=ENABLED,DRAFT", "", "", jsonType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result table.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Rows, 2)
	require.Equal(t, 2, result.Page)
	require.Equal(t, []string{"GET /exercise/page?keyword=sq&page=2&pageSize=10&status=ENABLED%2CDRAFT"}, requester.calls)

	rec = do(t, h, http.MethodPost, "/tables/exercises/click", jsonType, `{"area":"action","rowKey":"1","action":"edit"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"consumed":true,"handled":"action","action":"edit"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/tables/exercises/click", jsonType, `{"area":"row","rowKey":"42"}`, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/tables/exercises", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Lunge")

	rec = do(t, h, http.MethodGet, "/metrics", "", "", "")
	require.Contains(t, rec.Body.String(), `formdesk_table_loads_total{result="ok",table="exercises"} 2`)
}

func TestTable_Columns(t *testing.T) {
	h := newTestServer(t, WithRequester(newRequester()), WithVisibilityStore(table.NewMemoryStore()))

	rec := do(t, h, http.MethodPost, "/tables/exercises/columns", jsonType, `{"key":"name","visible":false}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"hidden":["name"]}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/tables/exercises/columns", jsonType, `{"key":"id","visible":false}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/tables/exercises", "", "", jsonType)
	require.Equal(t, http.StatusOK, rec.Code)
	var result table.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	keys := make([]string, 0, len(result.Headers))
	for _, header := range result.Headers {
		keys = append(keys, header.Key)
	}
	require.Equal(t, []string{"id", "actions"}, keys)

	rec = do(t, h, http.MethodPost, "/tables/exercises/columns", jsonType, `{"reset":true}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"hidden":[]}`, rec.Body.String())

	plain := newTestServer(t, WithRequester(newRequester()))
	rec = do(t, plain, http.MethodPost, "/tables/exercises/columns", jsonType, `{"key":"name"}`, "")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRequesterLoader(t *testing.T) {
	requester := &stubRequester{responses: map[string]client.Envelope{
		"GET /workout/detail/3": {Success: false, ErrMessage: "Record removed"},
	}}
	loader := RequesterLoader(requester)

	_, err := loader.Load(context.Background(), definition.Form{ID: "workout"}, "3")
	require.ErrorContains(t, err, "Record removed")

	_, err = loader.Load(context.Background(), definition.Form{ID: "plan", Header: orchestrator.Config{Module: "workout"}}, "3")
	require.ErrorContains(t, err, "Record removed")
	require.Equal(t, []string{"GET /workout/detail/3", "GET /workout/detail/3"}, requester.calls)
}

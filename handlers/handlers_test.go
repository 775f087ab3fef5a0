package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/camden-git/facesys/faces"
	"github.com/camden-git/facesys/models"
	"github.com/camden-git/facesys/repository"
	"github.com/camden-git/facesys/services"
	"github.com/camden-git/facesys/workers"
)

type fakeIdentityService struct {
	people    []services.PersonSummary
	images    []models.Image
	results   []services.SearchResult
	err       error
	lastName  string
	lastOther string
	lastLimit int
	gotImage  image.Image
}

func (f *fakeIdentityService) ListPeople(ctx context.Context) ([]services.PersonSummary, error) {
	return f.people, f.err
}

func (f *fakeIdentityService) ImagesByPerson(ctx context.Context, name string, limit int) ([]models.Image, error) {
	f.lastName, f.lastLimit = name, limit
	return f.images, f.err
}

func (f *fakeIdentityService) AddPerson(ctx context.Context, label string, img image.Image) (faces.Observation, error) {
	f.lastName, f.gotImage = label, img
	if f.err != nil {
		return faces.Observation{}, f.err
	}
	return faces.Observation{Box: faces.BoundingBox{X1: 1, Y1: 2, X2: 30, Y2: 40}}, nil
}

func (f *fakeIdentityService) SearchByImage(ctx context.Context, img image.Image) ([]services.SearchResult, error) {
	f.gotImage = img
	return f.results, f.err
}

func (f *fakeIdentityService) RenamePerson(ctx context.Context, oldName, newName string) (int64, error) {
	f.lastName, f.lastOther = oldName, newName
	return 3, f.err
}

func (f *fakeIdentityService) MergePeople(ctx context.Context, source, target string) (int64, error) {
	f.lastName, f.lastOther = source, target
	return 2, f.err
}

type fakeRunner struct {
	enqueued []string
	accept   bool
	status   workers.RunStatus
}

func (f *fakeRunner) Enqueue(reason string) bool {
	f.enqueued = append(f.enqueued, reason)
	return f.accept
}

func (f *fakeRunner) Status() workers.RunStatus { return f.status }

func newTestRouter(svc *fakeIdentityService, runner *fakeRunner) http.Handler {
	return NewRouter(RouterDeps{
		Service: svc,
		Runner:  runner,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("facesys_up 1\n"))
		}),
	})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, target string, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		part, err := mw.CreateFormFile("image", "face.png")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIErrorDetail {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	return resp.Errors[0]
}

func TestListPeople(t *testing.T) {
	svc := &fakeIdentityService{people: []services.PersonSummary{
		{Name: "Alice", FaceCount: 4},
		{Name: "Unknown_1a2b3c4d", FaceCount: 1, Unknown: true},
	}}
	rec := serve(newTestRouter(svc, &fakeRunner{}), httptest.NewRequest(http.MethodGet, "/api/people", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []services.PersonSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, svc.people, got)
}

func TestListPeopleEmptyAndFailing(t *testing.T) {
	rec := serve(newTestRouter(&fakeIdentityService{}, &fakeRunner{}), httptest.NewRequest(http.MethodGet, "/api/people", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	svc := &fakeIdentityService{err: errors.New("database is locked")}
	rec = serve(newTestRouter(svc, &fakeRunner{}), httptest.NewRequest(http.MethodGet, "/api/people", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := decodeAPIError(t, rec)
	assert.Equal(t, CodeInternal, detail.Code)
	assert.Equal(t, "500", detail.Status)
	assert.NotContains(t, detail.Detail, "locked")
}

func TestListPersonImages(t *testing.T) {
	svc := &fakeIdentityService{images: []models.Image{{ID: 7, FilePath: "/photos/a.jpg"}}}
	router := newTestRouter(svc, &fakeRunner{})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/people/Alice/images?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", svc.lastName)
	assert.Equal(t, 5, svc.lastLimit)
	assert.Contains(t, rec.Body.String(), "/photos/a.jpg")

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/people/Alice/images", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, svc.lastLimit)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/people/Alice/images?limit=zero", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidRequest, decodeAPIError(t, rec).Code)
}

func TestAddPerson(t *testing.T) {
	svc := &fakeIdentityService{}
	router := newTestRouter(svc, &fakeRunner{})

	rec := serve(router, multipartRequest(t, "/api/people", map[string]string{"name": " Alice "}, pngBytes(t)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, " Alice ", svc.lastName)
	require.NotNil(t, svc.gotImage)
	assert.Equal(t, 8, svc.gotImage.Bounds().Dx())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Alice", body["name"])
}

func TestAddPersonErrors(t *testing.T) {
	tests := []struct {
		name   string
		svcErr error
		file   []byte
		status int
		code   string
	}{
		{"missing file", nil, nil, http.StatusBadRequest, CodeInvalidRequest},
		{"not an image", nil, []byte("plain text"), http.StatusBadRequest, CodeInvalidImage},
		{"empty label", services.ErrInvalidLabel, nil, http.StatusBadRequest, CodeInvalidLabel},
		{"no face", faces.ErrNoFaceDetected, nil, http.StatusUnprocessableEntity, CodeNoFace},
		{"models missing", fmt.Errorf("%w: model file missing", faces.ErrEngineNotReady), nil, http.StatusServiceUnavailable, CodeEngineNotReady},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			file := tc.file
			if tc.svcErr != nil {
				file = pngBytes(t)
			}
			svc := &fakeIdentityService{err: tc.svcErr}
			rec := serve(newTestRouter(svc, &fakeRunner{}), multipartRequest(t, "/api/people", map[string]string{"name": "Bob"}, file))

			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decodeAPIError(t, rec).Code)
		})
	}
}

func TestRenameAndMergePerson(t *testing.T) {
	svc := &fakeIdentityService{}
	router := newTestRouter(svc, &fakeRunner{})

	req := httptest.NewRequest(http.MethodPut, "/api/people/Unknown_1a2b3c4d", strings.NewReader(`{"new_name":"Carol"}`))
	rec := serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Unknown_1a2b3c4d", svc.lastName)
	assert.Equal(t, "Carol", svc.lastOther)
	assert.JSONEq(t, `{"name":"Carol","faces_updated":3}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/people/Carol/merge", strings.NewReader(`{"target":"Alice"}`))
	rec = serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Carol", svc.lastName)
	assert.Equal(t, "Alice", svc.lastOther)
	assert.JSONEq(t, `{"name":"Alice","faces_updated":2}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPut, "/api/people/Carol", strings.NewReader(`{`))
	rec = serve(router, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidRequest, decodeAPIError(t, rec).Code)

	svc.err = services.ErrInvalidLabel
	req = httptest.NewRequest(http.MethodPut, "/api/people/Carol", strings.NewReader(`{"new_name":"  "}`))
	rec = serve(router, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidLabel, decodeAPIError(t, rec).Code)
}

func TestSearchFaces(t *testing.T) {
	svc := &fakeIdentityService{results: []services.SearchResult{
		{Box: faces.BoundingBox{X2: 10, Y2: 10}, Label: "Alice", Distance: 0.2, Confidence: 90, Matched: true},
	}}
	rec := serve(newTestRouter(svc, &fakeRunner{}), multipartRequest(t, "/api/search/faces", nil, pngBytes(t)))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Faces []services.SearchResult `json:"faces"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, svc.results, body.Faces)

	svc = &fakeIdentityService{}
	rec = serve(newTestRouter(svc, &fakeRunner{}), multipartRequest(t, "/api/search/faces", nil, pngBytes(t)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"faces":[]}`, rec.Body.String())
}

func TestProcessEndpoints(t *testing.T) {
	runner := &fakeRunner{accept: true, status: workers.RunStatus{State: workers.StateQueued, Pending: true}}
	router := newTestRouter(&fakeIdentityService{}, runner)

	rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/process", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"api"}, runner.enqueued)

	var body struct {
		Queued bool              `json:"queued"`
		Status workers.RunStatus `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Queued)
	assert.Equal(t, workers.StateQueued, body.Status.State)

	runner.status = workers.RunStatus{State: workers.StateIdle, Runs: 4}
	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/process", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status workers.RunStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 4, status.Runs)
}

func TestMetricsAndNotFound(t *testing.T) {
	router := newTestRouter(&fakeIdentityService{}, &fakeRunner{})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "facesys_up 1")

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeAPIError(t, rec).Code)
}

type fakeAlbumStore struct {
	albums    []models.Album
	images    []models.Image
	err       error
	lastID    uint
	lastLimit int
}

func (f *fakeAlbumStore) ListAlbums(ctx context.Context) ([]models.Album, error) {
	return f.albums, f.err
}

func (f *fakeAlbumStore) GetAlbum(ctx context.Context, id uint) (*models.Album, error) {
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.albums {
		if f.albums[i].ID == id {
			return &f.albums[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAlbumStore) ListAlbumImages(ctx context.Context, albumID uint, limit int) ([]models.Image, error) {
	f.lastLimit = limit
	return f.images, f.err
}

func newAlbumRouter(store *fakeAlbumStore) http.Handler {
	return NewRouter(RouterDeps{Service: &fakeIdentityService{}, Albums: store, Runner: &fakeRunner{}})
}

func TestListAlbums(t *testing.T) {
	store := &fakeAlbumStore{albums: []models.Album{
		{ID: 1, Name: models.DefaultAlbumName, ImageCount: 4},
		{ID: 2, Name: "Trips"},
	}}

	rec := serve(newAlbumRouter(store), httptest.NewRequest(http.MethodGet, "/api/albums", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.Album
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Default", got[0].Name)
	assert.Equal(t, 4, got[0].ImageCount)

	rec = serve(newAlbumRouter(&fakeAlbumStore{}), httptest.NewRequest(http.MethodGet, "/api/albums", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(newAlbumRouter(&fakeAlbumStore{err: errors.New("db down")}), httptest.NewRequest(http.MethodGet, "/api/albums", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestListAlbumImages(t *testing.T) {
	store := &fakeAlbumStore{
		albums: []models.Album{{ID: 7, Name: "Trips"}},
		images: []models.Image{{ID: 1, FilePath: "/photos/a.jpg"}},
	}
	router := newAlbumRouter(store)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/albums/7/images?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint(7), store.lastID)
	assert.Equal(t, 5, store.lastLimit)

	var body struct {
		Album  models.Album   `json:"album"`
		Images []models.Image `json:"images"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Trips", body.Album.Name)
	require.Len(t, body.Images, 1)
	assert.Equal(t, "/photos/a.jpg", body.Images[0].FilePath)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/albums/7/images", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.DefaultAlbumImageLimit, store.lastLimit)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/albums/99/images", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeAPIError(t, rec).Code)

	for _, target := range []string{"/api/albums/abc/images", "/api/albums/0/images", "/api/albums/7/images?limit=-1"} {
		rec = serve(router, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, CodeInvalidRequest, decodeAPIError(t, rec).Code)
	}
}

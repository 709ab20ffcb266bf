package posts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/courteous/edge-consult-backend/internal/auth"
	"github.com/courteous/edge-consult-backend/internal/middleware"
	"github.com/courteous/edge-consult-backend/internal/models"
	"github.com/courteous/edge-consult-backend/internal/store"
)

const authorID = "22222222-2222-2222-2222-222222222222"

// ── fakes ────────────────────────────────────────────────────────────

type fakePostStore struct {
	posts     []*models.Post
	insertErr error
}

func (f *fakePostStore) InsertPost(_ context.Context, p *models.Post) (*models.Post, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	for _, existing := range f.posts {
		if existing.Slug == p.Slug || existing.Title == p.Title {
			return nil, store.ErrDuplicate
		}
	}
	p.ID = primitive.NewObjectID()
	f.posts = append(f.posts, p)
	return p, nil
}

func (f *fakePostStore) FindPostByID(_ context.Context, id string) (*models.Post, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrBadID
	}
	for _, p := range f.posts {
		if p.ID == oid {
			return p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakePostStore) FindPostBySlugOrTitle(_ context.Context, slug, title string) (*models.Post, error) {
	for _, p := range f.posts {
		if p.Slug == slug || p.Title == title {
			return p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakePostStore) ListPosts(_ context.Context, category string) ([]models.Post, error) {
	var out []models.Post
	for _, p := range f.posts {
		if category == "" || p.Category == category {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePostStore) DeletePost(_ context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrBadID
	}
	for i, p := range f.posts {
		if p.ID == oid {
			f.posts = append(f.posts[:i], f.posts[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

type fakeFileStore struct {
	uploads   []string
	removed   []string
	uploadErr error
	removeErr error
}

func (f *fakeFileStore) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads = append(f.uploads, key)
	return "http://blobs/post-images/" + key, nil
}

func (f *fakeFileStore) RemoveByURL(_ context.Context, url string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, url)
	return nil
}

type fakeUserStore struct{}

func (fakeUserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Name: "Ada", Email: "ada@x.com", Role: models.RoleAdmin}, nil
}

// ── helpers ──────────────────────────────────────────────────────────

type multipartBody struct {
	buf    bytes.Buffer
	writer *multipart.Writer
}

func newMultipart(t *testing.T, fields map[string]string) *multipartBody {
	t.Helper()
	m := &multipartBody{}
	m.writer = multipart.NewWriter(&m.buf)
	for k, v := range fields {
		require.NoError(t, m.writer.WriteField(k, v))
	}
	return m
}

func (m *multipartBody) withImage(t *testing.T, filename string) *multipartBody {
	t.Helper()
	fw, err := m.writer.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	return m
}

func (m *multipartBody) request(t *testing.T) *http.Request {
	t.Helper()
	require.NoError(t, m.writer.Close())
	req := httptest.NewRequest(http.MethodPost, "/add-posts", &m.buf)
	req.Header.Set("Content-Type", m.writer.FormDataContentType())
	return req
}

func validFields() map[string]string {
	return map[string]string{
		"title":    "Hello World",
		"body":     "Some body text.",
		"category": models.CategoryNews,
		"author":   authorID,
	}
}

func doCreate(t *testing.T, h *Handler, m *multipartBody) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Create(rec, m.request(t))
	return rec
}

func createdPost(t *testing.T, rec *httptest.ResponseRecorder) models.Post {
	t.Helper()
	var resp struct {
		Post models.Post `json:"post"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Post
}

// ── creation workflow ────────────────────────────────────────────────

func TestCreateDerivesSlug(t *testing.T) {
	h := NewHandler(&fakePostStore{}, &fakeFileStore{}, fakeUserStore{})

	rec := doCreate(t, h, newMultipart(t, validFields()))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	post := createdPost(t, rec)
	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, models.CategoryNews, post.Category)
	assert.Empty(t, post.ImagePath)
	assert.Nil(t, post.ScholarshipDetails)
	assert.Nil(t, post.JobDetails)
}

func TestCreateMissingFieldsListsThem(t *testing.T) {
	h := NewHandler(&fakePostStore{}, &fakeFileStore{}, fakeUserStore{})

	fields := validFields()
	delete(fields, "body")
	delete(fields, "author")

	rec := doCreate(t, h, newMultipart(t, fields))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "body")
	assert.Contains(t, rec.Body.String(), "author")
}

func TestCreateRejectsMalformedAuthorID(t *testing.T) {
	h := NewHandler(&fakePostStore{}, &fakeFileStore{}, fakeUserStore{})

	fields := validFields()
	fields["author"] = "not-a-uuid"

	rec := doCreate(t, h, newMultipart(t, fields))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDuplicateTitleConflicts(t *testing.T) {
	files := &fakeFileStore{}
	h := NewHandler(&fakePostStore{}, files, fakeUserStore{})

	rec := doCreate(t, h, newMultipart(t, validFields()))
	require.Equal(t, http.StatusCreated, rec.Code)

	// Second create with the identical title — and an image, to prove the
	// duplicate check runs before any upload.
	rec = doCreate(t, h, newMultipart(t, validFields()).withImage(t, "pic.png"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, files.uploads)
}

func TestCreateColumnSlugCollisionConflicts(t *testing.T) {
	h := NewHandler(&fakePostStore{}, &fakeFileStore{}, fakeUserStore{})

	rec := doCreate(t, h, newMultipart(t, validFields()))
	require.Equal(t, http.StatusCreated, rec.Code)

	// Distinct title, same slug after normalization.
	fields := validFields()
	fields["title"] = "hello   WORLD!"
	rec = doCreate(t, h, newMultipart(t, fields))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateUploadsImage(t *testing.T) {
	files := &fakeFileStore{}
	h := NewHandler(&fakePostStore{}, files, fakeUserStore{})

	rec := doCreate(t, h, newMultipart(t, validFields()).withImage(t, "cover.jpg"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, files.uploads, 1)
	assert.Contains(t, files.uploads[0], "hello-world-")
	assert.Contains(t, files.uploads[0], ".jpg")
	assert.Equal(t, "http://blobs/post-images/"+files.uploads[0], createdPost(t, rec).ImagePath)
}

func TestCreateUploadFailureAborts(t *testing.T) {
	posts := &fakePostStore{}
	files := &fakeFileStore{uploadErr: errors.New("blob store down")}
	h := NewHandler(posts, files, fakeUserStore{})

	rec := doCreate(t, h, newMultipart(t, validFields()).withImage(t, "cover.jpg"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, posts.posts)
}

// The compensating delete: a failed post write must not leave the
// uploaded blob behind, and the original error is what the caller sees.
func TestCreateStoreFailureDeletesUploadedBlob(t *testing.T) {
	posts := &fakePostStore{insertErr: errors.New("mongo write failed")}
	files := &fakeFileStore{}
	h := NewHandler(posts, files, fakeUserStore{})

	rec := doCreate(t, h, newMultipart(t, validFields()).withImage(t, "cover.jpg"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	require.Len(t, files.uploads, 1)
	require.Len(t, files.removed, 1)
	assert.Equal(t, "http://blobs/post-images/"+files.uploads[0], files.removed[0])
}

func TestCreateStoreFailureWithoutImageDeletesNothing(t *testing.T) {
	posts := &fakePostStore{insertErr: errors.New("mongo write failed")}
	files := &fakeFileStore{}
	h := NewHandler(posts, files, fakeUserStore{})

	rec := doCreate(t, h, newMultipart(t, validFields()))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, files.removed)
}

// A duplicate-key error from the store (the documented race slipping past
// the pre-insert lookup) still surfaces as 409 and still cleans up.
func TestCreateRaceDuplicateMapsToConflict(t *testing.T) {
	posts := &fakePostStore{insertErr: store.ErrDuplicate}
	files := &fakeFileStore{}
	h := NewHandler(posts, files, fakeUserStore{})

	rec := doCreate(t, h, newMultipart(t, validFields()).withImage(t, "cover.jpg"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, files.removed, 1)
}

func TestCreateMalformedTagsDeletesUploadedBlob(t *testing.T) {
	files := &fakeFileStore{}
	h := NewHandler(&fakePostStore{}, files, fakeUserStore{})

	fields := validFields()
	fields["tags"] = "not json"

	rec := doCreate(t, h, newMultipart(t, fields).withImage(t, "cover.jpg"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, files.uploads, 1)
	assert.Len(t, files.removed, 1)
}

func TestCreateScholarshipDetails(t *testing.T) {
	h := NewHandler(&fakePostStore{}, &fakeFileStore{}, fakeUserStore{})

	fields := validFields()
	fields["title"] = "Fully Funded PhD in Canada"
	fields["category"] = models.CategoryScholarships
	fields["country"] = "Canada"
	fields["degree"] = "PhD"
	fields["funding"] = "Full"
	fields["requirements"] = `["transcript","two references"]`

	rec := doCreate(t, h, newMultipart(t, fields))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	post := createdPost(t, rec)
	require.NotNil(t, post.ScholarshipDetails)
	assert.Equal(t, "Canada", post.ScholarshipDetails.Country)
	assert.Equal(t, []string{"transcript", "two references"}, post.ScholarshipDetails.Requirements)
	assert.Nil(t, post.JobDetails)
}

func TestCreateJobDetailsParsesSalaryRange(t *testing.T) {
	h := NewHandler(&fakePostStore{}, &fakeFileStore{}, fakeUserStore{})

	fields := validFields()
	fields["title"] = "Backend Engineer at Acme"
	fields["category"] = models.CategoryJobs
	fields["company"] = "Acme"
	fields["location"] = "Lagos"
	fields["salaryRange"] = "$50k - $70k"
	fields["responsibilities"] = `["ship features"]`

	rec := doCreate(t, h, newMultipart(t, fields))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	post := createdPost(t, rec)
	require.NotNil(t, post.JobDetails)
	assert.Equal(t, "Acme", post.JobDetails.Company)
	assert.Equal(t, "$50k - $70k", post.JobDetails.SalaryRange)
	assert.Equal(t, 50000.0, post.JobDetails.Salary.Min)
	assert.Equal(t, 70000.0, post.JobDetails.Salary.Max)
	assert.Nil(t, post.ScholarshipDetails)
}

// Category detail fields form a tagged union: fields of one variant are
// rejected, not dropped, when the category does not match.
func TestCreateRejectsForeignDetailFields(t *testing.T) {
	h := NewHandler(&fakePostStore{}, &fakeFileStore{}, fakeUserStore{})

	fields := validFields() // category: news
	fields["company"] = "Acme"
	rec := doCreate(t, h, newMultipart(t, fields))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "company")

	fields = validFields()
	fields["category"] = models.CategoryJobs
	fields["funding"] = "Full"
	rec = doCreate(t, h, newMultipart(t, fields))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "funding")
}

func TestCreateRejectsUnknownCategory(t *testing.T) {
	h := NewHandler(&fakePostStore{}, &fakeFileStore{}, fakeUserStore{})

	fields := validFields()
	fields["category"] = "gossip"
	rec := doCreate(t, h, newMultipart(t, fields))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSalaryRangeParsing(t *testing.T) {
	cases := []struct {
		in       string
		min, max float64
	}{
		{"$50k - $70k", 50000, 70000},
		{"90k", 90000, 90000},
		{"", 0, 0},
		{"negotiable", 0, 0},
	}
	for _, tc := range cases {
		got := parseSalaryRange(tc.in)
		assert.Equal(t, tc.min, got.Min, "min for %q", tc.in)
		assert.Equal(t, tc.max, got.Max, "max for %q", tc.in)
	}
}

// ── reads and delete ─────────────────────────────────────────────────

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func seedPost(t *testing.T, posts *fakePostStore, title, category string) *models.Post {
	t.Helper()
	h := NewHandler(posts, &fakeFileStore{}, fakeUserStore{})
	fields := validFields()
	fields["title"] = title
	fields["category"] = category
	rec := doCreate(t, h, newMultipart(t, fields))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return posts.posts[len(posts.posts)-1]
}

func TestGetPost(t *testing.T) {
	posts := &fakePostStore{}
	seeded := seedPost(t, posts, "A Post", models.CategoryNews)
	h := NewHandler(posts, &fakeFileStore{}, fakeUserStore{})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/posts/"+seeded.ID.Hex(), nil), "id", seeded.ID.Hex())
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "A Post", got.Title)
	require.NotNil(t, got.AuthorInfo)
	assert.Equal(t, "Ada", got.AuthorInfo.Name)
}

func TestGetPostBadID(t *testing.T) {
	h := NewHandler(&fakePostStore{}, &fakeFileStore{}, fakeUserStore{})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/posts/nope", nil), "id", "nope")
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPostNotFound(t *testing.T) {
	h := NewHandler(&fakePostStore{}, &fakeFileStore{}, fakeUserStore{})

	id := primitive.NewObjectID().Hex()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/posts/"+id, nil), "id", id)
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScholarshipsFiltersByCategory(t *testing.T) {
	posts := &fakePostStore{}
	seedPost(t, posts, "News Item", models.CategoryNews)
	seedPost(t, posts, "Canada Scholarship", models.CategoryScholarships)
	h := NewHandler(posts, &fakeFileStore{}, fakeUserStore{})

	rec := httptest.NewRecorder()
	h.Scholarships(rec, httptest.NewRequest(http.MethodGet, "/scholarships", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Canada Scholarship", got[0].Title)
}

func deleteRequest(postID string, claims *auth.Claims) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, "/posts/"+postID, nil)
	req = withURLParam(req, "id", postID)
	if claims != nil {
		req = req.WithContext(middleware.WithIdentity(req.Context(), claims))
	}
	return req
}

func TestDeleteByAuthorRemovesPostAndImage(t *testing.T) {
	posts := &fakePostStore{}
	files := &fakeFileStore{}
	h := NewHandler(posts, files, fakeUserStore{})

	rec := doCreate(t, h, newMultipart(t, validFields()).withImage(t, "cover.png"))
	require.Equal(t, http.StatusCreated, rec.Code)
	seeded := posts.posts[0]

	rec = httptest.NewRecorder()
	h.Delete(rec, deleteRequest(seeded.ID.Hex(), &auth.Claims{UserID: authorID}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, posts.posts)
	require.Len(t, files.removed, 1)
	assert.Equal(t, seeded.ImagePath, files.removed[0])
}

func TestDeleteByNonAuthorUnauthorized(t *testing.T) {
	posts := &fakePostStore{}
	seeded := seedPost(t, posts, "A Post", models.CategoryNews)
	h := NewHandler(posts, &fakeFileStore{}, fakeUserStore{})

	rec := httptest.NewRecorder()
	h.Delete(rec, deleteRequest(seeded.ID.Hex(), &auth.Claims{UserID: "33333333-3333-3333-3333-333333333333"}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, posts.posts, 1)
}

func TestDeleteMissingPost(t *testing.T) {
	h := NewHandler(&fakePostStore{}, &fakeFileStore{}, fakeUserStore{})

	rec := httptest.NewRecorder()
	h.Delete(rec, deleteRequest(primitive.NewObjectID().Hex(), &auth.Claims{UserID: authorID}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/course"
	"github.com/darasahub/darasa/core/submission"
	"github.com/darasahub/darasa/core/user"
	logsvc "github.com/darasahub/darasa/services/logger"
	"github.com/darasahub/darasa/storage/database/dummy"
	"github.com/darasahub/darasa/storage/files"
)

var (
	errMissingToken     = httpErr{Error: "missing or malformed jwt"}
	errPermissionDenied = httpErr{Error: "permission denied"}
	errNotFound         = httpErr{Error: "not found"}
)

// courseFixtureRepo adds the dummydb-only seeding helpers to course.Repository.
type courseFixtureRepo interface {
	course.Repository
	CreateCourse(c course.Course) course.Course
	Enroll(courseID, userID, roleInCourse string) course.Enrollment
}

type testEnv struct {
	app        Server
	usrRepo    user.Repository
	usrSvc     *user.Service
	courseRepo courseFixtureRepo
	subSvc     *submission.Service
	store      *files.Store
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	core.Conf.Debug = false
	core.Conf.TestMode = true

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	store, err := files.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("files.NewStore() failed: %v", err)
	}

	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	usrRepo := dummydb.NewUserRepository(db)
	courseRepo := dummydb.NewCourseRepository(db)

	usrSvc := user.NewService(usrRepo)
	courseSvc := course.NewService(courseRepo, store, logger)
	subSvc := submission.NewService(dummydb.NewSubmissionRepository(db), courseRepo, store, logger)

	app := NewServer(
		&Options{
			DisableReqLogs: true,
			UserSvc:        usrSvc,
			CourseSvc:      courseSvc,
			SubmissionSvc:  subSvc,
			Store:          store,
			Logger:         logger,
		},
	)
	return &testEnv{
		app:        app,
		usrRepo:    usrRepo,
		usrSvc:     usrSvc,
		courseRepo: courseRepo,
		subSvc:     subSvc,
		store:      store,
	}
}

func (env *testEnv) createUser(t *testing.T, name, email, studentID, role, pwd string) user.User {
	t.Helper()
	usr, err := env.usrSvc.Create(context.Background(), user.NewUser{
		Name:      name,
		Email:     email,
		StudentID: studentID,
		Role:      role,
		Password:  pwd,
	})
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return usr
}

// seedAssignment builds a course with one assignment, one staff teacher and
// one enrolled student.
func (env *testEnv) seedAssignment(t *testing.T) (course.Course, course.Assignment, user.User, user.User) {
	t.Helper()
	c := env.courseRepo.CreateCourse(course.Course{Name: "Algorithms", Term: "2021T1", Code: "CS201"})
	a, err := env.courseRepo.CreateAssignment(context.Background(), course.Assignment{
		CourseID:  c.ID,
		Title:     "Problem Set 1",
		AllowLate: true,
		MaxPoints: 100,
	})
	if err != nil {
		t.Fatalf("creating assignment: %v", err)
	}

	teacher := env.createUser(t, "Prof Pat", "pat@school.test", "", user.RoleTeacher, "s3cr3t")
	student := env.createUser(t, "Alice Aoki", "alice@school.test", "s001", user.RoleStudent, "s3cr3t")
	env.courseRepo.Enroll(c.ID, teacher.ID, course.RoleTeacher)
	env.courseRepo.Enroll(c.ID, student.ID, course.RoleStudent)
	return c, a, teacher, student
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart request; uploads are (filename, content)
// pairs sent under the "files" field.
func newUploadRequest(t *testing.T, method, path, token string, fields map[string]string, uploads [][2]string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("writing form field: %v", err)
		}
	}
	for _, up := range uploads {
		fw, err := w.CreateFormFile("files", up[0])
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		if _, err := io.Copy(fw, strings.NewReader(up[1])); err != nil {
			t.Fatalf("writing form file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if tt.wantCode == 0 {
		tt.wantCode = http.StatusOK
	}
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

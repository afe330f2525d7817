package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/trackle/apps/api/echo"
	"github.com/trezcool/trackle/core"
	"github.com/trezcool/trackle/core/classroom"
	"github.com/trezcool/trackle/core/user"
	emailsvc "github.com/trezcool/trackle/services/email"
	sqlxrepos "github.com/trezcool/trackle/storage/database/sqlx"
	testutil "github.com/trezcool/trackle/tests"
)

var (
	errMissingToken     = httpErr{Error: "missing or malformed jwt"}
	errPermissionDenied = httpErr{Error: "permission denied"}
	errNotFound         = httpErr{Error: "not found"}
)

type env struct {
	conf    *core.Config
	app     *Server
	usrRepo user.Repository
	repo    classroom.Repository
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) *env {
	t.Helper()
	conf := testutil.NewConfig()
	conf.Server.DisableReqLogs = true
	logger := testutil.NewLogger(conf)

	// set up DB & repos
	db := testutil.PrepareDB(t)
	e := &env{
		conf:    conf,
		usrRepo: sqlxrepos.NewUserRepository(db),
		repo:    sqlxrepos.NewClassroomRepository(db),
		mailSvc: emailsvc.NewConsoleServiceMock(conf, logger),
	}

	// set up services
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	classroom.InitValidators(validate, translator)

	// set up server
	e.app = NewServer(ServerDeps{
		Conf:         conf,
		Logger:       logger,
		UserSvc:      user.NewService(e.usrRepo),
		ClassroomSvc: classroom.NewService(e.repo, e.mailSvc, logger),
		Validate:     validate,
		Translator:   translator,
	})
	t.Cleanup(func() { _ = e.app.Close() })
	return e
}

// do serves the request and returns the recorded response.
func (e *env) do(method, path, token string, body ...interface{}) *httptest.ResponseRecorder {
	var data []byte
	if len(body) > 0 {
		switch b := body[0].(type) {
		case []byte:
			data = b
		case string:
			data = []byte(b)
		default:
			data, _ = json.Marshal(b)
		}
	}
	req, rec := newAuthRequest(method, path, token, data)
	e.app.ServeHTTP(rec, req)
	return rec
}

func (e *env) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(e.conf, GetUserClaims(e.conf, usr))
	require.NoError(t, err)
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantData interface{}
}

func (e *env) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tt.body != nil {
				rec = e.do(tt.method, tt.path, tt.token, tt.body)
			} else {
				rec = e.do(tt.method, tt.path, tt.token)
			}
			checkCodeAndData(t, tt.wantCode, tt.wantData, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data []byte) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
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

// checkCodeAndData checks the status code and, unless `wantData` is nil, the JSON body.
func checkCodeAndData(t *testing.T, wantCode int, wantData interface{}, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
	if wantData == nil {
		return
	}
	want, err := json.Marshal(wantData)
	require.NoError(t, err)
	ok, err := jsonBytesEqual(rec.Body.Bytes(), want)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(want))
	}
}

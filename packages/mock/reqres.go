package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// Token is returned by a successful login.
	Token = "QpwL5tke4Pnpja7X4"

	defaultPerPage = 6
	timeFormat     = "2006-01-02T15:04:05.000Z"
)

// User is a fixture user in the reqres.in shape.
type User struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar"`
}

var support = map[string]any{
	"url":  "https://reqres.in/#support-heading",
	"text": "To keep ReqRes free, contributions towards server costs are appreciated!",
}

func newUser(id int, first, last string) User {
	return User{
		ID:        id,
		Email:     fmt.Sprintf("%s.%s@reqres.in", strings.ToLower(first), strings.ToLower(last)),
		FirstName: first,
		LastName:  last,
		Avatar:    fmt.Sprintf("https://reqres.in/img/faces/%d-image.jpg", id),
	}
}

// Users is the fixed user list served by the fixture.
var Users = []User{
	newUser(1, "George", "Bluth"),
	newUser(2, "Janet", "Weaver"),
	newUser(3, "Emma", "Wong"),
	newUser(4, "Eve", "Holt"),
	newUser(5, "Charles", "Morris"),
	newUser(6, "Tracey", "Ramos"),
	newUser(7, "Michael", "Lawson"),
	newUser(8, "Lindsay", "Ferguson"),
	newUser(9, "Tobias", "Funke"),
	newUser(10, "Byron", "Fields"),
	newUser(11, "George", "Edwards"),
	newUser(12, "Rachel", "Howell"),
}

func findUser(id string) (User, bool) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return User{}, false
	}
	for _, u := range Users {
		if u.ID == n {
			return u, true
		}
	}
	return User{}, false
}

func findUserByEmail(email string) (User, bool) {
	for _, u := range Users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return User{}, false
}

type reqres struct {
	nextID atomic.Int64
	now    func() time.Time
}

func (f *reqres) routes(r *Router) {
	r.Handle(http.MethodPost, "/login", "login", f.login)
	r.Handle(http.MethodPost, "/register", "register", f.registerUser)
	r.Handle(http.MethodGet, "/users", "listUsers", f.listUsers)
	r.Handle(http.MethodPost, "/users", "createUser", f.createUser)
	r.Handle(http.MethodGet, "/users/{id}", "getUser", f.getUser)
	r.Handle(http.MethodPut, "/users/{id}", "updateUser", f.updateUser)
	r.Handle(http.MethodPatch, "/users/{id}", "patchUser", f.updateUser)
	r.Handle(http.MethodDelete, "/users/{id}", "deleteUser", f.deleteUser)
}

func jsonResponse(status int, body any) *MockResponse {
	return &MockResponse{StatusCode: status, Body: body}
}

func errorResponse(status int, message string) *MockResponse {
	return jsonResponse(status, map[string]any{"error": message})
}

// decodeObject parses a JSON object request body. An empty body is an empty object.
func decodeObject(body []byte) (map[string]any, *MockResponse) {
	obj := map[string]any{}
	if len(strings.TrimSpace(string(body))) == 0 {
		return obj, nil
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, errorResponse(http.StatusBadRequest, "invalid JSON body")
	}
	return obj, nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

const errUserNotFound = "user not found"

func (f *reqres) credentials(body []byte) (User, *MockResponse) {
	obj, bad := decodeObject(body)
	if bad != nil {
		return User{}, bad
	}
	email := stringField(obj, "email")
	if email == "" {
		email = stringField(obj, "username")
	}
	if email == "" {
		return User{}, errorResponse(http.StatusBadRequest, "Missing email or username")
	}
	if stringField(obj, "password") == "" {
		return User{}, errorResponse(http.StatusBadRequest, "Missing password")
	}
	u, ok := findUserByEmail(email)
	if !ok {
		return User{}, errorResponse(http.StatusBadRequest, errUserNotFound)
	}
	return u, nil
}

func (f *reqres) login(_ *http.Request, _ map[string]string, body []byte) *MockResponse {
	if _, bad := f.credentials(body); bad != nil {
		return bad
	}
	return jsonResponse(http.StatusOK, map[string]any{"token": Token})
}

func (f *reqres) registerUser(_ *http.Request, _ map[string]string, body []byte) *MockResponse {
	u, bad := f.credentials(body)
	if bad != nil {
		if msg, _ := bad.Body.(map[string]any)["error"].(string); msg == errUserNotFound {
			return errorResponse(http.StatusBadRequest, "Note: Only defined users succeed registration")
		}
		return bad
	}
	return jsonResponse(http.StatusOK, map[string]any{"id": u.ID, "token": Token})
}

func positiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func (f *reqres) listUsers(r *http.Request, _ map[string]string, _ []byte) *MockResponse {
	page := positiveInt(r.URL.Query().Get("page"), 1)
	perPage := positiveInt(r.URL.Query().Get("per_page"), defaultPerPage)

	totalPages := len(Users) / perPage
	if len(Users)%perPage != 0 {
		totalPages++
	}

	// page <= totalPages bounds (page-1)*perPage by len(Users).
	data := []User{}
	if page <= totalPages {
		start := (page - 1) * perPage
		data = Users[start:min(start+perPage, len(Users))]
	}

	return jsonResponse(http.StatusOK, map[string]any{
		"page":        page,
		"per_page":    perPage,
		"total":       len(Users),
		"total_pages": totalPages,
		"data":        data,
		"support":     support,
	})
}

func (f *reqres) getUser(_ *http.Request, params map[string]string, _ []byte) *MockResponse {
	u, ok := findUser(params["id"])
	if !ok {
		return jsonResponse(http.StatusNotFound, map[string]any{})
	}
	return jsonResponse(http.StatusOK, map[string]any{"data": u, "support": support})
}

func (f *reqres) createUser(_ *http.Request, _ map[string]string, body []byte) *MockResponse {
	obj, bad := decodeObject(body)
	if bad != nil {
		return bad
	}
	obj["id"] = strconv.FormatInt(f.nextID.Add(1), 10)
	obj["createdAt"] = f.now().UTC().Format(timeFormat)
	return jsonResponse(http.StatusCreated, obj)
}

func (f *reqres) updateUser(_ *http.Request, _ map[string]string, body []byte) *MockResponse {
	obj, bad := decodeObject(body)
	if bad != nil {
		return bad
	}
	obj["updatedAt"] = f.now().UTC().Format(timeFormat)
	return jsonResponse(http.StatusOK, obj)
}

func (f *reqres) deleteUser(_ *http.Request, _ map[string]string, _ []byte) *MockResponse {
	return &MockResponse{StatusCode: http.StatusNoContent}
}

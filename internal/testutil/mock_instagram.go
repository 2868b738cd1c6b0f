// Package testutil provides testing utilities for the igdump client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// Paths served by the mock, matching the endpoint templates under api/v1/.
const (
	ProfilePath = "/api/v1/users/web_profile_info/"
)

var followingPathPattern = regexp.MustCompile(`^/api/v1/friendships/(\d+)/following/$`)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Account is a followed account as it appears on a following page and in
// its own profile.
type Account struct {
	ID        int64
	Username  string
	FullName  string
	Biography string
	Followers int64
	Following int64
	Category  string
}

// MockInstagram is a scripted fake of the two Instagram endpoints.
//
// Profiles are keyed by username and following pages by max_id offset.
// Unknown profiles answer 404; unknown offsets answer an empty page.
type MockInstagram struct {
	server *httptest.Server
	mu     sync.Mutex

	profiles  map[string]MockResponse
	following map[int]MockResponse

	profileRequests []string
	pageOffsets     []int
	inFlight        int
	maxInFlight     int

	LastRequestHeader http.Header
}

// NewMockInstagram starts a new mock server.
func NewMockInstagram() *MockInstagram {
	mock := &MockInstagram{
		profiles:  make(map[string]MockResponse),
		following: make(map[int]MockResponse),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockInstagram) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockInstagram) Close() {
	m.server.Close()
}

func (m *MockInstagram) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.LastRequestHeader = r.Header.Clone()
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if r.URL.Path == ProfilePath {
		username := r.URL.Query().Get("username")
		m.mu.Lock()
		m.profileRequests = append(m.profileRequests, username)
		resp, ok := m.profiles[username]
		m.mu.Unlock()
		if !ok {
			resp = NewNotFoundResponse()
		}
		writeResponse(w, resp)
		return
	}

	if followingPathPattern.MatchString(r.URL.Path) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("max_id"))
		m.mu.Lock()
		m.pageOffsets = append(m.pageOffsets, offset)
		resp, ok := m.following[offset]
		m.mu.Unlock()
		if !ok {
			resp = NewPageResponse(nil)
		}
		writeResponse(w, resp)
		return
	}

	writeResponse(w, NewNotFoundResponse())
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// SetProfileResponse configures the response for a username lookup.
func (m *MockInstagram) SetProfileResponse(username string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[username] = resp
}

// SetFollowingResponse configures the response for a following page offset.
func (m *MockInstagram) SetFollowingResponse(offset int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.following[offset] = resp
}

// AddProfile serves a healthy profile for account. Following is the declared
// following-edge count.
func (m *MockInstagram) AddProfile(account Account) {
	m.SetProfileResponse(account.Username, NewProfileResponse(account))
}

// SetFollowingPage serves accounts at offset.
func (m *MockInstagram) SetFollowingPage(offset int, accounts []Account) {
	m.SetFollowingResponse(offset, NewPageResponse(accounts))
}

// Seed scripts a complete run: the subject's profile declaring len(following)
// edges, its following list split into pages of pageSize at offsets
// pageSize, 2*pageSize, ... and one profile per followed account.
func (m *MockInstagram) Seed(subject Account, following []Account, pageSize int) {
	subject.Following = int64(len(following))
	m.AddProfile(subject)

	for start, page := 0, 1; start < len(following); start, page = start+pageSize, page+1 {
		end := start + pageSize
		if end > len(following) {
			end = len(following)
		}
		m.SetFollowingPage(page*pageSize, following[start:end])
	}

	for _, account := range following {
		m.AddProfile(account)
	}
}

// ProfileRequests returns the usernames looked up, in arrival order.
func (m *MockInstagram) ProfileRequests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.profileRequests...)
}

// PageOffsets returns the requested max_id offsets, in arrival order.
func (m *MockInstagram) PageOffsets() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.pageOffsets...)
}

// MaxInFlight returns the highest number of concurrently served requests.
func (m *MockInstagram) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// Reset clears all tracking counters.
func (m *MockInstagram) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profileRequests = nil
	m.pageOffsets = nil
	m.maxInFlight = 0
	m.LastRequestHeader = nil
}

// Accounts generates n accounts named prefix0..prefixN-1 with ids starting at firstID.
func Accounts(prefix string, firstID int64, n int) []Account {
	accounts := make([]Account, n)
	for i := range accounts {
		accounts[i] = Account{
			ID:        firstID + int64(i),
			Username:  prefix + strconv.Itoa(i),
			FullName:  "User " + strconv.Itoa(i),
			Biography: "bio " + strconv.Itoa(i),
			Followers: int64(i * 10),
			Following: int64(i),
		}
	}
	return accounts
}

// NewProfileResponse creates a 200 OK web_profile_info response for account.
func NewProfileResponse(account Account) MockResponse {
	var category any
	if account.Category != "" {
		category = account.Category
	}
	body := map[string]any{
		"data": map[string]any{
			"user": map[string]any{
				"full_name":        account.FullName,
				"username":         account.Username,
				"biography":        account.Biography,
				"edge_followed_by": map[string]any{"count": account.Followers},
				"edge_follow":      map[string]any{"count": account.Following},
				"category_enum":    category,
				"id":               strconv.FormatInt(account.ID, 10),
				"is_private":       false,
			},
		},
		"status": "ok",
	}
	return NewJSONResponse(http.StatusOK, body)
}

// NewPageResponse creates a 200 OK following page holding accounts.
func NewPageResponse(accounts []Account) MockResponse {
	users := make([]map[string]any, 0, len(accounts))
	for _, account := range accounts {
		users = append(users, map[string]any{
			"pk":        account.ID,
			"pk_id":     strconv.FormatInt(account.ID, 10),
			"username":  account.Username,
			"full_name": account.FullName,
		})
	}
	return NewJSONResponse(http.StatusOK, map[string]any{
		"users":     users,
		"big_list":  len(accounts) > 0,
		"page_size": len(accounts),
		"status":    "ok",
	})
}

// NewJSONResponse marshals body into a response with the given status.
func NewJSONResponse(status int, body any) MockResponse {
	data, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return MockResponse{
		StatusCode: status,
		Body:       string(data),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"message": "User not found", "status": "fail"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Please wait a few minutes before you try again.", "status": "fail"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error", "status": "fail"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html><body>Login</body></html>`,
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}

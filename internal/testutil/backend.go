// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Route keys accepted by FailRoute, SetDelay, Hits and MaxInFlight.
const (
	RouteMe             = "GET /me/"
	RoutePresign        = "POST /admin-videos/presign/"
	RouteCreateVideo    = "POST /admin-videos/create/"
	RouteVideoStatus    = "GET /admin-videos/{id}/status/"
	RouteVideoSource    = "GET /courses/{c}/videos/{v}/"
	RouteGetCheckpoint  = "GET /courses/{c}/videos/{v}/progress/"
	RoutePutCheckpoint  = "POST /courses/{c}/videos/{v}/progress/"
	RouteModuleProgress = "GET /courses/{c}/module-progress/"
	RouteGetTest        = "GET /courses/{c}/tests/{t}/"
	RouteSubmitTest     = "POST /courses/{c}/tests/{t}/submit/"
	RouteTestHistory    = "GET /courses/{c}/tests/history/"
	RouteHistoryDetail  = "GET /courses/{c}/tests/history/{a}/"
	RouteGetGithubLink  = "GET /certificate/github-link/{c}/"
	RoutePostGithubLink = "POST /certificate/github-link/{c}/"
	RouteCertificate    = "POST /certificate/send/{c}/"
	RouteStorage        = "PUT /storage/*"
	RouteMedia          = "GET /media/*"
)

// StatusReply is one scripted answer of the video status endpoint. A non-zero
// HTTPStatus replaces the JSON body with a bare error response.
type StatusReply struct {
	Status     string
	Stage      string
	Progress   float64
	VideoURL   string
	ErrorKind  string
	HTTPStatus int
}

// Module is a module record served by the module progress endpoint.
type Module struct {
	ID          int
	Title       string
	Order       int
	ItemType    string
	ItemID      int
	IsUnlocked  bool
	IsCompleted bool
}

// Question is a test question; Correct is one of "A".."D".
type Question struct {
	ID      int
	Text    string
	Correct string
}

type attempt struct {
	id       int
	testID   string
	score    float64
	total    float64
	answers  map[string]string
	at       time.Time
	testName string
}

type user struct {
	id   string
	role string
}

// Backend is an in-process fake of the course platform API, storage and
// media hosts.
type Backend struct {
	Server *httptest.Server

	mu          sync.Mutex
	users       map[string]user
	failures    map[string]int
	delays      map[string]time.Duration
	hits        map[string]int
	inFlight    map[string]int
	maxInFlight map[string]int

	objects      map[string][]byte
	objectTypes  map[string]string
	created      []map[string]any
	nextVideoID  int
	statusScript map[string][]StatusReply
	statusSeen   map[string]int

	sources     map[string]string
	checkpoints map[string]float64
	writes      map[string][]int64

	modules   map[string][]Module
	tests     map[string][]Question
	testNames map[string]string
	attempts  map[string][]attempt
	nextAtt   int
	links     map[string]string
	certs     map[string]int
	playlists map[string]string
}

// NewBackend starts a fake backend that is closed when t finishes.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		users:        map[string]user{},
		failures:     map[string]int{},
		delays:       map[string]time.Duration{},
		hits:         map[string]int{},
		inFlight:     map[string]int{},
		maxInFlight:  map[string]int{},
		objects:      map[string][]byte{},
		objectTypes:  map[string]string{},
		nextVideoID:  100,
		statusScript: map[string][]StatusReply{},
		statusSeen:   map[string]int{},
		sources:      map[string]string{},
		checkpoints:  map[string]float64{},
		writes:       map[string][]int64{},
		modules:      map[string][]Module{},
		tests:        map[string][]Question{},
		testNames:    map[string]string{},
		attempts:     map[string][]attempt{},
		nextAtt:      1,
		links:        map[string]string{},
		certs:        map[string]int{},
		playlists:    map[string]string{},
	}
	b.Server = httptest.NewServer(b.router())
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the absolute URL of path on the fake.
func (b *Backend) URL(path string) string {
	return b.Server.URL + path
}

// AddUser registers a token for a viewer with the given role.
func (b *Backend) AddUser(token, viewerID, role string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[token] = user{id: viewerID, role: role}
}

// FailRoute makes route answer with status until cleared with status 0.
func (b *Backend) FailRoute(route string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, route)
		return
	}
	b.failures[route] = status
}

// SetDelay holds every request on route for d before answering.
func (b *Backend) SetDelay(route string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[route] = d
}

// Hits returns how many requests reached route.
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

// MaxInFlight returns the highest number of concurrent requests seen on route.
func (b *Backend) MaxInFlight(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxInFlight[route]
}

// SetStatusScript queues status answers for a media ID. The last reply
// repeats once the script is exhausted.
func (b *Backend) SetStatusScript(mediaID string, replies ...StatusReply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusScript[mediaID] = replies
	b.statusSeen[mediaID] = 0
}

// NextVideoID sets the ID handed out by the next registration.
func (b *Backend) NextVideoID(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextVideoID = id
}

// Object returns the bytes stored under key and their content type.
func (b *Backend) Object(key string) ([]byte, string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	return data, b.objectTypes[key], ok
}

// Objects returns the number of stored objects.
func (b *Backend) Objects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// Registrations returns the bodies of accepted registration requests.
func (b *Backend) Registrations() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]any, len(b.created))
	copy(out, b.created)
	return out
}

// SetVideoSource sets the stream locator served for a course video.
func (b *Backend) SetVideoSource(courseID, videoID, locator string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources[courseID+"/"+videoID] = locator
}

// SetCheckpoint seeds the stored position for a viewer.
func (b *Backend) SetCheckpoint(viewerID, courseID, videoID string, seconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkpoints[checkpointKey(viewerID, courseID, videoID)] = seconds
}

// CheckpointWrites returns every position POSTed for a viewer, in order.
func (b *Backend) CheckpointWrites(viewerID, courseID, videoID string) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	w := b.writes[checkpointKey(viewerID, courseID, videoID)]
	out := make([]int64, len(w))
	copy(out, w)
	return out
}

func checkpointKey(viewerID, courseID, videoID string) string {
	return viewerID + "|" + courseID + "|" + videoID
}

// SetModules replaces the module records of a course.
func (b *Backend) SetModules(courseID string, modules ...Module) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modules[courseID] = append([]Module(nil), modules...)
}

// SetTest defines a test in a course.
func (b *Backend) SetTest(courseID, testID, name string, questions ...Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tests[courseID+"/"+testID] = questions
	b.testNames[courseID+"/"+testID] = name
}

// SetExternalWork records a link as if the viewer had submitted it.
func (b *Backend) SetExternalWork(viewerID, courseID, link string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.links[viewerID+"|"+courseID] = link
}

// ExternalWork returns the recorded link for a viewer.
func (b *Backend) ExternalWork(viewerID, courseID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.links[viewerID+"|"+courseID]
}

// Certificates returns how many certificates were sent for a viewer.
func (b *Backend) Certificates(viewerID, courseID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.certs[viewerID+"|"+courseID]
}

// SetPlaylist serves body at /media/<path>.
func (b *Backend) SetPlaylist(path, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playlists[strings.TrimPrefix(path, "/")] = body
}

func (b *Backend) router() http.Handler {
	r := chi.NewRouter()

	b.route(r, RouteMe, true, b.handleMe)
	b.route(r, RoutePresign, true, b.handlePresign)
	b.route(r, RouteCreateVideo, true, b.handleCreateVideo)
	b.route(r, RouteVideoStatus, true, b.handleVideoStatus)
	b.route(r, RouteTestHistory, true, b.handleTestHistory)
	b.route(r, RouteHistoryDetail, true, b.handleHistoryDetail)
	b.route(r, RouteVideoSource, true, b.handleVideoSource)
	b.route(r, RouteGetCheckpoint, true, b.handleGetCheckpoint)
	b.route(r, RoutePutCheckpoint, true, b.handlePutCheckpoint)
	b.route(r, RouteModuleProgress, true, b.handleModuleProgress)
	b.route(r, RouteGetTest, true, b.handleGetTest)
	b.route(r, RouteSubmitTest, true, b.handleSubmitTest)
	b.route(r, RouteGetGithubLink, true, b.handleGetLink)
	b.route(r, RoutePostGithubLink, true, b.handlePostLink)
	b.route(r, RouteCertificate, true, b.handleCertificate)
	b.route(r, RouteStorage, false, b.handleStorage)
	b.route(r, RouteMedia, false, b.handleMedia)

	return r
}

type authedHandler func(w http.ResponseWriter, r *http.Request, u user)

func (b *Backend) route(r chi.Router, key string, auth bool, h authedHandler) {
	method, pattern, _ := strings.Cut(key, " ")
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		b.hits[key]++
		b.inFlight[key]++
		if b.inFlight[key] > b.maxInFlight[key] {
			b.maxInFlight[key] = b.inFlight[key]
		}
		delay := b.delays[key]
		failure := b.failures[key]
		b.mu.Unlock()

		defer func() {
			b.mu.Lock()
			b.inFlight[key]--
			b.mu.Unlock()
		}()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return
			}
		}

		var u user
		if auth {
			var ok bool
			u, ok = b.authenticate(req)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
				return
			}
		}
		if failure != 0 {
			writeJSON(w, failure, map[string]string{"error": http.StatusText(failure)})
			return
		}
		h(w, req, u)
	}))
}

func (b *Backend) authenticate(r *http.Request) (user, bool) {
	h := r.Header.Get("Authorization")
	_, token, ok := strings.Cut(h, " ")
	if !ok {
		return user{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[strings.TrimSpace(token)]
	return u, ok
}

func (b *Backend) handleMe(w http.ResponseWriter, _ *http.Request, u user) {
	writeJSON(w, http.StatusOK, map[string]any{"id": u.id, "email": u.id + "@example.test", "role": u.role})
}

func (b *Backend) handlePresign(w http.ResponseWriter, _ *http.Request, u user) {
	if u.role != "admin" {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Admin only"})
		return
	}
	key := "videos/" + uuid.NewString() + ".mp4"
	writeJSON(w, http.StatusOK, map[string]string{"upload_url": b.URL("/storage/" + key), "key": key})
}

func (b *Backend) handleCreateVideo(w http.ResponseWriter, r *http.Request, _ user) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	key, _ := body["r2_key"].(string)
	b.mu.Lock()
	_, stored := b.objects[key]
	if !stored {
		b.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown r2_key"})
		return
	}
	id := b.nextVideoID
	b.nextVideoID++
	b.created = append(b.created, body)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"video_id": id})
}

func (b *Backend) handleVideoStatus(w http.ResponseWriter, r *http.Request, _ user) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	script := b.statusScript[id]
	if len(script) == 0 {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	i := b.statusSeen[id]
	if i >= len(script) {
		i = len(script) - 1
	}
	b.statusSeen[id]++
	reply := script[i]
	b.mu.Unlock()

	if reply.HTTPStatus != 0 {
		writeJSON(w, reply.HTTPStatus, map[string]string{"error": http.StatusText(reply.HTTPStatus)})
		return
	}
	body := map[string]any{"status": reply.Status, "stage": reply.Stage, "progress": reply.Progress}
	if reply.VideoURL != "" {
		body["video_url"] = reply.VideoURL
	}
	if reply.ErrorKind != "" {
		body["error_kind"] = reply.ErrorKind
	}
	writeJSON(w, http.StatusOK, body)
}

func (b *Backend) handleVideoSource(w http.ResponseWriter, r *http.Request, _ user) {
	b.mu.Lock()
	locator, ok := b.sources[chi.URLParam(r, "c")+"/"+chi.URLParam(r, "v")]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"video_url": locator})
}

func (b *Backend) handleGetCheckpoint(w http.ResponseWriter, r *http.Request, u user) {
	key := checkpointKey(u.id, chi.URLParam(r, "c"), chi.URLParam(r, "v"))
	b.mu.Lock()
	pos := b.checkpoints[key]
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"last_position": pos})
}

func (b *Backend) handlePutCheckpoint(w http.ResponseWriter, r *http.Request, u user) {
	var body struct {
		CurrentTime *float64 `json:"current_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.CurrentTime == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "current_time required"})
		return
	}
	key := checkpointKey(u.id, chi.URLParam(r, "c"), chi.URLParam(r, "v"))
	b.mu.Lock()
	b.checkpoints[key] = *body.CurrentTime
	b.writes[key] = append(b.writes[key], int64(*body.CurrentTime))
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "progress saved"})
}

func (b *Backend) handleModuleProgress(w http.ResponseWriter, r *http.Request, u user) {
	courseID := chi.URLParam(r, "c")
	b.mu.Lock()
	mods := b.modules[courseID]
	out := make([]map[string]any, 0, len(mods))
	for _, m := range mods {
		rec := map[string]any{
			"id": m.ID, "title": m.Title, "order": m.Order,
			"item_type": m.ItemType, "item_id": m.ItemID,
			"is_unlocked": m.IsUnlocked, "is_completed": m.IsCompleted,
		}
		if m.ItemType == "test" {
			rec["attempted"] = b.attemptedLocked(u.id, courseID, strconv.Itoa(m.ItemID))
		}
		out = append(out, rec)
	}
	link := b.links[u.id+"|"+courseID]
	b.mu.Unlock()

	body := map[string]any{"modules": out}
	if link != "" {
		body["github_link"] = link
	}
	writeJSON(w, http.StatusOK, body)
}

func (b *Backend) attemptedLocked(viewerID, courseID, testID string) bool {
	for _, a := range b.attempts[viewerID+"|"+courseID] {
		if a.testID == testID {
			return true
		}
	}
	return false
}

func (b *Backend) handleGetTest(w http.ResponseWriter, r *http.Request, u user) {
	courseID, testID := chi.URLParam(r, "c"), chi.URLParam(r, "t")
	b.mu.Lock()
	questions, ok := b.tests[courseID+"/"+testID]
	name := b.testNames[courseID+"/"+testID]
	var prior *attempt
	for _, a := range b.attempts[u.id+"|"+courseID] {
		if a.testID == testID {
			a := a
			prior = &a
		}
	}
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	qs := make([]map[string]any, 0, len(questions))
	for _, q := range questions {
		qs = append(qs, map[string]any{
			"id": q.ID, "text": q.Text,
			"option_a": "A", "option_b": "B", "option_c": "C", "option_d": "D",
		})
	}
	body := map[string]any{
		"attempted":   prior != nil,
		"score":       nil,
		"total_marks": nil,
		"test":        map[string]any{"id": testID, "name": name, "questions": qs},
	}
	if prior != nil {
		body["score"] = prior.score
		body["total_marks"] = prior.total
	}
	writeJSON(w, http.StatusOK, body)
}

func (b *Backend) handleSubmitTest(w http.ResponseWriter, r *http.Request, u user) {
	courseID, testID := chi.URLParam(r, "c"), chi.URLParam(r, "t")
	var body struct {
		Answers map[string]string `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	questions, ok := b.tests[courseID+"/"+testID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if b.attemptedLocked(u.id, courseID, testID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Test already attempted"})
		return
	}

	var score float64
	for _, q := range questions {
		if strings.EqualFold(body.Answers[strconv.Itoa(q.ID)], q.Correct) {
			score++
		}
	}
	a := attempt{
		id: b.nextAtt, testID: testID, score: score, total: float64(len(questions)),
		answers: body.Answers, at: time.Now().UTC(), testName: b.testNames[courseID+"/"+testID],
	}
	b.nextAtt++
	key := u.id + "|" + courseID
	b.attempts[key] = append(b.attempts[key], a)
	b.completeItemLocked(courseID, "test", testID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "submitted", "score": a.score, "total_marks": a.total})
}

// completeItemLocked marks the module holding the item completed and unlocks
// its successor, the way the real backend does on submission.
func (b *Backend) completeItemLocked(courseID, itemType, itemID string) {
	mods := b.modules[courseID]
	sort.SliceStable(mods, func(i, j int) bool { return mods[i].Order < mods[j].Order })
	for i := range mods {
		if mods[i].ItemType == itemType && strconv.Itoa(mods[i].ItemID) == itemID {
			mods[i].IsCompleted = true
			if i+1 < len(mods) {
				mods[i+1].IsUnlocked = true
			}
		}
	}
}

func (b *Backend) handleTestHistory(w http.ResponseWriter, r *http.Request, u user) {
	courseID := chi.URLParam(r, "c")
	b.mu.Lock()
	list := b.attempts[u.id+"|"+courseID]
	out := make([]map[string]any, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		a := list[i]
		out = append(out, map[string]any{
			"id": a.id, "test_id": a.testID, "test_name": a.testName,
			"score": a.score, "total_marks": a.total, "submitted_at": a.at.Format(time.RFC3339),
		})
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleHistoryDetail(w http.ResponseWriter, r *http.Request, u user) {
	courseID := chi.URLParam(r, "c")
	id, err := strconv.Atoi(chi.URLParam(r, "a"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.attempts[u.id+"|"+courseID] {
		if a.id != id {
			continue
		}
		answers := []map[string]any{}
		for _, q := range b.tests[courseID+"/"+a.testID] {
			sel := a.answers[strconv.Itoa(q.ID)]
			answers = append(answers, map[string]any{
				"question": q.Text, "selected_answer": sel,
				"correct_answer": q.Correct, "is_correct": strings.EqualFold(sel, q.Correct),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id": a.id, "test_id": a.testID, "test_name": a.testName,
			"score": a.score, "total_marks": a.total, "answers": answers,
		})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func (b *Backend) handleGetLink(w http.ResponseWriter, r *http.Request, u user) {
	b.mu.Lock()
	link := b.links[u.id+"|"+chi.URLParam(r, "c")]
	b.mu.Unlock()
	if link == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No GitHub link found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"github_link": link})
}

func (b *Backend) handlePostLink(w http.ResponseWriter, r *http.Request, u user) {
	var body struct {
		GithubLink string `json:"github_link"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.GithubLink == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "github_link required"})
		return
	}
	key := u.id + "|" + chi.URLParam(r, "c")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.links[key] != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "GitHub link already submitted"})
		return
	}
	b.links[key] = body.GithubLink
	writeJSON(w, http.StatusCreated, map[string]string{"message": "GitHub link saved"})
}

func (b *Backend) handleCertificate(w http.ResponseWriter, r *http.Request, u user) {
	key := u.id + "|" + chi.URLParam(r, "c")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.links[key] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Submit your GitHub link first"})
		return
	}
	b.certs[key]++
	writeJSON(w, http.StatusOK, map[string]string{"message": "Certificate sent to your email"})
}

func (b *Backend) handleStorage(w http.ResponseWriter, r *http.Request, _ user) {
	if r.Header.Get("Authorization") != "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.ContentLength >= 0 && int64(len(data)) != r.ContentLength {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	key := chi.URLParam(r, "*")
	b.mu.Lock()
	b.objects[key] = data
	b.objectTypes[key] = r.Header.Get("Content-Type")
	b.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleMedia(w http.ResponseWriter, r *http.Request, _ user) {
	b.mu.Lock()
	body, ok := b.playlists[chi.URLParam(r, "*")]
	b.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// MediaPlaylist renders a VOD media playlist of n segments of segSeconds each.
func MediaPlaylist(n int, segSeconds float64) string {
	var sb strings.Builder
	sb.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-PLAYLIST-TYPE:VOD\n")
	fmt.Fprintf(&sb, "#EXT-X-TARGETDURATION:%d\n#EXT-X-MEDIA-SEQUENCE:0\n", int(math.Ceil(segSeconds)))
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "#EXTINF:%.3f,\nseg_%05d.ts\n", segSeconds, i)
	}
	sb.WriteString("#EXT-X-ENDLIST\n")
	return sb.String()
}

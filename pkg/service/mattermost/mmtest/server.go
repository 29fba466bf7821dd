// Package mmtest provides an in-memory Mattermost API server for tests.
package mmtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	mm "github.com/mattermost/mattermost-server/v6/model"
)

const (
	channelTypeOpen    = "O"
	channelTypePrivate = "P"
	channelTypeDirect  = "D"
)

const apiPrefix = "/api/v4"

// BotToken is the token the fake server accepts for the bot user
const BotToken = "bot-token"

// Call is one request received by the server, keyed by chi route pattern
type Call struct {
	Method  string
	Pattern string
}

// String returns "METHOD pattern"
func (c Call) String() string {
	return c.Method + " " + c.Pattern
}

type channel struct {
	id      string
	teamID  string
	name    string
	kind    string
	members map[string]bool
}

type file struct {
	id        string
	channelID string
	name      string
	data      []byte
}

// Post is a post created through the fake server
type Post struct {
	ID        string
	ChannelID string
	UserID    string
	Message   string
	FileIDs   []string
}

// Server is an in-memory Mattermost. Route responses follow the real API:
// unknown users, teams, team members and channels invisible to the caller are
// all answered with 404.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	seq      int
	botID    string
	users    map[string]string // id -> username
	teams    map[string]string // id -> name
	members  map[string]map[string]bool
	channels map[string]*channel
	directs  map[string]string // sorted pair -> channel id
	files    map[string]*file
	posts    []*Post
	calls    []Call
	failures map[string]int
	hook     func(r *http.Request, pattern string)
}

// NewServer starts a fake server with a bot user named "bot"
func NewServer() *Server {
	s := &Server{
		users:    map[string]string{},
		teams:    map[string]string{},
		members:  map[string]map[string]bool{},
		channels: map[string]*channel{},
		directs:  map[string]string{},
		files:    map[string]*file{},
		failures: map[string]int{},
	}
	s.botID = s.AddUser("bot")

	r := chi.NewRouter()
	r.Use(s.record)
	r.Get(apiPrefix+"/users", s.handleListUsers)
	r.Get(apiPrefix+"/users/", s.handleListUsers)
	r.Get(apiPrefix+"/users/me", s.handleGetMe)
	r.Get(apiPrefix+"/users/username/{username}", s.handleGetUserByUsername)
	r.Get(apiPrefix+"/teams", s.handleListTeams)
	r.Get(apiPrefix+"/teams/", s.handleListTeams)
	r.Get(apiPrefix+"/teams/name/{team}", s.handleGetTeamByName)
	r.Get(apiPrefix+"/teams/{team_id}/members/{user_id}", s.handleGetTeamMember)
	r.Get(apiPrefix+"/teams/name/{team}/channels/name/{channel}", s.handleGetChannelByName)
	r.Post(apiPrefix+"/channels/direct", s.handleCreateDirect)
	r.Post(apiPrefix+"/channels/{channel_id}/members", s.handleAddChannelMember)
	r.Post(apiPrefix+"/files", s.handleUploadFile)
	r.Post(apiPrefix+"/posts", s.handleCreatePost)

	s.Server = httptest.NewServer(r)
	return s
}

// APIURL returns the base API URL of the server
func (s *Server) APIURL() string {
	return s.URL + apiPrefix + "/"
}

// BotID returns the user id of the bot
func (s *Server) BotID() string {
	return s.botID
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%04d", prefix, s.seq)
}

// AddUser registers a user and returns its id
func (s *Server) AddUser(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID("u")
	s.users[id] = username
	return id
}

// AddTeam registers a team with the given member user ids and returns its id.
// The bot is always a member.
func (s *Server) AddTeam(name string, memberIDs ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID("t")
	s.teams[id] = name
	s.members[id] = map[string]bool{s.botID: true}
	for _, m := range memberIDs {
		s.members[id][m] = true
	}
	return id
}

// AddChannel registers a public channel in the team and returns its id
func (s *Server) AddChannel(teamID, name string, memberIDs ...string) string {
	return s.addChannel(teamID, name, channelTypeOpen, memberIDs)
}

// AddPrivateChannel registers a private channel in the team
func (s *Server) AddPrivateChannel(teamID, name string, memberIDs ...string) string {
	return s.addChannel(teamID, name, channelTypePrivate, memberIDs)
}

func (s *Server) addChannel(teamID, name, kind string, memberIDs []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID("c")
	ch := &channel{id: id, teamID: teamID, name: name, kind: kind, members: map[string]bool{}}
	for _, m := range memberIDs {
		ch.members[m] = true
	}
	s.channels[id] = ch
	return id
}

// IsChannelMember reports whether userID is a member of the channel
func (s *Server) IsChannelMember(channelID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	return ok && ch.members[userID]
}

// ChannelMemberCount returns the number of members of the channel
func (s *Server) ChannelMemberCount(channelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[channelID]; ok {
		return len(ch.members)
	}
	return 0
}

// DirectChannelCount returns how many direct channels exist
func (s *Server) DirectChannelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.directs)
}

// Posts returns all posts created so far
func (s *Server) Posts() []*Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Post(nil), s.posts...)
}

// FileData returns the content of an uploaded file
func (s *Server) FileData(fileID string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return nil, "", false
	}
	return f.data, f.name, true
}

// FileCount returns how many files were uploaded
func (s *Server) FileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Calls returns the requests received so far
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallStrings returns Calls formatted as "METHOD pattern"
func (s *Server) CallStrings() []string {
	calls := s.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.String())
	}
	return out
}

// ResetCalls clears recorded calls
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// FailWith makes every request matching "METHOD pattern" answer status
func (s *Server) FailWith(call string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[call] = status
}

// OnRequest installs a hook run before each matched request is served
func (s *Server) OnRequest(hook func(r *http.Request, pattern string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+BotToken {
			writeAppError(w, http.StatusUnauthorized, "api.context.session_expired.app_error")
			return
		}

		// resolve the route before serving so that failures can be injected
		pattern := r.URL.Path
		if routes := chi.RouteContext(r.Context()).Routes; routes != nil {
			rctx := chi.NewRouteContext()
			if routes.Match(rctx, r.Method, r.URL.Path) {
				pattern = strings.TrimPrefix(rctx.RoutePattern(), apiPrefix)
			}
		}
		call := Call{Method: r.Method, Pattern: pattern}

		s.mu.Lock()
		s.calls = append(s.calls, call)
		status, fail := s.failures[call.String()]
		hook := s.hook
		s.mu.Unlock()

		if hook != nil {
			hook(r, pattern)
		}
		if fail {
			writeAppError(w, status, "mmtest.injected_failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// param returns the unescaped value of a route parameter
func param(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := make([]*mm.User, 0, len(s.users))
	for id, name := range s.users {
		users = append(users, &mm.User{Id: id, Username: name})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	teams := make([]*mm.Team, 0, len(s.teams))
	for id, name := range s.teams {
		teams = append(teams, &mm.Team{Id: id, Name: name})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, teams)
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	user := &mm.User{Id: s.botID, Username: s.users[s.botID]}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetUserByUsername(w http.ResponseWriter, r *http.Request) {
	username := param(r, "username")
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, name := range s.users {
		if name == username {
			writeJSON(w, http.StatusOK, &mm.User{Id: id, Username: name})
			return
		}
	}
	writeAppError(w, http.StatusNotFound, "app.user.missing_account.const")
}

func (s *Server) teamByName(name string) (string, bool) {
	for id, n := range s.teams {
		if n == name {
			return id, true
		}
	}
	return "", false
}

func (s *Server) handleGetTeamByName(w http.ResponseWriter, r *http.Request) {
	name := param(r, "team")
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.teamByName(name)
	if !ok {
		writeAppError(w, http.StatusNotFound, "app.team.get_by_name.missing.app_error")
		return
	}
	writeJSON(w, http.StatusOK, &mm.Team{Id: id, Name: name})
}

func (s *Server) handleGetTeamMember(w http.ResponseWriter, r *http.Request) {
	teamID := param(r, "team_id")
	userID := param(r, "user_id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.members[teamID][userID] {
		writeAppError(w, http.StatusNotFound, "app.team.get_member.missing.app_error")
		return
	}
	writeJSON(w, http.StatusOK, &mm.TeamMember{TeamId: teamID, UserId: userID})
}

func (s *Server) handleGetChannelByName(w http.ResponseWriter, r *http.Request) {
	teamName := param(r, "team")
	name := param(r, "channel")
	s.mu.Lock()
	defer s.mu.Unlock()

	teamID, ok := s.teamByName(teamName)
	if !ok {
		writeAppError(w, http.StatusNotFound, "app.team.get_by_name.missing.app_error")
		return
	}
	for _, ch := range s.channels {
		if ch.teamID != teamID || ch.name != name {
			continue
		}
		if ch.kind == channelTypePrivate && !ch.members[s.botID] {
			break
		}
		writeJSON(w, http.StatusOK, &mm.Channel{Id: ch.id, TeamId: ch.teamID, Name: ch.name})
		return
	}
	writeAppError(w, http.StatusNotFound, "app.channel.get_by_name.missing.app_error")
}

func (s *Server) handleCreateDirect(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil || len(ids) != 2 {
		writeAppError(w, http.StatusBadRequest, "api.context.invalid_body_param.app_error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.users[id]; !ok {
			writeAppError(w, http.StatusBadRequest, "api.context.invalid_url_param.app_error")
			return
		}
	}

	pair := append([]string(nil), ids...)
	sort.Strings(pair)
	key := pair[0] + "__" + pair[1]

	chID, ok := s.directs[key]
	if !ok {
		chID = s.nextID("d")
		s.directs[key] = chID
		s.channels[chID] = &channel{
			id:      chID,
			name:    key,
			kind:    channelTypeDirect,
			members: map[string]bool{pair[0]: true, pair[1]: true},
		}
	}
	writeJSON(w, http.StatusCreated, &mm.Channel{Id: chID, Name: key, Type: channelTypeDirect})
}

func (s *Server) handleAddChannelMember(w http.ResponseWriter, r *http.Request) {
	channelID := param(r, "channel_id")
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		writeAppError(w, http.StatusBadRequest, "api.context.invalid_body_param.app_error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		writeAppError(w, http.StatusNotFound, "app.channel.get.existing.app_error")
		return
	}
	ch.members[body.UserID] = true
	writeJSON(w, http.StatusCreated, &mm.ChannelMember{ChannelId: channelID, UserId: body.UserID})
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	channelID := r.URL.Query().Get("channel_id")
	filename := r.URL.Query().Get("filename")
	data, err := io.ReadAll(r.Body)
	if err != nil || channelID == "" || filename == "" {
		writeAppError(w, http.StatusBadRequest, "api.file.upload_file.incorrect_number_of_files.app_error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok || !ch.members[s.botID] {
		writeAppError(w, http.StatusForbidden, "api.context.permissions.app_error")
		return
	}

	id := s.nextID("f")
	s.files[id] = &file{id: id, channelID: channelID, name: filename, data: data}
	writeJSON(w, http.StatusCreated, &mm.FileUploadResponse{
		FileInfos: []*mm.FileInfo{{Id: id, Name: filename, Size: int64(len(data))}},
	})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChannelID string   `json:"channel_id"`
		Message   string   `json:"message"`
		FileIDs   []string `json:"file_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAppError(w, http.StatusBadRequest, "api.context.invalid_body_param.app_error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[body.ChannelID]
	if !ok || !ch.members[s.botID] {
		writeAppError(w, http.StatusForbidden, "api.context.permissions.app_error")
		return
	}
	for _, id := range body.FileIDs {
		if _, ok := s.files[id]; !ok {
			writeAppError(w, http.StatusBadRequest, "api.post.create_post.file_ids.app_error")
			return
		}
	}

	post := &Post{
		ID:        s.nextID("p"),
		ChannelID: body.ChannelID,
		UserID:    s.botID,
		Message:   body.Message,
		FileIDs:   append([]string{}, body.FileIDs...),
	}
	s.posts = append(s.posts, post)
	writeJSON(w, http.StatusCreated, &mm.Post{
		Id:        post.ID,
		ChannelId: post.ChannelID,
		UserId:    post.UserID,
		Message:   post.Message,
		FileIds:   post.FileIDs,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAppError(w http.ResponseWriter, status int, id string) {
	writeJSON(w, status, map[string]any{
		"id":          id,
		"message":     id,
		"status_code": status,
	})
}

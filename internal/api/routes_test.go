package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/echocoach/adapters"
	"github.com/satriahrh/echocoach/adapters/llm"
	"github.com/satriahrh/echocoach/domain/entities"
	"github.com/satriahrh/echocoach/domain/repositories"
	"github.com/satriahrh/echocoach/internal/auth"
	"github.com/satriahrh/echocoach/internal/phonetics"
	"github.com/satriahrh/echocoach/usecase"
)

// failingCoach replies to nothing
type failingCoach struct{}

func (failingCoach) Analyze(ctx context.Context, audio entities.AudioCapture, referenceText string) (entities.FeedbackRecord, error) {
	return entities.FeedbackRecord{}, errors.New("quota exceeded")
}

func (failingCoach) Converse(ctx context.Context, history []entities.ChatMessage, text string, audio *entities.AudioCapture) (entities.ChatMessage, error) {
	return entities.ChatMessage{}, errors.New("quota exceeded")
}

type fakeSynthesizer struct {
	lastText string
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.lastText = text
	return []byte("mp3-bytes"), nil
}

func (f *fakeSynthesizer) ContentType() string { return "audio/mpeg" }

type testServer struct {
	echo   *echo.Echo
	issuer *auth.Issuer
	repo   *adapters.MemoryConversationRepository
}

func newTestServer(t *testing.T, coach repositories.Coach, speech Synthesizer) *testServer {
	t.Helper()

	logger := zaptest.NewLogger(t)
	issuer, err := auth.NewIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	catalog, err := phonetics.Default()
	if err != nil {
		t.Fatalf("phonetics.Default: %v", err)
	}

	repo := adapters.NewMemoryConversationRepository()
	e := echo.New()
	InitRoutes(e, Dependencies{
		Issuer:        issuer,
		Analyzer:      usecase.NewAnalysisService(coach, nil, logger),
		Conversations: usecase.NewConversationService(repo, coach, nil, logger),
		Catalog:       catalog,
		Speech:        speech,
		Logger:        logger,
	})

	return &testServer{echo: e, issuer: issuer, repo: repo}
}

func (s *testServer) do(t *testing.T, method, target, body, learnerID string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if learnerID != "" {
		token, _, err := s.issuer.GenerateLearnerToken(learnerID)
		if err != nil {
			t.Fatalf("GenerateLearnerToken: %v", err)
		}
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, llm.NewMockCoach(), nil)
	rec := s.do(t, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestIssueToken(t *testing.T) {
	s := newTestServer(t, llm.NewMockCoach(), nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "valid", body: `{"learner_id":"learner-1"}`, wantStatus: http.StatusOK},
		{name: "blank learner", body: `{"learner_id":"  "}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"learner_id":`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/auth/token", tt.body, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp TokenResponse
			decode(t, rec, &resp)
			claims, err := s.issuer.ValidateToken(resp.Token)
			if err != nil {
				t.Fatalf("issued token does not validate: %v", err)
			}
			if claims.LearnerID != "learner-1" {
				t.Errorf("expected learner-1, got %s", claims.LearnerID)
			}
		})
	}
}

func TestPhoneticsRoutes(t *testing.T) {
	s := newTestServer(t, llm.NewMockCoach(), nil)

	rec := s.do(t, http.MethodGet, "/api/v1/phonetics/symbols", "", "")
	var all []SymbolResponse
	decode(t, rec, &all)
	if len(all) != 12 {
		t.Errorf("expected 12 symbols, got %d", len(all))
	}

	rec = s.do(t, http.MethodGet, "/api/v1/phonetics/symbols?category=consonant", "", "")
	var consonants []SymbolResponse
	decode(t, rec, &consonants)
	if len(consonants) != 5 {
		t.Errorf("expected 5 consonants, got %d", len(consonants))
	}
	for _, sym := range consonants {
		if sym.MouthHint == "" {
			t.Errorf("missing mouth hint for %s", sym.Symbol)
		}
	}

	rec = s.do(t, http.MethodGet, "/api/v1/phonetics/symbols?category=tone", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown category, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/phonetics/symbols/"+url.PathEscape("θ"), "", "")
	var theta SymbolResponse
	decode(t, rec, &theta)
	if theta.Example != "think" || theta.MouthHint != "Unvoiced (只送气)" {
		t.Errorf("unexpected θ entry %+v", theta)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/phonetics/symbols/x", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/phonetics/drills", "", "")
	var drills []entities.SentenceDrill
	decode(t, rec, &drills)
	if len(drills) != 4 {
		t.Errorf("expected 4 drills, got %d", len(drills))
	}

	rec = s.do(t, http.MethodGet, "/api/v1/phonetics/rhythm", "", "")
	var rhythm entities.RhythmComparison
	decode(t, rec, &rhythm)
	if len(rhythm.English.Syllables) != 4 || len(rhythm.Chinese.Syllables) != 4 {
		t.Errorf("unexpected rhythm %+v", rhythm)
	}
}

func TestSymbolSample(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := newTestServer(t, llm.NewMockCoach(), nil)
		rec := s.do(t, http.MethodGet, "/api/v1/phonetics/symbols/v/sample", "", "")
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("expected 501, got %d", rec.Code)
		}
	})

	t.Run("configured", func(t *testing.T) {
		speech := &fakeSynthesizer{}
		s := newTestServer(t, llm.NewMockCoach(), speech)
		rec := s.do(t, http.MethodGet, "/api/v1/phonetics/symbols/v/sample", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := rec.Header().Get(echo.HeaderContentType); got != "audio/mpeg" {
			t.Errorf("expected audio/mpeg, got %s", got)
		}
		if speech.lastText != "very" {
			t.Errorf("expected example word very, got %q", speech.lastText)
		}
	})
}

func TestAnalyze(t *testing.T) {
	audio := base64.StdEncoding.EncodeToString([]byte("fake-webm"))

	tests := []struct {
		name       string
		coach      repositories.Coach
		body       string
		learnerID  string
		wantStatus int
		wantScore  int
	}{
		{
			name:       "scored",
			coach:      llm.NewMockCoach(),
			body:       `{"audio_data":"` + audio + `","reference_text":"Think about it."}`,
			learnerID:  "learner-1",
			wantStatus: http.StatusOK,
			wantScore:  78,
		},
		{
			name:       "coach failure falls back",
			coach:      failingCoach{},
			body:       `{"audio_data":"` + audio + `"}`,
			learnerID:  "learner-1",
			wantStatus: http.StatusOK,
			wantScore:  0,
		},
		{
			name:       "no audio falls back",
			coach:      llm.NewMockCoach(),
			body:       `{"reference_text":"Hello"}`,
			learnerID:  "learner-1",
			wantStatus: http.StatusOK,
			wantScore:  0,
		},
		{
			name:       "invalid base64",
			coach:      llm.NewMockCoach(),
			body:       `{"audio_data":"%%%"}`,
			learnerID:  "learner-1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unauthenticated",
			coach:      llm.NewMockCoach(),
			body:       `{"audio_data":"` + audio + `"}`,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.coach, nil)

			rec := s.do(t, http.MethodPost, "/api/v1/analyze", tt.body, tt.learnerID)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var feedback entities.FeedbackRecord
			decode(t, rec, &feedback)
			if feedback.Score != tt.wantScore {
				t.Errorf("expected score %d, got %d", tt.wantScore, feedback.Score)
			}
			if tt.wantScore == 0 && feedback.Transcription != entities.FallbackFeedback().Transcription {
				t.Errorf("expected fallback record, got %+v", feedback)
			}
		})
	}
}

func TestConversationLifecycle(t *testing.T) {
	s := newTestServer(t, llm.NewMockCoach(), nil)

	rec := s.do(t, http.MethodPost, "/api/v1/conversations", "", "learner-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var convo entities.Conversation
	decode(t, rec, &convo)
	if len(convo.Messages) != 1 || convo.Messages[0].Text != entities.GreetingText {
		t.Fatalf("expected greeting, got %+v", convo.Messages)
	}

	path := "/api/v1/conversations/" + convo.ID

	rec = s.do(t, http.MethodPost, path+"/messages", `{"text":"Hello Echo"}`, "learner-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var turn usecase.Turn
	decode(t, rec, &turn)
	if turn.User.Text != "Hello Echo" || turn.Reply == nil || turn.Reply.Role != entities.RoleModel {
		t.Errorf("unexpected turn %+v", turn)
	}

	rec = s.do(t, http.MethodPost, path+"/messages", `{"text":"   "}`, "learner-1")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty text, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, path, "", "learner-1")
	decode(t, rec, &convo)
	if len(convo.Messages) != 3 {
		t.Errorf("expected 3 messages after one turn, got %d", len(convo.Messages))
	}

	rec = s.do(t, http.MethodGet, path+"/messages", "", "learner-1")
	var messages []entities.ChatMessage
	decode(t, rec, &messages)
	if len(messages) != 3 || messages[2].Role != entities.RoleModel {
		t.Errorf("unexpected history %+v", messages)
	}

	rec = s.do(t, http.MethodGet, path, "", "learner-2")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another learner, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodDelete, path, "", "learner-1")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, path+"/messages", `{"text":"Still there?"}`, "learner-1")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 after end, got %d", rec.Code)
	}
}

func TestSendMessage_CoachFailureKeepsUserMessage(t *testing.T) {
	s := newTestServer(t, failingCoach{}, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/conversations", "", "learner-1")
	var convo entities.Conversation
	decode(t, rec, &convo)

	rec = s.do(t, http.MethodPost, "/api/v1/conversations/"+convo.ID+"/messages", `{"text":"Hello"}`, "learner-1")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Error string                `json:"error"`
		User  entities.ChatMessage  `json:"user"`
		Reply *entities.ChatMessage `json:"reply"`
	}
	decode(t, rec, &body)
	if body.Error != "coach_unavailable" || body.User.Text != "Hello" || body.Reply != nil {
		t.Errorf("unexpected body %+v", body)
	}

	stored, err := s.repo.GetByID(context.Background(), convo.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(stored.Messages) != 2 || stored.Messages[1].Text != "Hello" {
		t.Errorf("expected the learner message to stay, got %+v", stored.Messages)
	}
}

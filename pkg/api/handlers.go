package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/shouni/promptart-kit/pkg/auth"
	"github.com/shouni/promptart-kit/pkg/catalog"
	"github.com/shouni/promptart-kit/pkg/domain"
	"github.com/shouni/promptart-kit/pkg/generation"
	"github.com/shouni/promptart-kit/pkg/imgutil"
	"github.com/shouni/promptart-kit/pkg/library"
	"github.com/shouni/promptart-kit/pkg/logging"
	"github.com/shouni/promptart-kit/pkg/storage"
)

// ImageGenerator は生成パイプラインの窓口です。
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, sourceImage []byte) (*domain.GeneratedImage, error)
}

// SourceResolver は参照画像 URL をバイト列に解決します。
type SourceResolver interface {
	Resolve(ctx context.Context, rawURL string) ([]byte, error)
}

// Handler は API の全エンドポイントを保持します。
type Handler struct {
	catalog   *catalog.Service
	library   *library.Service
	auth      *auth.Service
	generator ImageGenerator
	resolver  SourceResolver
	log       *slog.Logger

	// ユーザーごとに同時 1 生成のガードです。パイプライン自体は状態を持ちません。
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

func NewHandler(
	catalogSvc *catalog.Service,
	librarySvc *library.Service,
	authSvc *auth.Service,
	generator ImageGenerator,
	resolver SourceResolver,
	log *slog.Logger,
) (*Handler, error) {
	if catalogSvc == nil || librarySvc == nil || authSvc == nil {
		return nil, fmt.Errorf("catalog, library and auth services are required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if log == nil {
		return nil, fmt.Errorf("log is required")
	}

	return &Handler{
		catalog:   catalogSvc,
		library:   librarySvc,
		auth:      authSvc,
		generator: generator,
		resolver:  resolver,
		log:       log.With(logging.Module("api")),
		inflight:  make(map[string]struct{}),
	}, nil
}

// Routes は chi ルーターを構築します。
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(Recovery(h.log))
	r.Use(RequestLogger(h.log))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		r.Get("/categories", h.listCategories)
		r.Get("/prompts", h.listPrompts)
		r.Get("/prompts/featured", h.listFeatured)
		r.Get("/prompts/trending", h.listTrending)
		r.Get("/prompts/{id}", h.getPrompt)

		// 認証必須のエンドポイント
		r.Group(func(r chi.Router) {
			r.Use(h.auth.Middleware)
			r.Post("/prompts", h.createPrompt)
			r.Get("/library", h.listLibrary)
			r.Post("/library", h.saveToLibrary)
			r.Delete("/library/{id}", h.removeFromLibrary)
			r.Post("/generate", h.generate)
		})
	})

	return r
}

// --- 認証 ---

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.auth.Register(req.Email, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.log.Error("login failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// --- カタログ ---

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories()
	if err != nil {
		h.log.Error("listing categories", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (h *Handler) listPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.catalog.List(r.URL.Query().Get("category"), r.URL.Query().Get("search"))
	if err != nil {
		h.log.Error("listing prompts", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
}

func (h *Handler) listFeatured(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.catalog.Featured()
	if err != nil {
		h.log.Error("listing featured", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
}

func (h *Handler) listTrending(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.catalog.Trending()
	if err != nil {
		h.log.Error("listing trending", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
}

func (h *Handler) getPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := h.catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "prompt not found")
			return
		}
		h.log.Error("getting prompt", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

type createPromptRequest struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	Category string `json:"category"`
	ImageURL string `json:"image_url"`
}

func (h *Handler) createPrompt(w http.ResponseWriter, r *http.Request) {
	var req createPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prompt, err := h.catalog.Create(req.Title, req.Text, req.Category, req.ImageURL, auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, prompt)
}

// --- ライブラリ ---

func (h *Handler) listLibrary(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.library.List(auth.UserIDFromContext(r.Context()))
	if err != nil {
		h.log.Error("listing library", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
}

type saveRequest struct {
	PromptID string `json:"prompt_id"`
}

func (h *Handler) saveToLibrary(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PromptID == "" {
		writeError(w, http.StatusBadRequest, "prompt_id is required")
		return
	}

	if err := h.library.Save(auth.UserIDFromContext(r.Context()), req.PromptID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "prompt not found")
			return
		}
		h.log.Error("saving to library", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeFromLibrary(w http.ResponseWriter, r *http.Request) {
	err := h.library.Remove(auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not in library")
			return
		}
		h.log.Error("removing from library", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- 画像生成 ---

type generateRequest struct {
	Prompt   string `json:"prompt"`
	Image    string `json:"image,omitempty"` // base64 エンコードされた入力画像
	ImageURL string `json:"image_url,omitempty"`
}

type generateResponse struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64 エンコードされた生成画像
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	// 同一ユーザーの再入呼び出しは拒否します。
	if !h.tryAcquire(userID) {
		writeError(w, http.StatusConflict, "generation already in progress")
		return
	}
	defer h.release(userID)

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	source, ok := h.resolveSource(w, r, &req)
	if !ok {
		return
	}
	// 入力不備はパイプラインに入る前に 400 として返します。
	if _, err := imgutil.DetectFormat(source); err != nil {
		writeError(w, http.StatusBadRequest, "source is not a decodable image")
		return
	}

	image, err := h.generator.Generate(r.Context(), req.Prompt, source)
	if err != nil {
		h.writeGenerationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		MimeType: image.MimeType,
		Data:     base64.StdEncoding.EncodeToString(image.Data),
	})
}

// resolveSource は入力画像（base64 またはURL参照）をバイト列にします。
// 失敗時は自身でエラー応答を書き、ok=false を返します。
func (h *Handler) resolveSource(w http.ResponseWriter, r *http.Request, req *generateRequest) ([]byte, bool) {
	switch {
	case req.Image != "":
		source, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, "image is not valid base64")
			return nil, false
		}
		return source, true

	case req.ImageURL != "":
		if h.resolver == nil {
			writeError(w, http.StatusBadRequest, "image_url is not supported")
			return nil, false
		}
		source, err := h.resolver.Resolve(r.Context(), req.ImageURL)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not fetch reference image")
			return nil, false
		}
		return source, true

	default:
		writeError(w, http.StatusBadRequest, "image or image_url is required")
		return nil, false
	}
}

// writeGenerationError はパイプラインの分類済みエラーを HTTP ステータスへ写像します。
func (h *Handler) writeGenerationError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		blocked   *generation.PromptBlockedError
		provider  *generation.ProviderError
		transport *generation.TransportError
		decode    *generation.ImageDecodeError
		malformed *generation.MalformedBodyError
	)

	switch {
	case errors.As(err, &blocked):
		writeError(w, http.StatusUnprocessableEntity, blocked.Error())
	case errors.As(err, &provider):
		writeError(w, http.StatusBadGateway, provider.Error())
	case errors.As(err, &transport):
		h.log.Warn("プロバイダが異常ステータスを返しました",
			slog.Int("status", transport.StatusCode))
		writeError(w, http.StatusBadGateway, "image provider error")
	case errors.As(err, &decode), errors.As(err, &malformed),
		errors.Is(err, generation.ErrEmptyBody),
		errors.Is(err, generation.ErrNoImageInResponse):
		h.log.Warn("生成レスポンスを利用できませんでした", logging.Err(err))
		writeError(w, http.StatusBadGateway, "image provider returned an unusable response")
	case errors.Is(r.Context().Err(), context.Canceled):
		// クライアント切断。応答は書けないため記録のみです。
		h.log.Debug("generation cancelled by client")
	default:
		h.log.Error("generation failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) tryAcquire(userID string) bool {
	h.inflightMu.Lock()
	defer h.inflightMu.Unlock()
	if _, busy := h.inflight[userID]; busy {
		return false
	}
	h.inflight[userID] = struct{}{}
	return true
}

func (h *Handler) release(userID string) {
	h.inflightMu.Lock()
	defer h.inflightMu.Unlock()
	delete(h.inflight, userID)
}

// --- 応答ヘルパー ---

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

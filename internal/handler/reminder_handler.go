package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/remindman/internal/middleware"
	"github.com/hitoshi/remindman/internal/model"
)

const (
	defaultPage     = 0
	defaultPageSize = 10
)

// ReminderServiceInterface はリマインダーハンドラーが必要とするサービスインターフェース。
// すべての操作は認証済みsubjectの所有スコープで行われる。
type ReminderServiceInterface interface {
	Create(ctx context.Context, keycloakID, title, description string, remindAt time.Time) (*model.Reminder, error)
	Get(ctx context.Context, keycloakID, reminderID string) (*model.Reminder, error)
	Update(ctx context.Context, keycloakID, reminderID, title, description string, remindAt time.Time) (*model.Reminder, error)
	Delete(ctx context.Context, keycloakID, reminderID string) error
	Search(ctx context.Context, keycloakID string, filter model.SearchFilter) (*model.ReminderPage, error)
}

// OwnerProvisioner は認証済みsubjectのローカルユーザーを保証するインターフェース。
// 初回アクセス時にトークンのクレームからローカル行を作成する。
type OwnerProvisioner interface {
	FindOrCreate(ctx context.Context, keycloakID, email, username string) (*model.User, error)
}

// ReminderHandler はリマインダー管理のHTTPハンドラー。
type ReminderHandler struct {
	service ReminderServiceInterface
	owners  OwnerProvisioner
}

// NewReminderHandler はReminderHandlerを生成する。
func NewReminderHandler(service ReminderServiceInterface, owners OwnerProvisioner) *ReminderHandler {
	return &ReminderHandler{
		service: service,
		owners:  owners,
	}
}

// reminderRequest はリマインダー作成・更新リクエストのボディ。
type reminderRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	RemindAt    time.Time `json:"remind_at"`
}

// reminderResponse はリマインダーのAPIレスポンス。
type reminderResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	RemindAt    time.Time `json:"remind_at"`
	Notified    bool      `json:"notified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// reminderPageResponse は検索結果の1ページのAPIレスポンス。
type reminderPageResponse struct {
	Content       []reminderResponse `json:"content"`
	TotalElements int                `json:"total_elements"`
	TotalPages    int                `json:"total_pages"`
	Page          int                `json:"page"`
	PageSize      int                `json:"page_size"`
}

// provision は認証主体を取り出し、ローカルユーザーの存在を保証する。
// 初回アクセスのリクエストではここでローカル行が作成される。
func (h *ReminderHandler) provision(r *http.Request) (middleware.Principal, error) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		return middleware.Principal{}, unauthorizedError()
	}
	if _, err := h.owners.FindOrCreate(r.Context(), principal.Subject, principal.Email, principal.Username); err != nil {
		return middleware.Principal{}, err
	}
	return principal, nil
}

// CreateReminder はリマインダー作成を処理する。
// POST /api/reminders
func (h *ReminderHandler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	principal, err := h.provision(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	req, apiErr := decodeReminderRequest(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	reminder, err := h.service.Create(r.Context(), principal.Subject, req.Title, req.Description, req.RemindAt)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toReminderResponse(reminder))
}

// GetReminder はリマインダー詳細を取得する。
// GET /api/reminders/:id
func (h *ReminderHandler) GetReminder(w http.ResponseWriter, r *http.Request) {
	principal, err := h.provision(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	reminderID := chi.URLParam(r, "id")

	reminder, err := h.service.Get(r.Context(), principal.Subject, reminderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toReminderResponse(reminder))
}

// UpdateReminder はリマインダーを更新する。
// PUT /api/reminders/:id
func (h *ReminderHandler) UpdateReminder(w http.ResponseWriter, r *http.Request) {
	principal, err := h.provision(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	reminderID := chi.URLParam(r, "id")

	req, apiErr := decodeReminderRequest(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	reminder, err := h.service.Update(r.Context(), principal.Subject, reminderID, req.Title, req.Description, req.RemindAt)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toReminderResponse(reminder))
}

// DeleteReminder はリマインダーを削除する。
// DELETE /api/reminders/:id
func (h *ReminderHandler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	principal, err := h.provision(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	reminderID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), principal.Subject, reminderID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SearchReminders は所有リマインダーの動的検索を処理する。
// GET /api/reminders
//
// クエリパラメータ:
//
//	title       タイトルの部分一致
//	description 説明の部分一致
//	from, to    通知予定日時の範囲（RFC 3339）
//	sort_by     "title" または "remind_at"
//	direction   "asc" または "desc"
//	page        0始まりのページ番号
//	page_size   1ページの件数（1以上）
func (h *ReminderHandler) SearchReminders(w http.ResponseWriter, r *http.Request) {
	principal, err := h.provision(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	filter, apiErr := parseSearchFilter(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	page, err := h.service.Search(r.Context(), principal.Subject, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toReminderPageResponse(page))
}

// --- ヘルパー関数 ---

// decodeReminderRequest は作成・更新リクエストのボディを解析し検証する。
func decodeReminderRequest(r *http.Request) (reminderRequest, *model.APIError) {
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, invalidRequestBodyError()
	}
	if req.Title == "" {
		return req, model.NewValidationError("タイトルは必須です")
	}
	if req.RemindAt.IsZero() {
		return req, model.NewValidationError("通知予定日時は必須です")
	}
	return req, nil
}

// parseSearchFilter はクエリパラメータから検索条件を組み立てる。
// 不在のパラメータはフィルタなし、page/page_sizeはデフォルト値を適用する。
func parseSearchFilter(r *http.Request) (model.SearchFilter, *model.APIError) {
	q := r.URL.Query()

	filter := model.SearchFilter{
		TitleContains:       q.Get("title"),
		DescriptionContains: q.Get("description"),
		SortBy:              q.Get("sort_by"),
		SortDirection:       q.Get("direction"),
		Page:                defaultPage,
		PageSize:            defaultPageSize,
	}

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, model.NewValidationError("fromはRFC 3339形式で指定してください")
		}
		filter.RemindFrom = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, model.NewValidationError("toはRFC 3339形式で指定してください")
		}
		filter.RemindTo = &t
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			return filter, model.NewValidationError("pageは0以上の整数で指定してください")
		}
		filter.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		pageSize, err := strconv.Atoi(raw)
		if err != nil || pageSize < 1 {
			return filter, model.NewValidationError("page_sizeは1以上の整数で指定してください")
		}
		filter.PageSize = pageSize
	}

	return filter, nil
}

// toReminderResponse はmodel.ReminderからAPIレスポンスに変換する。
func toReminderResponse(reminder *model.Reminder) reminderResponse {
	return reminderResponse{
		ID:          reminder.ID,
		Title:       reminder.Title,
		Description: reminder.Description,
		RemindAt:    reminder.RemindAt,
		Notified:    reminder.Notified,
		CreatedAt:   reminder.CreatedAt,
		UpdatedAt:   reminder.UpdatedAt,
	}
}

// toReminderPageResponse はmodel.ReminderPageからAPIレスポンスに変換する。
func toReminderPageResponse(page *model.ReminderPage) reminderPageResponse {
	content := make([]reminderResponse, len(page.Reminders))
	for i, reminder := range page.Reminders {
		content[i] = toReminderResponse(reminder)
	}
	return reminderPageResponse{
		Content:       content,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
		Page:          page.Page,
		PageSize:      page.PageSize,
	}
}

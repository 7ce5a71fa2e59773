package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"portfolio/api/internal/auth"
	"portfolio/api/internal/export"
	"portfolio/api/internal/search"
	"portfolio/api/internal/store"
)

const maxUploadBytes = 10 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
			"redis":    map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		}
		if err := s.service.PingSessions(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["redis"] = map[string]any{"status": "error", "error": err.Error()}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Login(r.Context(), body.Email, body.Password)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, sessionJSON(session))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, sessionJSON(session))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/reset/request" {
		var body struct {
			Email string `json:"email"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.RequestPasswordReset(r.Context(), body.Email); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/reset/verify" {
		var body struct {
			Email       string `json:"email"`
			Code        string `json:"code"`
			NewPassword string `json:"newPassword"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.VerifyPasswordReset(r.Context(), body.Email, body.Code, body.NewPassword); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Public read-only routes
	if r.Method == http.MethodGet && r.URL.Path == "/api/skills" {
		skills, err := s.service.ListSkills(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list skills", nil)
			return
		}
		items := make([]map[string]any, 0, len(skills))
		for _, skill := range skills {
			items = append(items, skillJSON(skill))
		}
		writeJSON(w, http.StatusOK, map[string]any{"skills": items})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/skills/categories" {
		writeJSON(w, http.StatusOK, map[string]any{"categories": s.service.SkillCategories()})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/timelines" {
		timelines, err := s.service.ListTimelines(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list timelines", nil)
			return
		}
		items := make([]map[string]any, 0, len(timelines))
		for _, timeline := range timelines {
			items = append(items, timelineJSON(timeline))
		}
		writeJSON(w, http.StatusOK, map[string]any{"timelines": items})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/projects" {
		projects, err := s.service.ListProjects(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list projects", nil)
			return
		}
		items := make([]map[string]any, 0, len(projects))
		for _, project := range projects {
			items = append(items, projectJSON(project))
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": items})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/project-categories" {
		categories, err := s.service.ListProjectCategories(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list categories", nil)
			return
		}
		items := make([]map[string]any, 0, len(categories))
		for _, category := range categories {
			items = append(items, categoryJSON(category))
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": items})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/project-categories/with-projects" {
		enabledOnly := r.URL.Query().Get("enabledOnly") == "true"
		categories, err := s.service.ListCategoriesWithProjects(r.Context(), enabledOnly)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list categories", nil)
			return
		}
		items := make([]map[string]any, 0, len(categories))
		for _, category := range categories {
			payload := categoryJSON(category.ProjectCategory)
			projects := make([]map[string]any, 0, len(category.Projects))
			for _, project := range category.Projects {
				projects = append(projects, projectJSON(project))
			}
			payload["projects"] = projects
			items = append(items, payload)
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": items})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/profile/image" {
		profile, err := s.service.GetProfile(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not load profile", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"imageUrl":     profile.ImageURL,
			"imageEnabled": profile.ImageEnabled,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/profile/aboutme" {
		content, commit, err := s.service.GetAboutMe(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"content":   content,
			"hash":      commit.Hash,
			"updatedAt": commit.CreatedAt.Format(time.RFC3339),
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/profile/data" {
		profile, err := s.service.GetProfile(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not load profile", nil)
			return
		}
		var data any
		if len(profile.Data) > 0 {
			data = json.RawMessage(profile.Data)
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": data})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/profile/stats" {
		stats, err := s.service.GetProfileStats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not load stats", nil)
			return
		}
		writeJSON(w, http.StatusOK, statsJSON(stats))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/chat/stream" {
		s.handleChatStream(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/chat/history" {
		chatID := strings.TrimSpace(r.URL.Query().Get("chatId"))
		if chatID == "" {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "chatId is required", nil)
			return
		}
		history, err := s.service.ChatHistory(r.Context(), chatID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": history})
		return
	}

	// Everything below requires an admin session.
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/change-password" {
		var body struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.ChangePassword(r.Context(), session.AdminID, body.CurrentPassword, body.NewPassword); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/skills" {
		input, ok := s.skillInput(w, r)
		if !ok {
			return
		}
		skill, err := s.service.CreateSkill(r.Context(), input)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, skillJSON(skill))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/timelines" {
		input, ok := s.timelineInput(w, r)
		if !ok {
			return
		}
		timeline, err := s.service.CreateTimeline(r.Context(), input)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, timelineJSON(timeline))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/projects" {
		input, ok := s.projectInput(w, r)
		if !ok {
			return
		}
		project, err := s.service.CreateProject(r.Context(), input)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, projectJSON(project))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/project-categories" {
		input, ok := s.categoryInput(w, r)
		if !ok {
			return
		}
		category, err := s.service.CreateProjectCategory(r.Context(), input)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, categoryJSON(category))
		return
	}

	if r.URL.Path == "/api/profile/image" {
		switch r.Method {
		case http.MethodPut:
			if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart form", nil)
				return
			}
			url, err := s.uploadFromForm(r, "profile", "image")
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			if url == "" {
				writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "image file is required", nil)
				return
			}
			if err := s.service.SetProfileImage(r.Context(), url); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"imageUrl": url})
			return
		case http.MethodDelete:
			if err := s.service.ClearProfileImage(r.Context()); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/profile/aboutme" {
		var body struct {
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		commit, err := s.service.PutAboutMe(r.Context(), body.Content, session.Email)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, commitJSON(commit))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/profile/aboutme/history" {
		limit := 50
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "limit must be an integer", nil)
				return
			}
			limit = parsed
		}
		commits, err := s.service.AboutMeHistory(r.Context(), limit)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		items := make([]map[string]any, 0, len(commits))
		for _, commit := range commits {
			items = append(items, commitJSON(commit))
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": items})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/profile/aboutme/restore" {
		var body struct {
			Hash string `json:"hash"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		content, commit, err := s.service.RestoreAboutMe(r.Context(), body.Hash, session.Email)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		payload := commitJSON(commit)
		payload["content"] = content
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.URL.Path == "/api/profile/data" {
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Data json.RawMessage `json:"data"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.SetProfileData(r.Context(), body.Data); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		case http.MethodDelete:
			if err := s.service.ClearProfileData(r.Context()); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/profile/stats/refresh" {
		if err := s.service.RefreshStats(r.Context()); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		stats, err := s.service.GetProfileStats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not load stats", nil)
			return
		}
		writeJSON(w, http.StatusOK, statsJSON(stats))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/export/resume" {
		result, err := s.service.ExportResume(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "skills" {
		id := parts[2]
		switch r.Method {
		case http.MethodPut:
			input, ok := s.skillInput(w, r)
			if !ok {
				return
			}
			skill, err := s.service.UpdateSkill(r.Context(), id, input)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, skillJSON(skill))
			return
		case http.MethodDelete:
			if err := s.service.DeleteSkill(r.Context(), id); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "timelines" {
		id := parts[2]
		switch r.Method {
		case http.MethodPut:
			input, ok := s.timelineInput(w, r)
			if !ok {
				return
			}
			timeline, err := s.service.UpdateTimeline(r.Context(), id, input)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, timelineJSON(timeline))
			return
		case http.MethodDelete:
			if err := s.service.DeleteTimeline(r.Context(), id); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "projects" {
		id := parts[2]
		switch r.Method {
		case http.MethodPut:
			input, ok := s.projectInput(w, r)
			if !ok {
				return
			}
			project, err := s.service.UpdateProject(r.Context(), id, input)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, projectJSON(project))
			return
		case http.MethodDelete:
			if err := s.service.DeleteProject(r.Context(), id); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "project-categories" {
		id := parts[2]
		switch r.Method {
		case http.MethodPut:
			input, ok := s.categoryInput(w, r)
			if !ok {
				return
			}
			category, err := s.service.UpdateProjectCategory(r.Context(), id, input)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, categoryJSON(category))
			return
		case http.MethodDelete:
			migrated, err := s.service.DeleteProjectCategory(r.Context(), id)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "migratedProjects": migrated})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "q is required", nil)
		return
	}
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "offset must be an integer", nil)
			return
		}
		offset = parsed
	}

	response, err := s.service.Search(search.Query{
		Text:       q,
		FilterType: search.ResultType(strings.TrimSpace(r.URL.Query().Get("type"))),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChatID  string `json:"chatId"`
		Message string `json:"message"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.ChatID) == "" || strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "chatId and message are required", nil)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	err := s.service.ChatStream(r.Context(), body.ChatID, body.Message, func(token string) {
		data, _ := json.Marshal(map[string]string{"token": token})
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	})
	if err != nil {
		data, _ := json.Marshal(map[string]string{"error": "chat stream failed"})
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
		flusher.Flush()
		return
	}
	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	flusher.Flush()
}

// --- Request parsing ---

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func formOrder(r *http.Request) (*int, error) {
	raw := strings.TrimSpace(r.FormValue("order"))
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("order must be an integer")
	}
	return &parsed, nil
}

func formBool(r *http.Request, field string) (*bool, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a boolean", field)
	}
	return &parsed, nil
}

// uploadFromForm stores the named file field, returning "" when the field
// is absent.
func (s *HTTPServer) uploadFromForm(r *http.Request, kind, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", invalidArgument("invalid file upload")
	}
	defer file.Close()
	return s.service.UploadImage(r.Context(), kind, header.Filename, file, header.Size)
}

func (s *HTTPServer) skillInput(w http.ResponseWriter, r *http.Request) (SkillInput, bool) {
	var input SkillInput
	if !isMultipart(r) {
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return input, false
		}
		return input, true
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart form", nil)
		return input, false
	}
	input.Name = r.FormValue("name")
	input.Category = r.FormValue("category")
	input.HoverColorPrimary = r.FormValue("hoverColorPrimary")
	input.HoverColorSecondary = r.FormValue("hoverColorSecondary")
	input.LogoURL = r.FormValue("logoUrl")

	order, err := formOrder(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
		return input, false
	}
	input.Order = order

	if url, err := s.uploadFromForm(r, "skills", "logo"); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return input, false
	} else if url != "" {
		input.LogoURL = url
	}
	return input, true
}

func (s *HTTPServer) timelineInput(w http.ResponseWriter, r *http.Request) (TimelineInput, bool) {
	var input TimelineInput
	if !isMultipart(r) {
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return input, false
		}
		return input, true
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart form", nil)
		return input, false
	}
	input.Header = r.FormValue("header")
	input.Subheader = r.FormValue("subheader")
	input.Date = r.FormValue("date")
	input.Description = r.FormValue("description")
	input.LogoURL = r.FormValue("logoUrl")

	order, err := formOrder(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
		return input, false
	}
	input.Order = order

	if url, err := s.uploadFromForm(r, "timelines", "logo"); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return input, false
	} else if url != "" {
		input.LogoURL = url
	}
	return input, true
}

func (s *HTTPServer) projectInput(w http.ResponseWriter, r *http.Request) (ProjectInput, bool) {
	var input ProjectInput
	if !isMultipart(r) {
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return input, false
		}
		return input, true
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart form", nil)
		return input, false
	}
	input.Name = r.FormValue("name")
	input.CategoryID = r.FormValue("categoryId")
	input.Date = r.FormValue("date")
	input.GithubURL = r.FormValue("githubUrl")
	input.DemoURL = r.FormValue("demoUrl")
	input.ImageURL = r.FormValue("imageUrl")

	if raw := strings.TrimSpace(r.FormValue("difficulty")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "difficulty must be an integer", nil)
			return input, false
		}
		input.Difficulty = parsed
	}
	if raw := strings.TrimSpace(r.FormValue("skills")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input.Skills); err != nil {
			input.Skills = splitCSV(raw)
		}
	}
	enabled, err := formBool(r, "enabled")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
		return input, false
	}
	input.Enabled = enabled

	order, err := formOrder(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
		return input, false
	}
	input.Order = order

	if url, err := s.uploadFromForm(r, "projects", "image"); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return input, false
	} else if url != "" {
		input.ImageURL = url
	}
	return input, true
}

func (s *HTTPServer) categoryInput(w http.ResponseWriter, r *http.Request) (CategoryInput, bool) {
	var input CategoryInput
	if !isMultipart(r) {
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return input, false
		}
		return input, true
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart form", nil)
		return input, false
	}
	input.Name = r.FormValue("name")
	input.Description = r.FormValue("description")
	input.ImageURL = r.FormValue("imageUrl")

	enabled, err := formBool(r, "enabled")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
		return input, false
	}
	input.Enabled = enabled

	order, err := formOrder(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
		return input, false
	}
	input.Order = order

	if url, err := s.uploadFromForm(r, "categories", "image"); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return input, false
	} else if url != "" {
		input.ImageURL = url
	}
	return input, true
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

// --- Payload builders ---

func sessionJSON(session Session) map[string]any {
	return map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"email":        session.Email,
		"expiresAt":    session.ExpiresAt.Format(time.RFC3339),
	}
}

func skillJSON(skill store.Skill) map[string]any {
	return map[string]any{
		"id":                  skill.ID,
		"name":                skill.Name,
		"category":            skill.Category,
		"order":               skill.DisplayOrder,
		"hoverColorPrimary":   skill.HoverColorPrimary,
		"hoverColorSecondary": skill.HoverColorSecondary,
		"logoUrl":             skill.LogoURL,
	}
}

func timelineJSON(timeline store.Timeline) map[string]any {
	return map[string]any{
		"id":          timeline.ID,
		"header":      timeline.Header,
		"subheader":   timeline.Subheader,
		"date":        timeline.Date,
		"description": timeline.Description,
		"order":       timeline.DisplayOrder,
		"logoUrl":     timeline.LogoURL,
	}
}

func projectJSON(project store.Project) map[string]any {
	skills := project.Skills
	if skills == nil {
		skills = []string{}
	}
	return map[string]any{
		"id":         project.ID,
		"name":       project.Name,
		"categoryId": project.CategoryID,
		"order":      project.DisplayOrder,
		"difficulty": project.Difficulty,
		"date":       project.Date,
		"githubUrl":  project.GithubURL,
		"demoUrl":    project.DemoURL,
		"skills":     skills,
		"enabled":    project.Enabled,
		"imageUrl":   project.ImageURL,
	}
}

func categoryJSON(category store.ProjectCategory) map[string]any {
	return map[string]any{
		"id":          category.ID,
		"name":        category.Name,
		"description": category.Description,
		"order":       category.DisplayOrder,
		"enabled":     category.Enabled,
		"imageUrl":    category.ImageURL,
	}
}

func commitJSON(commit store.CommitInfo) map[string]any {
	return map[string]any{
		"hash":      commit.Hash,
		"message":   commit.Message,
		"author":    commit.Author,
		"createdAt": commit.CreatedAt.Format(time.RFC3339),
	}
}

func statsJSON(stats store.ProfileStats) map[string]any {
	payload := map[string]any{
		"leetcode":    nil,
		"codeforces":  nil,
		"github":      nil,
		"lastUpdated": nil,
	}
	if len(stats.LeetCode) > 0 {
		payload["leetcode"] = json.RawMessage(stats.LeetCode)
	}
	if len(stats.Codeforces) > 0 {
		payload["codeforces"] = json.RawMessage(stats.Codeforces)
	}
	if len(stats.GitHub) > 0 {
		payload["github"] = json.RawMessage(stats.GitHub)
	}
	if !stats.LastUpdated.IsZero() {
		payload["lastUpdated"] = stats.LastUpdated.Format(time.RFC3339)
	}
	return payload
}

// --- Plumbing ---

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return http.StatusInternalServerError, "CONFIG_ERROR", "PDF rendering is unavailable", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

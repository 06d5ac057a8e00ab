package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	requestresponse "upload-broker/internal/model/requestresponse"
	"upload-broker/internal/ports"
	"upload-broker/internal/util"
)

type UserHandler struct {
	ports.UserService
}

func NewUserHandler(userService ports.UserService) *UserHandler {
	return &UserHandler{userService}
}

// RegisterUser godoc
// @Summary Регистрация владельца загрузок
// @Description Создаёт пользователя с ролью и возвращает пару токенов.
// Доступно только по токену администратора.
// @Tags Users
// @Accept json
// @Produce json
// @Param body body requestresponse.RegisterRequest true "Тело запроса"
// @Success 201 {object} requestresponse.TokensResponse
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректный JSON или слабый пароль"
// @Failure 403 {object} requestresponse.ErrorResponse "Неверный токен администратора"
// @Failure 500 {object} requestresponse.ErrorResponse
// @Router /api/register [post]
func (h *UserHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	var req requestresponse.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.HandleError(w, "некорректный JSON", http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		util.HandleError(w, "login и password обязательны", http.StatusBadRequest)
		return
	}

	role := req.Role
	if role == "" {
		role = "editor"
	}

	tokens, err := h.UserService.Register(ctx, req.AdminToken, req.Login, req.Password, role)
	if err != nil {
		log.Println(err)
		switch {
		case strings.Contains(err.Error(), "токен администратора"):
			util.HandleError(w, "неверный токен администратора", http.StatusForbidden)
		case strings.Contains(err.Error(), "логин"),
			strings.Contains(err.Error(), "пароль"),
			strings.Contains(err.Error(), "роль"):
			util.HandleError(w, err.Error(), http.StatusBadRequest)
		default:
			util.HandleError(w, "внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	resp := requestresponse.TokensResponse{}
	resp.Response.AccessToken = tokens.AccessToken
	resp.Response.RefreshToken = tokens.RefreshToken

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

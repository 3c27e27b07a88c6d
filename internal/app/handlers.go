package app

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"hygienix/backend/internal/auth"
	"hygienix/backend/internal/model"
	"hygienix/backend/internal/service"
)

type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role"`
}

type sessionResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

type orderResponse struct {
	ID            int64             `json:"id"`
	UserID        *int64            `json:"user_id"`
	CustomerName  string            `json:"customer_name"`
	CustomerPhone string            `json:"customer_phone"`
	Address       string            `json:"address"`
	ServiceDate   string            `json:"service_date"`
	Items         []model.OrderItem `json:"items"`
	Total         float64           `json:"total"`
	Status        string            `json:"status"`
	CreatedAt     string            `json:"created_at"`
}

type notificationResponse struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Meta      map[string]any `json:"meta"`
	IsRead    bool           `json:"is_read"`
	CreatedAt string         `json:"created_at"`
}

type contactResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
}

type otpRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

type forgotRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
	Password    string `json:"password"`
}

type createOrderRequest struct {
	Items         []model.OrderItem `json:"items"`
	Total         *float64          `json:"total"`
	CustomerName  string            `json:"customer_name"`
	CustomerPhone string            `json:"customer_phone"`
	CustomerEmail string            `json:"customer_email"`
	Address       string            `json:"address"`
	ServiceDate   string            `json:"service_date"`
}

// bookingRequest is the older public booking form.
type bookingRequest struct {
	Name          string            `json:"name"`
	CustomerName  string            `json:"customerName"`
	Phone         string            `json:"phone"`
	CustomerPhone string            `json:"customerPhone"`
	Email         string            `json:"email"`
	Address       string            `json:"address"`
	Date          string            `json:"date"`
	ServiceDate   string            `json:"service_date"`
	Items         []model.OrderItem `json:"items"`
	Total         *float64          `json:"total"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type adminInitRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type promoteRequest struct {
	Phone string `json:"phone"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Service: "hygienix-backend", Version: Version})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("hygienix cleaning services backend"))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := s.authService.Signup(r.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		s.writeServiceErr(w, r, err, "failed to sign up")
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	identifier := firstNonEmpty(req.Identifier, req.Email, req.Phone)
	session, err := s.authService.Login(r.Context(), identifier, req.Password)
	if err != nil {
		s.writeServiceErr(w, r, err, "failed to login")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.authService.SendOTP(r.Context(), req.Phone); err != nil {
		s.writeServiceErr(w, r, err, "failed to send otp")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent"})
}

func (s *Server) handleLoginOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := s.authService.LoginOTP(r.Context(), req.Phone, req.OTP)
	if err != nil {
		s.writeServiceErr(w, r, err, "failed to login")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		s.writeServiceErr(w, r, err, "failed to start password reset")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "If the email is registered, a reset link has been sent"})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.authService.ResetPassword(r.Context(), req.Token, firstNonEmpty(req.NewPassword, req.Password)); err != nil {
		s.writeServiceErr(w, r, err, "failed to reset password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.createOrder(w, r, service.CreateOrderInput{
		Items:         req.Items,
		Total:         req.Total,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Address:       req.Address,
		ServiceDate:   req.ServiceDate,
	})
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.createOrder(w, r, service.CreateOrderInput{
		Items:         req.Items,
		Total:         req.Total,
		CustomerName:  firstNonEmpty(req.CustomerName, req.Name),
		CustomerPhone: firstNonEmpty(req.CustomerPhone, req.Phone),
		CustomerEmail: req.Email,
		Address:       req.Address,
		ServiceDate:   firstNonEmpty(req.ServiceDate, req.Date),
	})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request, input service.CreateOrderInput) {
	var actor *auth.Identity
	if identity, ok := identityFromContext(r.Context()); ok {
		actor = &identity
	}
	id, err := s.orders.CreateOrder(r.Context(), input, actor)
	if err != nil {
		s.writeServiceErr(w, r, err, "failed to create order")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}

func (s *Server) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	orders, err := s.orders.ListMine(r.Context(), identity.ID)
	if err != nil {
		s.writeServiceErr(w, r, err, "failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (s *Server) handleAllOrders(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	orders, err := s.orders.ListAll(r.Context(), identity)
	if err != nil {
		s.writeServiceErr(w, r, err, "failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (s *Server) handleSetOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parsePathID(w, r, "invalid order id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		writeErr(w, http.StatusBadRequest, "status is required")
		return
	}

	identity, _ := identityFromContext(r.Context())
	order, err := s.orders.SetStatus(r.Context(), orderID, req.Status, identity)
	if err != nil {
		s.writeServiceErr(w, r, err, "failed to update order")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := s.contacts.Submit(r.Context(), service.ContactInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: req.Message,
	})
	if err != nil {
		s.writeServiceErr(w, r, err, "failed to save contact")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.contacts.List(r.Context())
	if err != nil {
		s.writeServiceErr(w, r, err, "failed to list contacts")
		return
	}
	items := make([]contactResponse, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, contactResponse{
			ID:        c.ID,
			Name:      c.Name,
			Email:     c.Email,
			Phone:     c.Phone,
			Message:   c.Message,
			CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := s.notifications.List(r.Context())
	if err != nil {
		s.writeServiceErr(w, r, err, "failed to list notifications")
		return
	}
	items := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, notificationResponse{
			ID:        n.ID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			Meta:      n.Meta,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "invalid notification id")
	if !ok {
		return
	}
	if err := s.notifications.MarkRead(r.Context(), id); err != nil {
		s.writeServiceErr(w, r, err, "failed to mark notification read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "is_read": true})
}

func (s *Server) handleAdminInit(w http.ResponseWriter, r *http.Request) {
	var req adminInitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.authService.InitFirstAdmin(r.Context(), service.AdminInitInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	}); err != nil {
		s.writeServiceErr(w, r, err, "failed to init admin")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePromoteUser(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.authService.PromoteByPhone(r.Context(), req.Phone)
	if err != nil {
		s.writeServiceErr(w, r, err, "failed to promote user")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func parsePathID(w http.ResponseWriter, r *http.Request, message string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeErr(w, http.StatusBadRequest, message)
		return 0, false
	}
	return id, true
}

func toUserResponse(u model.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, Role: string(u.Role)}
}

func toSessionResponse(s service.Session) sessionResponse {
	return sessionResponse{User: toUserResponse(s.User), Token: s.Token}
}

func toOrderResponse(o model.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		Address:       o.Address,
		ServiceDate:   o.ServiceDate,
		Items:         o.Items,
		Total:         o.Total,
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toOrderResponses(orders []model.Order) []orderResponse {
	items := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		items = append(items, toOrderResponse(o))
	}
	return items
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

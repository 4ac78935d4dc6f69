package api

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"github.com/celerix-dev/celerix-checkin/internal/attendance"
	"github.com/celerix-dev/celerix-checkin/internal/report"
	"github.com/celerix-dev/celerix-checkin/internal/session"
	"github.com/celerix-dev/celerix-checkin/pkg/schema"
	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

// Records is the attendance and user store behind the API.
type Records interface {
	sdk.AttendanceAPI
	sdk.AdminAPI
	FindUserByID(id string) (*schema.User, error)
	Location() *time.Location
	Today() time.Time
}

// Sessions issues and verifies tokens.
type Sessions interface {
	SignIn(email, password string) (schema.AuthSession, error)
	SignInDemo(role schema.Role) (schema.AuthSession, error)
	Authenticate(token string) (*schema.TokenClaims, error)
	Revoke(token string) error
}

var sanitizer = bluemonday.StrictPolicy()

// plainText reports whether s survives the strict policy unchanged once its output is
// unescaped, i.e. it carries no tags or comments.
func plainText(s string) bool {
	return html.UnescapeString(sanitizer.Sanitize(s)) == s
}

type Handler struct {
	Records  Records
	Sessions Sessions
	AppName  string
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "app": h.AppName})
}

// --- Auth ---

// Session returns the session of the bearer token, or null when there is no valid one.
func (h *Handler) Session(c *gin.Context) {
	token, ok := bearer(c)
	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}
	claims, err := h.Sessions.Authenticate(token)
	if err != nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	u, err := h.Records.FindUserByID(claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	if u == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, schema.AuthSession{Token: token, User: u.Public()})
}

func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, errBadRequest)
		return
	}

	sess, err := h.Sessions.SignIn(input.Email, input.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) DemoLogin(c *gin.Context) {
	var input struct {
		Role schema.Role `json:"role"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, errBadRequest)
		return
	}
	if !input.Role.Valid() {
		fail(c, sdk.ErrInvalidRole)
		return
	}

	sess, err := h.Sessions.SignInDemo(input.Role)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.Sessions.Revoke(c.GetString(ContextTokenKey)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// --- Attendance ---

func (h *Handler) Scan(c *gin.Context) {
	var input struct {
		UserID string `json:"userId"`
		Code   string `json:"code"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, errBadRequest)
		return
	}

	userID, err := subject(c, input.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	day, err := h.Records.RecordScan(userID, strings.TrimSpace(input.Code))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

func (h *Handler) Day(c *gin.Context) {
	userID, err := subject(c, c.Query("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	dateKey, err := h.dateParam(c)
	if err != nil {
		fail(c, err)
		return
	}
	day, err := h.Records.GetDay(userID, dateKey)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

func (h *Handler) Week(c *gin.Context) {
	userID, err := subject(c, c.Query("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	days, err := h.Records.GetWeek(userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

func (h *Handler) History(c *gin.Context) {
	userID, err := subject(c, c.Query("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	month := c.Query("month")
	if month == "" {
		month = h.Records.Today().Format(attendance.MonthLayout)
	}
	days, err := h.Records.GetHistory(userID, month)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

// subject resolves the user a request acts on. Acting on someone else requires admin.
func subject(c *gin.Context, requested string) (string, error) {
	claims := claimsFrom(c)
	if claims == nil {
		return "", errMissingToken
	}
	if requested == "" || requested == claims.UserID {
		return claims.UserID, nil
	}
	if claims.Role != schema.RoleAdmin {
		return "", errForbidden
	}
	return requested, nil
}

// dateParam returns the date query parameter, defaulting to today.
func (h *Handler) dateParam(c *gin.Context) (string, error) {
	key := c.Query("date")
	if key == "" {
		return attendance.ToDateKey(h.Records.Today()), nil
	}
	if _, err := attendance.ParseDateKey(key, h.Records.Location()); err != nil {
		return "", sdk.ErrInvalidDate
	}
	return key, nil
}

// --- Admin ---

func (h *Handler) AdminRows(c *gin.Context) {
	dateKey, err := h.dateParam(c)
	if err != nil {
		fail(c, err)
		return
	}

	var status schema.Status
	if s := c.Query("status"); s != "" {
		st, ok := attendance.ParseStatus(s)
		if !ok {
			fail(c, errBadStatus)
			return
		}
		status = st
	}

	rows, err := h.Records.GetAdminRows(dateKey)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, attendance.FilterRows(rows, c.Query("q"), status))
}

func (h *Handler) AdminSummary(c *gin.Context) {
	dateKey, err := h.dateParam(c)
	if err != nil {
		fail(c, err)
		return
	}
	rows, err := h.Records.GetAdminRows(dateKey)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, attendance.Summarize(rows))
}

func (h *Handler) AdminExport(c *gin.Context) {
	dateKey, err := h.dateParam(c)
	if err != nil {
		fail(c, err)
		return
	}
	rows, err := h.Records.GetAdminRows(dateKey)
	if err != nil {
		fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.AdminDay(&buf, dateKey, rows, h.Records.Location()); err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance-%s.xlsx"`, dateKey))
	c.Data(http.StatusOK, report.ContentType, buf.Bytes())
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Records.ListUsers()
	if err != nil {
		fail(c, err)
		return
	}
	users = attendance.FilterUsers(users, c.Query("q"))
	out := make([]schema.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) UpsertUser(c *gin.Context) {
	var input struct {
		ID       string      `json:"id"`
		FullName string      `json:"fullName"`
		Email    string      `json:"email"`
		Role     schema.Role `json:"role"`
		Active   bool        `json:"active"`
		Password string      `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, errBadRequest)
		return
	}

	user := schema.User{
		ID:       strings.TrimSpace(input.ID),
		FullName: input.FullName,
		Email:    input.Email,
		Role:     input.Role,
		Active:   input.Active,
	}
	if strings.TrimSpace(user.FullName) == "" || strings.TrimSpace(user.Email) == "" {
		fail(c, errMissingProfile)
		return
	}
	if !plainText(user.FullName) || !plainText(user.Email) {
		fail(c, errMarkup)
		return
	}

	if input.Password != "" {
		hash, err := session.HashPassword(input.Password)
		if err != nil {
			fail(c, err)
			return
		}
		user.PasswordHash = hash
	} else if user.ID != "" {
		existing, err := h.Records.FindUserByID(user.ID)
		if err != nil {
			fail(c, err)
			return
		}
		if existing != nil {
			user.PasswordHash = existing.PasswordHash
		}
	}

	saved, err := h.Records.UpsertUser(user)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved.Public())
}

func (h *Handler) ToggleUser(c *gin.Context) {
	u, err := h.Records.ToggleUser(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if u == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, u.Public())
}

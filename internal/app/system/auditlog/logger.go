// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/teamreg/internal/app/store/audit"
	"github.com/dalemusser/teamreg/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destination settings for a category.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off"
)

// ValidSetting reports whether s is a recognized destination. Empty is
// accepted and means All.
func ValidSetting(s string) bool {
	switch s {
	case "", All, DB, Log, Off:
		return true
	}
	return false
}

// Config holds per-category destinations. Empty values mean All.
type Config struct {
	Auth         string
	Registration string
	Payment      string
	Admin        string
}

// Sink persists audit events. *audit.Store satisfies it.
type Sink interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger writes audit events to the audit store and to zap, as configured
// per category. A nil *Logger is a no-op.
type Logger struct {
	sink   Sink
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(sink Sink, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{sink: sink, zapLog: zapLog, config: config}
}

func (l *Logger) setting(category string) string {
	var s string
	switch category {
	case audit.CategoryAuth:
		s = l.config.Auth
	case audit.CategoryRegistration:
		s = l.config.Registration
	case audit.CategoryPayment:
		s = l.config.Payment
	case audit.CategoryAdmin:
		s = l.config.Admin
	}
	if s == "" {
		return All
	}
	return s
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.TeamID != nil {
		fields = append(fields, zap.String("team_id", event.TeamID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event according to its category's setting.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}
	setting := l.setting(event.Category)
	if setting == Off {
		return
	}
	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if (setting == All || setting == DB) && l.sink != nil {
		if err := l.sink.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

// stamp fills request-derived fields. r may be nil for background callers.
func stamp(r *http.Request, e audit.Event) audit.Event {
	if r != nil {
		e.IP = ratelimit.ClientIP(r)
		e.UserAgent = r.UserAgent()
	}
	return e
}

func ptr(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

// --- Authentication Events ---

// UserRegistered logs a new account from the public register endpoint.
func (l *Logger) UserRegistered(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventUserRegistered,
		UserID:    ptr(userID),
		Success:   true,
		Details:   map[string]string{"email": email},
	}))
}

// EmailVerified logs a consumed verification token.
func (l *Logger) EmailVerified(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventEmailVerified,
		UserID:    ptr(userID),
		Success:   true,
	}))
}

// VerificationResent logs a resend request. Unknown emails are logged too;
// the caller's response does not reveal which.
func (l *Logger) VerificationResent(ctx context.Context, r *http.Request, email string) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventVerificationResent,
		Success:   true,
		Details:   map[string]string{"email": email},
	}))
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email, method string) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    ptr(userID),
		Success:   true,
		Details:   map[string]string{"email": email, "method": method},
	}))
}

// LoginFailedUserNotFound logs a login for an email with no account.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, email string) {
	l.loginFailed(ctx, r, audit.EventLoginFailedUserNotFound, primitive.NilObjectID, email, "user not found")
}

// LoginFailedWrongPassword logs a bad password for an existing account.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.loginFailed(ctx, r, audit.EventLoginFailedWrongPassword, userID, email, "wrong password")
}

// LoginFailedLocked logs an attempt against a locked account.
func (l *Logger) LoginFailedLocked(ctx context.Context, r *http.Request, email string) {
	l.loginFailed(ctx, r, audit.EventLoginFailedLocked, primitive.NilObjectID, email, "account locked")
}

// LoginFailedRateLimit logs an attempt refused by the login limiter.
func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request, email string) {
	l.loginFailed(ctx, r, audit.EventLoginFailedRateLimit, primitive.NilObjectID, email, "rate limited")
}

func (l *Logger) loginFailed(ctx context.Context, r *http.Request, eventType string, userID primitive.ObjectID, email, reason string) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        ptr(userID),
		Success:       false,
		FailureReason: reason,
		Details:       map[string]string{"email": email},
	}))
}

// DiscordLinked logs a Discord account link.
func (l *Logger) DiscordLinked(ctx context.Context, r *http.Request, userID primitive.ObjectID, discordID string) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventDiscordLinked,
		UserID:    ptr(userID),
		Success:   true,
		Details:   map[string]string{"discord_id": discordID},
	}))
}

// --- Registration Events ---

// TeamCreated logs a team registration.
func (l *Logger) TeamCreated(ctx context.Context, r *http.Request, leaderID, teamID primitive.ObjectID, teamName string, members int) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryRegistration,
		EventType: audit.EventTeamCreated,
		UserID:    ptr(leaderID),
		ActorID:   ptr(leaderID),
		TeamID:    ptr(teamID),
		Success:   true,
		Details: map[string]string{
			"team_name": teamName,
			"members":   strconv.Itoa(members),
		},
	}))
}

// SoloRegistered logs a solo registration.
func (l *Logger) SoloRegistered(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryRegistration,
		EventType: audit.EventSoloRegistered,
		UserID:    ptr(userID),
		ActorID:   ptr(userID),
		Success:   true,
	}))
}

// JoinRequested logs a new join request.
func (l *Logger) JoinRequested(ctx context.Context, r *http.Request, soloID, teamID, requestID primitive.ObjectID) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryRegistration,
		EventType: audit.EventJoinRequested,
		UserID:    ptr(soloID),
		ActorID:   ptr(soloID),
		TeamID:    ptr(teamID),
		Success:   true,
		Details:   map[string]string{"request_id": requestID.Hex()},
	}))
}

// JoinDecided logs an accept or reject.
func (l *Logger) JoinDecided(ctx context.Context, r *http.Request, actorID, soloID, teamID primitive.ObjectID, accepted bool) {
	eventType := audit.EventJoinRejected
	if accepted {
		eventType = audit.EventJoinAccepted
	}
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryRegistration,
		EventType: eventType,
		UserID:    ptr(soloID),
		ActorID:   ptr(actorID),
		TeamID:    ptr(teamID),
		Success:   true,
	}))
}

// JoinCancelled logs a solo withdrawing a request.
func (l *Logger) JoinCancelled(ctx context.Context, r *http.Request, soloID, teamID primitive.ObjectID) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryRegistration,
		EventType: audit.EventJoinCancelled,
		UserID:    ptr(soloID),
		ActorID:   ptr(soloID),
		TeamID:    ptr(teamID),
		Success:   true,
	}))
}

// --- Payment Events ---

// PaymentIntentCreated logs a new payment record.
func (l *Logger) PaymentIntentCreated(ctx context.Context, r *http.Request, payerID, paymentID primitive.ObjectID, teamID *primitive.ObjectID, mode string, amountInPaise int64) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryPayment,
		EventType: audit.EventPaymentIntentCreated,
		UserID:    ptr(payerID),
		ActorID:   ptr(payerID),
		TeamID:    teamID,
		Success:   true,
		Details: map[string]string{
			"payment_id": paymentID.Hex(),
			"mode":       mode,
			"amount":     strconv.FormatInt(amountInPaise, 10),
		},
	}))
}

// PaymentReconciled logs a gateway report and what was done with it.
// Success is false when the report was not applied.
func (l *Logger) PaymentReconciled(ctx context.Context, r *http.Request, orderID, status, outcome, source string) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryPayment,
		EventType: audit.EventPaymentReconciled,
		Success:   outcome == "applied",
		Details: map[string]string{
			"order_id": orderID,
			"status":   status,
			"outcome":  outcome,
			"source":   source,
		},
	}))
}

// --- Admin Events ---

// RegistrationToggled logs an organizer opening or closing registration.
func (l *Logger) RegistrationToggled(ctx context.Context, r *http.Request, actorID primitive.ObjectID, open bool) {
	eventType := audit.EventRegistrationClosed
	if open {
		eventType = audit.EventRegistrationOpened
	}
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		ActorID:   ptr(actorID),
		Success:   true,
	}))
}

// TeamDeleted logs an organizer removing a team.
func (l *Logger) TeamDeleted(ctx context.Context, r *http.Request, actorID, teamID primitive.ObjectID, teamName string) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventTeamDeleted,
		ActorID:   ptr(actorID),
		TeamID:    ptr(teamID),
		Success:   true,
		Details:   map[string]string{"team_name": teamName},
	}))
}

// UserDeleted logs an organizer removing a user.
func (l *Logger) UserDeleted(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, role string) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUserDeleted,
		UserID:    ptr(userID),
		ActorID:   ptr(actorID),
		Success:   true,
		Details:   map[string]string{"role": role},
	}))
}

// OrganizerPromoted logs a user being granted the organizer role.
func (l *Logger) OrganizerPromoted(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventOrganizerPromoted,
		UserID:    ptr(userID),
		ActorID:   ptr(actorID),
		Success:   true,
	}))
}

// ExportDownloaded logs a CSV export.
func (l *Logger) ExportDownloaded(ctx context.Context, r *http.Request, actorID primitive.ObjectID, kind string, rows int) {
	l.Log(ctx, stamp(r, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventExportDownloaded,
		ActorID:   ptr(actorID),
		Success:   true,
		Details:   map[string]string{"kind": kind, "rows": strconv.Itoa(rows)},
	}))
}

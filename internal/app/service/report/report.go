// Package report assembles read-only views over the whole event: teams with
// their roster and payment expanded, solo participants and the payment
// ledger. The admin API lists them and both the API and teamregctl export
// them as CSV.
package report

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/teamreg/internal/app/system/csvutil"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// Kinds of export.
const (
	KindTeams    = "teams"
	KindSolos    = "solos"
	KindPayments = "payments"
)

// Kinds lists every export kind.
var Kinds = []string{KindTeams, KindSolos, KindPayments}

// Users lists every account.
type Users interface {
	List(ctx context.Context) ([]models.User, error)
}

// Teams lists every team.
type Teams interface {
	List(ctx context.Context) ([]models.Team, error)
}

// Payments lists every payment, newest first.
type Payments interface {
	List(ctx context.Context) ([]models.Payment, error)
}

// Snapshot is a point-in-time read of users, teams and payments.
type Snapshot struct {
	Users    []models.User
	Teams    []models.Team
	Payments []models.Payment

	userByID    map[primitive.ObjectID]*models.User
	teamByID    map[primitive.ObjectID]*models.Team
	paymentByID map[primitive.ObjectID]*models.Payment
}

// Load reads the three collections concurrently.
func Load(ctx context.Context, users Users, teams Teams, payments Payments) (*Snapshot, error) {
	g, ctx := errgroup.WithContext(ctx)
	snap := &Snapshot{}

	g.Go(func() error {
		var err error
		snap.Users, err = users.List(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Teams, err = teams.List(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Payments, err = payments.List(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.index()
	return snap, nil
}

func (s *Snapshot) index() {
	s.userByID = make(map[primitive.ObjectID]*models.User, len(s.Users))
	for i := range s.Users {
		s.userByID[s.Users[i].ID] = &s.Users[i]
	}
	s.teamByID = make(map[primitive.ObjectID]*models.Team, len(s.Teams))
	for i := range s.Teams {
		s.teamByID[s.Teams[i].ID] = &s.Teams[i]
	}
	s.paymentByID = make(map[primitive.ObjectID]*models.Payment, len(s.Payments))
	for i := range s.Payments {
		s.paymentByID[s.Payments[i].ID] = &s.Payments[i]
	}
}

// User returns the user with id, or nil.
func (s *Snapshot) User(id primitive.ObjectID) *models.User { return s.userByID[id] }

// Team returns the team with id, or nil.
func (s *Snapshot) Team(id primitive.ObjectID) *models.Team { return s.teamByID[id] }

/*─────────────────────────────────────────────────────────────────────────────*
| Expanded views                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// TeamView is a team with its leader, members and payment resolved.
type TeamView struct {
	models.Team
	Leader  *models.User    `json:"leader"`
	Members []models.User   `json:"members"`
	Payment *models.Payment `json:"payment,omitempty"`
}

// SoloView is a solo participant with their latest individual payment.
type SoloView struct {
	models.User
	Payment *models.Payment `json:"payment,omitempty"`
}

// PaymentView is a payment with the payer and team names resolved.
type PaymentView struct {
	models.Payment
	PayerName  string `json:"payer_name"`
	PayerEmail string `json:"payer_email"`
	TeamName   string `json:"team_name,omitempty"`
}

// TeamViews returns every team whose folded name contains q (all when q is
// empty), ordered by creation.
func (s *Snapshot) TeamViews(q string) []TeamView {
	out := make([]TeamView, 0, len(s.Teams))
	for _, t := range s.Teams {
		if q != "" && !strings.Contains(t.NameCI, q) {
			continue
		}
		v := TeamView{Team: t, Leader: s.User(t.LeaderID), Members: []models.User{}}
		for _, id := range t.MemberIDs {
			if u := s.User(id); u != nil {
				v.Members = append(v.Members, *u)
			}
		}
		if t.PaymentID != nil {
			v.Payment = s.paymentByID[*t.PaymentID]
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// SoloViews returns every participant with the solo role.
func (s *Snapshot) SoloViews() []SoloView {
	latest := make(map[primitive.ObjectID]*models.Payment)
	for i := range s.Payments {
		p := &s.Payments[i]
		if p.Mode != models.ModeIndividual {
			continue
		}
		if cur, ok := latest[p.PayerID]; !ok || p.CreatedAt.After(cur.CreatedAt) {
			latest[p.PayerID] = p
		}
	}

	out := []SoloView{}
	for _, u := range s.Users {
		if u.Role != models.RoleSolo {
			continue
		}
		out = append(out, SoloView{User: u, Payment: latest[u.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// PaymentViews returns payments, optionally restricted to one status.
func (s *Snapshot) PaymentViews(status string) []PaymentView {
	out := []PaymentView{}
	for _, p := range s.Payments {
		if status != "" && p.Status != status {
			continue
		}
		v := PaymentView{Payment: p}
		if u := s.User(p.PayerID); u != nil {
			v.PayerName, v.PayerEmail = u.Name, u.Email
		}
		if p.TeamID != nil {
			if t := s.Team(*p.TeamID); t != nil {
				v.TeamName = t.Name
			}
		}
		out = append(out, v)
	}
	return out
}

/*─────────────────────────────────────────────────────────────────────────────*
| CSV tables                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// Table renders the export of the given kind. ok is false for an unknown kind.
func (s *Snapshot) Table(kind string) (t csvutil.Table, ok bool) {
	switch kind {
	case KindTeams:
		return s.teamsTable(), true
	case KindSolos:
		return s.solosTable(), true
	case KindPayments:
		return s.paymentsTable(), true
	}
	return csvutil.Table{}, false
}

func (s *Snapshot) teamsTable() csvutil.Table {
	t := csvutil.Table{Header: []string{
		"team_id", "team_name", "leader_name", "leader_email", "leader_phone",
		"members", "member_emails", "size", "locked", "payment_status", "order_id", "created_at",
	}}
	for _, v := range s.TeamViews("") {
		var leaderName, leaderEmail, leaderPhone string
		if v.Leader != nil {
			leaderName, leaderEmail, leaderPhone = v.Leader.Name, v.Leader.Email, v.Leader.PhoneNumber
		}
		names := make([]string, 0, len(v.Members))
		emails := make([]string, 0, len(v.Members))
		for _, m := range v.Members {
			names = append(names, m.Name)
			emails = append(emails, m.Email)
		}
		t.Add(
			v.ID.Hex(), v.Name, leaderName, leaderEmail, leaderPhone,
			strings.Join(names, "|"), strings.Join(emails, "|"),
			strconv.Itoa(v.Size()), strconv.FormatBool(v.Locked),
			paymentStatus(v.Payment), orderID(v.Payment), stamp(v.CreatedAt),
		)
	}
	return t
}

func (s *Snapshot) solosTable() csvutil.Table {
	t := csvutil.Table{Header: []string{
		"user_id", "name", "email", "registration_number", "year_of_study", "phone_number",
		"residence_type", "email_verified", "discord_id", "payment_status", "order_id", "created_at",
	}}
	for _, v := range s.SoloViews() {
		year := ""
		if v.YearOfStudy > 0 {
			year = strconv.Itoa(v.YearOfStudy)
		}
		t.Add(
			v.ID.Hex(), v.Name, v.Email, v.RegistrationNumber, year, v.PhoneNumber,
			v.ResidenceType, strconv.FormatBool(v.EmailVerified), v.DiscordID,
			paymentStatus(v.Payment), orderID(v.Payment), stamp(v.CreatedAt),
		)
	}
	return t
}

func (s *Snapshot) paymentsTable() csvutil.Table {
	t := csvutil.Table{Header: []string{
		"order_id", "mode", "status", "amount_in_paise", "currency", "payer_name", "payer_email",
		"team_name", "gateway_payment_id", "created_at", "updated_at",
	}}
	for _, v := range s.PaymentViews("") {
		t.Add(
			v.GatewayOrderID, v.Mode, v.Status, strconv.FormatInt(v.AmountInPaise, 10), v.Currency,
			v.PayerName, v.PayerEmail, v.TeamName, v.GatewayPaymentID,
			stamp(v.CreatedAt), stamp(v.UpdatedAt),
		)
	}
	return t
}

func paymentStatus(p *models.Payment) string {
	if p == nil {
		return ""
	}
	return p.Status
}

func orderID(p *models.Payment) string {
	if p == nil {
		return ""
	}
	return p.GatewayOrderID
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

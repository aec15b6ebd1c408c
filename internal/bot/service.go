package bot

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"tinyregg/internal/catalog"
	"tinyregg/internal/logger"
	"tinyregg/internal/presence"
	"tinyregg/internal/rewards"
	"tinyregg/internal/shop"
	"tinyregg/internal/tasks"
)

// Service turns owner messages into core operations. Transports stay dumb:
// they hand text in and send the reply back.
type Service struct {
	manager *presence.Manager
	engine  *tasks.Engine
	ledger  *rewards.Ledger
	shop    *shop.Shop
	catalog *catalog.Catalog
	ownerID string
	rng     *rand.Rand
}

func NewService(manager *presence.Manager, engine *tasks.Engine, ledger *rewards.Ledger,
	sh *shop.Shop, cat *catalog.Catalog, ownerID string, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		manager: manager,
		engine:  engine,
		ledger:  ledger,
		shop:    sh,
		catalog: cat,
		ownerID: ownerID,
		rng:     rng,
	}
}

// Handle processes one owner message and returns the reply text.
func (s *Service) Handle(userID, text string) string {
	if userID != s.ownerID {
		return "This bot is private."
	}

	fields := strings.Fields(strings.TrimSpace(strings.TrimPrefix(text, "!")))
	if len(fields) == 0 {
		return s.help()
	}

	command := strings.ToLower(fields[0])
	args := fields[1:]

	reply, err := s.dispatch(userID, command, args)
	if err != nil {
		logger.Error("command failed", "command", command, "error", err)
		return "Something went wrong. Try again in a moment."
	}
	return reply
}

func (s *Service) dispatch(userID, command string, args []string) (string, error) {
	switch command {
	case "start":
		return s.handleStart(userID)
	case "tasks":
		return s.handleTasks(userID)
	case "done":
		return s.handleDone(userID, args)
	case "more":
		return s.handleMore(userID, args)
	case "shop":
		return s.handleShop(userID)
	case "redeem":
		return s.handleRedeem(userID, args)
	case "profiles":
		return s.handleProfiles(userID)
	case "switch":
		return s.handleSwitch(userID, args)
	case "new":
		return s.handleNew(userID, args)
	case "cloudy":
		return s.handleCloudy(userID)
	case "optin":
		return s.handleOptIn(userID, args)
	case "streaks":
		return s.handleStreaks(userID)
	case "balance":
		return s.handleBalance(userID)
	case "status":
		return s.handleStatus()
	default:
		return s.help(), nil
	}
}

func (s *Service) help() string {
	return strings.Join([]string{
		"Commands:",
		"  start — set up your account and today's tasks",
		"  tasks — show today's task list",
		"  done <key> — complete a task",
		"  more <pool> [count] — request extra tasks from a pool",
		"  shop — list what you can redeem right now",
		"  redeem <item> — spend tokens on an item",
		"  profiles — list your profiles",
		"  switch <id> — change who is fronting",
		"  new <tier> <name> — create a profile (adult/regressive/cloudy)",
		"  cloudy — drop into safe mode",
		"  optin <intimacy|kink|explicit> <on|off>",
		"  streaks | balance | status",
	}, "\n")
}

// active resolves the owner's active profile, falling back to cloudy so a
// command never dead-ends before onboarding finished.
func (s *Service) active(userID string) (*presence.Profile, error) {
	p, err := s.manager.Active(userID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}
	if _, err := s.manager.EnsureCloudy(userID); err != nil {
		return nil, err
	}
	return s.manager.Active(userID)
}

func (s *Service) handleStart(userID string) (string, error) {
	if err := s.manager.EnsureUser(userID); err != nil {
		return "", err
	}
	if err := s.manager.MarkStarted(userID); err != nil {
		return "", err
	}

	profileID, err := s.manager.EnsureCloudy(userID)
	if err != nil {
		return "", err
	}
	if _, err := s.engine.GenerateDaily(profileID); err != nil {
		return "", err
	}

	return "You're all set. Starting in Cloudy Mode — try `tasks` to see today's list.", nil
}

func (s *Service) handleTasks(userID string) (string, error) {
	p, err := s.active(userID)
	if err != nil {
		return "", err
	}

	assigned, err := s.engine.TasksForToday(p.ID)
	if err != nil {
		return "", err
	}
	if len(assigned) == 0 {
		generated, err := s.engine.GenerateDaily(p.ID)
		if err != nil {
			return "", err
		}
		assigned = generated
	}
	if len(assigned) == 0 {
		return "No tasks today.", nil
	}

	done, err := s.ledger.CompletedToday(p.ID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Today's tasks for %s:\n", p.Name)
	for _, t := range assigned {
		mark := "•"
		if done[t.Key] {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s [%s] %s — %s\n", mark, t.Key, s.catalog.TaskText(t.Key), t.Category.Display())
	}
	return sb.String(), nil
}

func (s *Service) handleDone(userID string, args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: done <key>", nil
	}

	p, err := s.active(userID)
	if err != nil {
		return "", err
	}

	result, err := s.ledger.Complete(p.ID, args[0])
	if err != nil {
		return "", err
	}

	switch result.Status {
	case rewards.StatusNotFound:
		return "I couldn't find that task anymore.", nil
	case rewards.StatusAlreadyDone:
		return "That one's already counted today.", nil
	default:
		return s.catalog.CompletionMessage(s.rng, result.Category, result.Required, result.Tokens), nil
	}
}

func (s *Service) handleMore(userID string, args []string) (string, error) {
	if len(args) == 0 {
		return "Usage: more <pool> [count]", nil
	}

	pool, ok := tasks.ParsePool(strings.ToLower(args[0]))
	if !ok {
		return "Unknown pool.", nil
	}

	count := 1
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 && n <= 5 {
			count = n
		}
	}

	p, err := s.active(userID)
	if err != nil {
		return "", err
	}

	added, err := s.engine.RequestFromPool(p.ID, pool, count)
	if err == tasks.ErrPoolNotAllowed {
		return "That pool isn't available right now.", nil
	}
	if err != nil {
		return "", err
	}
	if len(added) == 0 {
		return "Nothing new to add from that pool today.", nil
	}

	var sb strings.Builder
	sb.WriteString("Added:\n")
	for _, t := range added {
		fmt.Fprintf(&sb, "• [%s] %s\n", t.Key, s.catalog.TaskText(t.Key))
	}
	return sb.String(), nil
}

func (s *Service) handleShop(userID string) (string, error) {
	p, err := s.active(userID)
	if err != nil {
		return "", err
	}

	balance, err := s.ledger.Balance(userID)
	if err != nil {
		return "", err
	}

	items := s.shop.VisibleItems(p)
	if len(items) == 0 {
		return fmt.Sprintf("The shop is closed for this profile. Balance: %d tokens.", balance), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Shop (balance: %d tokens):\n", balance)
	for _, item := range items {
		fmt.Fprintf(&sb, "%s [%s] %s — %d tokens\n    %s\n", item.Emoji, item.Key, item.Name, item.Cost, item.Desc)
	}
	return sb.String(), nil
}

func (s *Service) handleRedeem(userID string, args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: redeem <item>", nil
	}

	p, err := s.active(userID)
	if err != nil {
		return "", err
	}

	receipt, err := s.shop.Redeem(userID, p.ID, args[0])
	switch err {
	case nil:
	case shop.ErrUnknownItem:
		return "I don't know that item.", nil
	case shop.ErrInsufficientFunds:
		return "Not enough tokens yet. Keep going.", nil
	case shop.ErrNotAllowed:
		return "That item isn't available for this profile.", nil
	default:
		return "", err
	}

	return fmt.Sprintf("Redeemed %s for %d tokens. Your code: %s", receipt.Name, receipt.Cost, receipt.Code), nil
}

func (s *Service) handleProfiles(userID string) (string, error) {
	profiles, err := s.manager.List(userID)
	if err != nil {
		return "", err
	}
	if len(profiles) == 0 {
		return "No profiles yet. Try `start`.", nil
	}

	var sb strings.Builder
	sb.WriteString("Profiles:\n")
	for _, p := range profiles {
		mark := " "
		if p.Active {
			mark = "★"
		}
		fmt.Fprintf(&sb, "%s %d — %s (%s)\n", mark, p.ID, p.Name, p.Tier)
	}
	return sb.String(), nil
}

func (s *Service) handleSwitch(userID string, args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: switch <id>", nil
	}

	profileID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "Usage: switch <id>", nil
	}

	err = s.manager.SwitchActive(userID, profileID)
	if err == presence.ErrNotOwned {
		return "That profile isn't yours.", nil
	}
	if err != nil {
		return "", err
	}

	p, err := s.manager.Get(profileID)
	if err != nil || p == nil {
		return "Switched.", nil
	}
	return fmt.Sprintf("Switched to %s.", p.Name), nil
}

func (s *Service) handleNew(userID string, args []string) (string, error) {
	if len(args) < 2 {
		return "Usage: new <adult|regressive|cloudy> <name>", nil
	}

	tier := presence.Tier(strings.ToLower(args[0]))
	name := strings.Join(args[1:], " ")

	p, err := s.manager.Create(userID, name, "", tier)
	if err == presence.ErrBadTier {
		return "Tier must be adult, regressive or cloudy.", nil
	}
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Created %s (%d). Use `switch %d` to front as them.", p.Name, p.ID, p.ID), nil
}

func (s *Service) handleCloudy(userID string) (string, error) {
	if _, err := s.manager.EnsureCloudy(userID); err != nil {
		return "", err
	}
	return "Cloudy Mode. Everything here is safe and still counts.", nil
}

func (s *Service) handleOptIn(userID string, args []string) (string, error) {
	if len(args) != 2 {
		return "Usage: optin <intimacy|kink|explicit> <on|off>", nil
	}

	value := strings.ToLower(args[1]) == "on"

	p, err := s.active(userID)
	if err != nil {
		return "", err
	}

	err = s.manager.SetOptIn(userID, p.ID, presence.OptIn(strings.ToLower(args[0])), value)
	if err == presence.ErrBadOptIn {
		return "Opt-in must be intimacy, kink or explicit.", nil
	}
	if err != nil {
		return "", err
	}

	// the gate set changed mid-day; re-check what is assigned
	if err := s.engine.Reassess(p.ID); err != nil {
		logger.Error("reassess after opt-in failed", "profile", p.ID, "error", err)
	}

	state := "off"
	if value {
		state = "on"
	}
	return fmt.Sprintf("%s is now %s for %s.", args[0], state, p.Name), nil
}

func (s *Service) handleStreaks(userID string) (string, error) {
	p, err := s.active(userID)
	if err != nil {
		return "", err
	}

	streaks, err := s.ledger.StreaksFor(p.ID)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"Streaks for %s:\n  required %d (last %s)\n  intimacy %d\n  kink %d\n  explicit %d",
		p.Name, streaks.Required, orNever(streaks.LastRequiredDay),
		streaks.Intimacy, streaks.Kink, streaks.Explicit), nil
}

func (s *Service) handleBalance(userID string) (string, error) {
	balance, err := s.ledger.Balance(userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("You have %d tokens.", balance), nil
}

func orNever(day string) string {
	if day == "" {
		return "never"
	}
	return day
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

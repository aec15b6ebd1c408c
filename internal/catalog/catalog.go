// Package catalog holds the static lookup data the rest of the system reads:
// daily task pools, shop reward definitions and completion message templates.
// Everything is parsed once from embedded YAML at startup; there is no
// behavior here beyond lookup.
package catalog

import (
	_ "embed"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/tasks.yml
var tasksYAML []byte

//go:embed data/rewards.yml
var rewardsYAML []byte

//go:embed data/messages.yml
var messagesYAML []byte

// Category is the closed set of values stored on assigned_tasks rows.
// Basic-care picks are stored as "core"; the cleaning sub-bands keep their
// own value and collapse into "core" at presentation time only.
type Category string

const (
	CategoryRequired    Category = "required"
	CategoryCore        Category = "core"
	CategoryFun         Category = "fun"
	CategoryRegressive  Category = "regressive"
	CategorySmallClean  Category = "small_clean"
	CategoryMediumClean Category = "medium_clean"
	CategoryHeavyClean  Category = "heavy_clean"
	CategoryIntimacy    Category = "intimacy"
	CategoryKink        Category = "kink"
	CategoryExplicit    Category = "explicit"
)

// Display collapses the internal cleaning bands for user-facing output.
func (c Category) Display() string {
	switch c {
	case CategorySmallClean, CategoryMediumClean, CategoryHeavyClean:
		return string(CategoryCore)
	default:
		return string(c)
	}
}

type Task struct {
	Key  string `yaml:"key"`
	Text string `yaml:"text"`
}

type Reward struct {
	Key              string `yaml:"key"`
	Name             string `yaml:"name"`
	Emoji            string `yaml:"emoji"`
	Cost             int    `yaml:"cost"`
	Desc             string `yaml:"desc"`
	Category         string `yaml:"category"`
	CloudySafe       bool   `yaml:"cloudy_safe"`
	RequiresIntimacy bool   `yaml:"requires_intimacy"`
	RequiresKink     bool   `yaml:"requires_kink"`
	RequiresExplicit bool   `yaml:"requires_explicit"`
}

type Catalog struct {
	required []Task
	pools    map[string][]Task
	rewards  []Reward
	byKey    map[string]Reward
	messages map[string][]string
}

type taskFile struct {
	Required []Task            `yaml:"required"`
	Pools    map[string][]Task `yaml:"pools"`
}

type rewardFile struct {
	Items []Reward `yaml:"items"`
}

func Load() (*Catalog, error) {
	var tf taskFile
	if err := yaml.Unmarshal(tasksYAML, &tf); err != nil {
		return nil, fmt.Errorf("parse task catalog: %w", err)
	}

	var rf rewardFile
	if err := yaml.Unmarshal(rewardsYAML, &rf); err != nil {
		return nil, fmt.Errorf("parse reward catalog: %w", err)
	}

	messages := map[string][]string{}
	if err := yaml.Unmarshal(messagesYAML, &messages); err != nil {
		return nil, fmt.Errorf("parse completion messages: %w", err)
	}

	byKey := make(map[string]Reward, len(rf.Items))
	for _, item := range rf.Items {
		if item.Key == "" || item.Cost <= 0 {
			return nil, fmt.Errorf("reward %q: key and positive cost are required", item.Name)
		}
		if _, dup := byKey[item.Key]; dup {
			return nil, fmt.Errorf("duplicate reward key %q", item.Key)
		}
		byKey[item.Key] = item
	}

	return &Catalog{
		required: tf.Required,
		pools:    tf.Pools,
		rewards:  rf.Items,
		byKey:    byKey,
		messages: messages,
	}, nil
}

// Required returns the fixed daily anchor tasks. Same keys every day.
func (c *Catalog) Required() []Task {
	return c.required
}

func (c *Catalog) pool(name string) []Task {
	return c.pools[name]
}

func (c *Catalog) BasicCare() []Task     { return c.pool("basic") }
func (c *Catalog) FunTasks() []Task      { return c.pool("fun") }
func (c *Catalog) SmallCleaning() []Task { return c.pool("small_clean") }
func (c *Catalog) MediumCleaning() []Task {
	return c.pool("medium_clean")
}
func (c *Catalog) HeavyCleaning() []Task   { return c.pool("heavy_clean") }
func (c *Catalog) RegressiveTasks() []Task { return c.pool("regressive") }
func (c *Catalog) IntimacyTasks() []Task   { return c.pool("intimacy") }
func (c *Catalog) KinkTasks() []Task       { return c.pool("kink") }
func (c *Catalog) ExplicitTasks() []Task   { return c.pool("explicit") }

// TaskText resolves a task key to its display text, searching the anchors
// and every pool. Returns the key itself for stale keys so old history rows
// still render.
func (c *Catalog) TaskText(key string) string {
	for _, t := range c.required {
		if t.Key == key {
			return t.Text
		}
	}
	for _, pool := range c.pools {
		for _, t := range pool {
			if t.Key == key {
				return t.Text
			}
		}
	}
	return key
}

// Reward looks up a shop item by key.
func (c *Catalog) Reward(key string) (Reward, bool) {
	r, ok := c.byKey[key]
	return r, ok
}

// Rewards returns every shop item in catalog order.
func (c *Catalog) Rewards() []Reward {
	return c.rewards
}

// CompletionMessage picks a tone-appropriate template for a finished task
// and fills in the payout. Required tasks always use the required set.
func (c *Catalog) CompletionMessage(rng *rand.Rand, category Category, required bool, tokens int) string {
	set := "default"
	if required {
		set = "required"
	} else if _, ok := c.messages[category.Display()]; ok {
		set = category.Display()
	}

	templates := c.messages[set]
	if len(templates) == 0 {
		templates = []string{"Task completed. (+{tokens} tokens)"}
	}

	msg := templates[rng.Intn(len(templates))]
	return strings.ReplaceAll(msg, "{tokens}", strconv.Itoa(tokens))
}

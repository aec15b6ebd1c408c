package catalog

import (
	"math/rand"
	"strings"
	"testing"
)

func loadCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Load()
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	return cat
}

func TestLoadRequiredAnchors(t *testing.T) {
	cat := loadCatalog(t)

	required := cat.Required()
	if len(required) != 5 {
		t.Fatalf("expected 5 required anchors, got %d", len(required))
	}

	keys := map[string]bool{}
	for _, task := range required {
		keys[task.Key] = true
	}
	for _, key := range []string{"eat_meal", "drink_water", "work_school", "fun_activity", "brush_teeth"} {
		if !keys[key] {
			t.Errorf("missing required anchor %q", key)
		}
	}
}

func TestLoadPoolsNonEmpty(t *testing.T) {
	cat := loadCatalog(t)

	pools := map[string][]Task{
		"basic":        cat.BasicCare(),
		"fun":          cat.FunTasks(),
		"small_clean":  cat.SmallCleaning(),
		"medium_clean": cat.MediumCleaning(),
		"heavy_clean":  cat.HeavyCleaning(),
		"regressive":   cat.RegressiveTasks(),
		"intimacy":     cat.IntimacyTasks(),
		"kink":         cat.KinkTasks(),
		"explicit":     cat.ExplicitTasks(),
	}
	for name, tasks := range pools {
		if len(tasks) == 0 {
			t.Errorf("pool %q is empty", name)
		}
	}
}

func TestRewardLookup(t *testing.T) {
	cat := loadCatalog(t)

	story, ok := cat.Reward("story")
	if !ok {
		t.Fatal("story reward missing")
	}
	if story.Cost != 10 || !story.CloudySafe {
		t.Fatalf("unexpected story reward: %+v", story)
	}

	if _, ok := cat.Reward("nonexistent"); ok {
		t.Fatal("lookup succeeded for unknown key")
	}

	if len(cat.Rewards()) < 5 {
		t.Fatalf("suspiciously small shop: %d items", len(cat.Rewards()))
	}
}

func TestTaskText(t *testing.T) {
	cat := loadCatalog(t)

	if text := cat.TaskText("eat_meal"); !strings.Contains(text, "meal") {
		t.Fatalf("unexpected anchor text %q", text)
	}
	if text := cat.TaskText("hug_stuffie"); !strings.Contains(text, "stuffie") {
		t.Fatalf("unexpected pool text %q", text)
	}
	// stale keys render as themselves so old history rows still display
	if text := cat.TaskText("retired_key"); text != "retired_key" {
		t.Fatalf("expected stale key passthrough, got %q", text)
	}
}

func TestCategoryDisplayCollapsesBands(t *testing.T) {
	for _, band := range []Category{CategorySmallClean, CategoryMediumClean, CategoryHeavyClean} {
		if band.Display() != "core" {
			t.Errorf("band %q displays as %q", band, band.Display())
		}
	}
	if CategoryRegressive.Display() != "regressive" {
		t.Errorf("regressive displays as %q", CategoryRegressive.Display())
	}
}

func TestCompletionMessageFillsTokens(t *testing.T) {
	cat := loadCatalog(t)
	rng := rand.New(rand.NewSource(1))

	msg := cat.CompletionMessage(rng, CategoryRequired, true, 2)
	if !strings.Contains(msg, "(+2 tokens)") {
		t.Fatalf("payout not substituted: %q", msg)
	}
	if strings.Contains(msg, "{tokens}") {
		t.Fatalf("placeholder left in message: %q", msg)
	}

	// cleaning bands share the core message set
	msg = cat.CompletionMessage(rng, CategoryHeavyClean, false, 1)
	if !strings.Contains(msg, "(+1 tokens)") {
		t.Fatalf("payout not substituted: %q", msg)
	}

	// unknown sets fall back to default rather than panicking
	msg = cat.CompletionMessage(rng, CategoryFun, false, 1)
	if msg == "" {
		t.Fatal("empty completion message")
	}
}

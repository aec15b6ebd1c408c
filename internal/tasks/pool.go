package tasks

import (
	"tinyregg/internal/catalog"
	"tinyregg/internal/presence"
)

// Pool is the closed set of draw sources. Each pool knows the category its
// picks are stored under and which catalog slice it reads from, replacing
// the old string-keyed dispatch table.
type Pool int

const (
	PoolBasic Pool = iota
	PoolFun
	PoolRegressive
	PoolSmallClean
	PoolMediumClean
	PoolHeavyClean
	PoolIntimacy
	PoolKink
	PoolExplicit
)

type weightedPool struct {
	pool   Pool
	weight int
}

// Category is the value persisted on rows drawn from this pool. Basic care
// is stored as core; the cleaning bands keep their band.
func (p Pool) Category() catalog.Category {
	switch p {
	case PoolBasic:
		return catalog.CategoryCore
	case PoolFun:
		return catalog.CategoryFun
	case PoolRegressive:
		return catalog.CategoryRegressive
	case PoolSmallClean:
		return catalog.CategorySmallClean
	case PoolMediumClean:
		return catalog.CategoryMediumClean
	case PoolHeavyClean:
		return catalog.CategoryHeavyClean
	case PoolIntimacy:
		return catalog.CategoryIntimacy
	case PoolKink:
		return catalog.CategoryKink
	case PoolExplicit:
		return catalog.CategoryExplicit
	}
	return catalog.CategoryCore
}

func (p Pool) tasks(cat *catalog.Catalog) []catalog.Task {
	switch p {
	case PoolBasic:
		return cat.BasicCare()
	case PoolFun:
		return cat.FunTasks()
	case PoolRegressive:
		return cat.RegressiveTasks()
	case PoolSmallClean:
		return cat.SmallCleaning()
	case PoolMediumClean:
		return cat.MediumCleaning()
	case PoolHeavyClean:
		return cat.HeavyCleaning()
	case PoolIntimacy:
		return cat.IntimacyTasks()
	case PoolKink:
		return cat.KinkTasks()
	case PoolExplicit:
		return cat.ExplicitTasks()
	}
	return nil
}

// allowedFor gates user-requested pools the same way generation does.
func (p Pool) allowedFor(g *profileGates) bool {
	switch p {
	case PoolBasic, PoolFun, PoolSmallClean:
		return true
	case PoolRegressive:
		return g.tier == presence.TierRegressive || g.tier == presence.TierCloudy
	case PoolMediumClean, PoolHeavyClean:
		return g.tier == presence.TierAdult
	case PoolIntimacy:
		return g.tier == presence.TierAdult && g.intimacy
	case PoolKink:
		return g.tier == presence.TierAdult && g.kink
	case PoolExplicit:
		return g.tier == presence.TierAdult && g.explicit
	}
	return false
}

// ParsePool resolves a user-supplied pool name.
func ParsePool(name string) (Pool, bool) {
	switch name {
	case "basic":
		return PoolBasic, true
	case "fun":
		return PoolFun, true
	case "regressive":
		return PoolRegressive, true
	case "small_clean":
		return PoolSmallClean, true
	case "medium_clean":
		return PoolMediumClean, true
	case "heavy_clean":
		return PoolHeavyClean, true
	case "intimacy":
		return PoolIntimacy, true
	case "kink":
		return PoolKink, true
	case "explicit":
		return PoolExplicit, true
	}
	return 0, false
}

package main

// AchievementDef describes one unlockable milestone
type AchievementDef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"desc"`
}

var Achievements = []AchievementDef{
	{"first_blood", "First Blood", "Destroy your first enemy"},
	{"brawler", "Brawler", "Finish an enemy at melee range"},
	{"ace", "Ace", "Destroy 10 enemies in a single run"},
	{"exterminator", "Exterminator", "Destroy 100 enemies in total"},
	{"marksman", "Marksman", "Finish a run of 20+ shots with at least half of them kills"},
	{"survivor", "Survivor", "Play for 1 hour in total"},
}

// CheckAchievements unlocks every milestone the finished run or the pilot's
// new totals satisfy and returns the newly unlocked ones. The run must
// already be recorded.
func CheckAchievements(db *DB, pilotID int64, run RunRow) []AchievementDef {
	if db == nil {
		return nil
	}
	stats, err := db.GetStats(pilotID)
	if err != nil || stats == nil {
		return nil
	}
	existing, err := db.GetAchievements(pilotID)
	if err != nil {
		return nil
	}
	has := make(map[string]bool, len(existing))
	for _, id := range existing {
		has[id] = true
	}

	met := func(id string) bool {
		switch id {
		case "first_blood":
			return stats.Kills >= 1
		case "brawler":
			return run.Melee >= 1
		case "ace":
			return run.Kills >= 10
		case "exterminator":
			return stats.Kills >= 100
		case "marksman":
			return run.Shots >= 20 && run.Kills*2 >= run.Shots
		case "survivor":
			return stats.Playtime >= 3600
		}
		return false
	}

	var unlocked []AchievementDef
	for _, def := range Achievements {
		if has[def.ID] || !met(def.ID) {
			continue
		}
		if ok, err := db.UnlockAchievement(pilotID, def.ID); err == nil && ok {
			unlocked = append(unlocked, def)
		}
	}
	return unlocked
}

package factory

import (
	"encoding/json"
)

// StarterCatalogJSON returns the catalog offered to a new family. Item IDs
// are prefixed with the family ID because catalog IDs are global.
func StarterCatalogJSON(familyID string) string {
	id := func(s string) string { return familyID + "-" + s }

	cj := map[string]interface{}{
		"family_id": familyID,
		"behaviors": []map[string]interface{}{
			{"id": id("brush-teeth"), "name": "Brush teeth", "points": 1, "category": "routine", "color": "#4CAF50"},
			{"id": id("make-bed"), "name": "Make bed", "points": 1, "category": "routine", "color": "#4CAF50"},
			{"id": id("homework"), "name": "Finish homework", "points": 3, "category": "school", "color": "#2196F3"},
			{"id": id("read"), "name": "Read 20 minutes", "points": 2, "category": "school", "color": "#2196F3", "is_repeatable": true, "max_per_day": 3},
			{"id": id("help-out"), "name": "Help without being asked", "points": 2, "category": "kindness", "color": "#FFC107", "is_repeatable": true},
			{"id": id("hitting"), "name": "Hitting", "points": -3, "category": "conduct", "color": "#F44336", "is_repeatable": true},
			{"id": id("talk-back"), "name": "Talking back", "points": -1, "category": "conduct", "color": "#F44336", "is_repeatable": true, "max_per_day": 5},
		},
		"rewards": []map[string]interface{}{
			{"id": id("sticker"), "name": "Sticker", "cost": 2, "category": "small"},
			{"id": id("dessert"), "name": "Extra dessert", "cost": 8, "category": "treat"},
			{"id": id("screen-30"), "name": "30 minutes screen time", "cost": 10, "category": "treat"},
			{"id": id("movie-night"), "name": "Pick the movie", "cost": 25, "category": "event"},
			{"id": id("toy"), "name": "New toy", "cost": 50, "category": "big"},
		},
	}
	b, _ := json.MarshalIndent(cj, "", "  ")
	return string(b)
}
